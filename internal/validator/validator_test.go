package validator

import (
	"context"
	"net"
	"strings"
	"testing"
)

// fakeResolver returns canned MX answers per domain.
type fakeResolver struct {
	records map[string][]*net.MX
	errs    map[string]error
}

func (f *fakeResolver) LookupMX(_ context.Context, domain string) ([]*net.MX, error) {
	if err, ok := f.errs[domain]; ok {
		return nil, err
	}
	return f.records[domain], nil
}

func newTestValidator(r *fakeResolver) *Validator {
	return New(WithResolver(r))
}

func mxRecords(hosts ...string) []*net.MX {
	var out []*net.MX
	for _, h := range hosts {
		out = append(out, &net.MX{Host: h, Pref: 10})
	}
	return out
}

func TestValidateSyntax(t *testing.T) {
	v := newTestValidator(&fakeResolver{records: map[string][]*net.MX{
		"example.com": mxRecords("mx.example.com"),
	}})

	tests := []struct {
		name    string
		address string
		valid   bool
	}{
		{"valid address", "john.doe@example.com", true},
		{"missing at sign", "missing-at-sign", false},
		{"missing domain", "john@", false},
		{"missing local part", "@example.com", false},
		{"missing tld", "john@example", false},
		{"spaces inside", "john doe@example.com", false},
		{"plus suffix", "john+tag@example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(context.Background(), tt.address)
			if res.Valid != tt.valid {
				t.Errorf("Validate(%q).Valid = %v, want %v (err=%q)", tt.address, res.Valid, tt.valid, res.Err)
			}
			if !tt.valid && res.Err == "" {
				t.Errorf("Validate(%q) invalid but no diagnostic", tt.address)
			}
		})
	}
}

func TestValidateMX(t *testing.T) {
	r := &fakeResolver{
		records: map[string][]*net.MX{
			"good.com":  mxRecords("mx1.good.com", "mx2.good.com"),
			"empty.com": nil,
		},
		errs: map[string]error{
			"nowhere.xyz": &net.DNSError{Err: "no such host", Name: "nowhere.xyz", IsNotFound: true},
			"flaky.com":   &net.DNSError{Err: "i/o timeout", Name: "flaky.com", IsTimeout: true},
		},
	}
	v := newTestValidator(r)

	t.Run("domain with MX is valid", func(t *testing.T) {
		res := v.Validate(context.Background(), "user@good.com")
		if !res.Valid {
			t.Fatalf("expected valid, got err %q", res.Err)
		}
	})

	t.Run("domain without MX is rejected", func(t *testing.T) {
		res := v.Validate(context.Background(), "user@empty.com")
		if res.Valid {
			t.Fatal("expected rejection for domain without MX records")
		}
	})

	t.Run("nonexistent domain is rejected", func(t *testing.T) {
		res := v.Validate(context.Background(), "user@nowhere.xyz")
		if res.Valid {
			t.Fatal("expected rejection for nonexistent domain")
		}
	})

	t.Run("transient resolver failure degrades to warning", func(t *testing.T) {
		res := v.Validate(context.Background(), "user@flaky.com")
		if !res.Valid {
			t.Fatalf("transient DNS failure must not reject, got err %q", res.Err)
		}
		if len(res.Warnings) == 0 {
			t.Fatal("expected a warning for transient DNS failure")
		}
	})
}

func TestValidateGmailRules(t *testing.T) {
	v := newTestValidator(&fakeResolver{records: map[string][]*net.MX{
		"gmail.com": mxRecords("gmail-smtp-in.l.google.com"),
	}})

	tests := []struct {
		name    string
		address string
		valid   bool
	}{
		{"valid gmail", "nguyenvana@gmail.com", true},
		{"valid with dots", "nguyen.van.a@gmail.com", true},
		{"valid with plus suffix", "nguyenvana+jobs@gmail.com", true},
		{"uppercase rejected", "NguyenVanA@gmail.com", false},
		{"underscore rejected", "nguyen_van@gmail.com", false},
		{"too short", "abc@gmail.com", false},
		{"dots do not count toward length", "a.b.c.d@gmail.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(context.Background(), tt.address)
			if res.Valid != tt.valid {
				t.Errorf("Validate(%q).Valid = %v, want %v (err=%q)", tt.address, res.Valid, tt.valid, res.Err)
			}
		})
	}
}

func TestValidateFlags(t *testing.T) {
	v := newTestValidator(&fakeResolver{records: map[string][]*net.MX{
		"example.com":    mxRecords("mx.example.com"),
		"mailinator.com": mxRecords("mx.mailinator.com"),
	}})

	t.Run("placeholder local part is flagged not rejected", func(t *testing.T) {
		res := v.Validate(context.Background(), "test123@example.com")
		if !res.Valid {
			t.Fatalf("placeholder address must stay valid, got err %q", res.Err)
		}
		if len(res.Warnings) == 0 {
			t.Fatal("expected a placeholder warning")
		}
	})

	t.Run("disposable domain is flagged not rejected", func(t *testing.T) {
		res := v.Validate(context.Background(), "someone@mailinator.com")
		if !res.Valid {
			t.Fatalf("disposable address must stay valid, got err %q", res.Err)
		}
		found := false
		for _, w := range res.Warnings {
			if strings.Contains(w, "disposable") {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected disposable warning, got %v", res.Warnings)
		}
	})
}
