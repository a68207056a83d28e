// Package validator performs syntactic and DNS-based plausibility checks on
// recipient addresses before any send is attempted.
//
// The MX lookup is a free pre-filter: a domain with no mail exchangers cannot
// receive mail, so rejecting it locally avoids paying for a doomed send.
// Resolver flakiness must never block a good recipient, so only a definitive
// "domain not found" is a hard rejection; every other DNS error degrades to a
// warning.
package validator

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strings"
	"time"
)

// MXResolver abstracts DNS MX resolution so tests can inject a fixture and
// validation stays deterministic without network access.
type MXResolver interface {
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)
}

// Result holds the outcome of validating one address. Failure modes are all
// returned, never panicked.
type Result struct {
	Valid    bool     `json:"valid"`
	Err      string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Validator checks recipient addresses. Safe for concurrent use; it holds no
// mutable state beyond the injected resolver.
type Validator struct {
	resolver   MXResolver
	dnsTimeout time.Duration
}

// Option configures a Validator.
type Option func(*Validator)

// WithResolver injects a custom MX resolver (used by tests).
func WithResolver(r MXResolver) Option {
	return func(v *Validator) { v.resolver = r }
}

// WithDNSTimeout overrides the per-lookup timeout.
func WithDNSTimeout(d time.Duration) Option {
	return func(v *Validator) { v.dnsTimeout = d }
}

// New creates a Validator backed by the system resolver.
func New(opts ...Option) *Validator {
	v := &Validator{
		resolver:   &net.Resolver{},
		dnsTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

var (
	addressRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// Placeholder local parts like "test", "temp123", "fake7". These are
	// flagged, not rejected; real people occasionally own them.
	placeholderLocalRe = regexp.MustCompile(`^(test|temp|fake|demo|sample|example)\d*$`)

	// Gmail publishes its local-part rules: lowercase letters, digits, and
	// dots before any "+" suffix, minimum six characters.
	gmailLocalRe = regexp.MustCompile(`^[a-z0-9.]+$`)

	// Other large consumer providers allow letters, digits, dot, underscore,
	// and hyphen. Stricter than the general pattern above.
	consumerLocalRe = regexp.MustCompile(`^[a-zA-Z0-9._\-]+$`)
)

var disposableDomains = map[string]bool{
	"mailinator.com":    true,
	"guerrillamail.com": true,
	"10minutemail.com":  true,
	"tempmail.com":      true,
	"temp-mail.org":     true,
	"throwawaymail.com": true,
	"yopmail.com":       true,
	"trashmail.com":     true,
	"getnada.com":       true,
	"maildrop.cc":       true,
	"sharklasers.com":   true,
	"dispostable.com":   true,
}

var consumerDomains = map[string]bool{
	"yahoo.com":   true,
	"outlook.com": true,
	"hotmail.com": true,
	"aol.com":     true,
	"icloud.com":  true,
}

// Validate runs the full check pipeline on one address: syntax, provider
// local-part rules, MX resolution, and disposable-address flagging.
func (v *Validator) Validate(ctx context.Context, address string) Result {
	address = strings.TrimSpace(address)

	if !addressRe.MatchString(address) {
		return Result{Valid: false, Err: "địa chỉ email không đúng định dạng: " + address}
	}

	at := strings.LastIndex(address, "@")
	local := address[:at]
	domain := strings.ToLower(address[at+1:])

	if res := v.checkProviderRules(local, domain); res != nil {
		return *res
	}

	var warnings []string
	if placeholderLocalRe.MatchString(strings.ToLower(local)) {
		warnings = append(warnings, "local part looks like a placeholder address")
	}
	if disposableDomains[domain] {
		warnings = append(warnings, "domain is a known disposable email provider")
	}

	valid, err, warn := v.checkMX(ctx, domain)
	if warn != "" {
		warnings = append(warnings, warn)
	}
	if !valid {
		return Result{Valid: false, Err: err, Warnings: warnings}
	}

	return Result{Valid: true, Warnings: warnings}
}

// checkProviderRules applies the documented local-part charset rules of the
// big consumer webmail providers. Returns nil when no rule rejects.
func (v *Validator) checkProviderRules(local, domain string) *Result {
	switch {
	case domain == "gmail.com" || domain == "googlemail.com":
		// Anything after "+" is a user-controlled suffix; Gmail only
		// constrains the base local part.
		base := local
		if plus := strings.Index(base, "+"); plus >= 0 {
			base = base[:plus]
		}
		if !gmailLocalRe.MatchString(base) {
			return &Result{Valid: false, Err: "địa chỉ Gmail chỉ được chứa chữ thường, số và dấu chấm: " + local}
		}
		if len(strings.ReplaceAll(base, ".", "")) < 6 {
			return &Result{Valid: false, Err: "địa chỉ Gmail quá ngắn (tối thiểu 6 ký tự): " + local}
		}
	case consumerDomains[domain]:
		base := local
		if plus := strings.Index(base, "+"); plus >= 0 {
			base = base[:plus]
		}
		if !consumerLocalRe.MatchString(base) {
			return &Result{Valid: false, Err: "địa chỉ email chứa ký tự không hợp lệ: " + local}
		}
	}
	return nil
}

// checkMX resolves the domain's mail exchangers. A definitive "no such host"
// rejects; transient resolver failures return valid with a warning so DNS
// flakiness never blocks an otherwise-good recipient.
func (v *Validator) checkMX(ctx context.Context, domain string) (valid bool, errMsg, warning string) {
	lookupCtx, cancel := context.WithTimeout(ctx, v.dnsTimeout)
	defer cancel()

	records, err := v.resolver.LookupMX(lookupCtx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return false, "tên miền không tồn tại: " + domain, ""
		}
		return true, "", "MX lookup failed (" + err.Error() + "), accepting address anyway"
	}
	if len(records) == 0 {
		return false, "tên miền không có máy chủ nhận thư (MX): " + domain, ""
	}
	return true, "", ""
}
