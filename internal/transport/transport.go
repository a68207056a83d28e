// Package transport implements the two delivery channels behind one Sender
// shape: the Gmail API (OAuth2 refresh-token flow) and authenticated SMTP
// submission with an application password.
//
// Channel selection is driven by the job's credentials: complete OAuth2
// credentials take priority; otherwise a canonicalized 16-character app
// password selects SMTP; otherwise no send is possible.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Trandung-02/mail-job-manager/internal/domain"
)

// Sender delivers a single email through one channel. The SMTP sender holds
// one authenticated connection per run and is NOT safe for concurrent use;
// the Gmail sender is stateless after construction. Close releases any held
// connection and must be called on every exit path.
type Sender interface {
	Send(ctx context.Context, msg *domain.Message) (*domain.SendResult, error)
	Channel() domain.ChannelType
	Close() error
}

// Factory builds a Sender for a job's credential set. The dispatch
// orchestrator stays channel-agnostic behind this interface.
type Factory interface {
	SenderFor(ctx context.Context, from string, creds domain.Credentials) (Sender, error)
}

// Sentinel errors for channel selection and credential validation.
var (
	ErrNoUsableChannel = errors.New("no usable delivery channel: need full OAuth2 credentials or a 16-character app password")
	ErrBadAppPassword  = errors.New("app password must be exactly 16 characters after removing whitespace")
)

// Config holds transport-level settings shared across runs. The zero value
// keeps STARTTLS on; SMTPDisableTLS is an explicit opt-out for local test
// relays that speak plaintext.
type Config struct {
	SMTPHost       string
	SMTPPort       int
	SMTPDisableTLS bool
	SMTPTimeout    time.Duration
}

// ChannelFactory is the production Factory implementation.
type ChannelFactory struct {
	cfg Config
}

// NewFactory creates a ChannelFactory.
func NewFactory(cfg Config) *ChannelFactory {
	if cfg.SMTPHost == "" {
		cfg.SMTPHost = "smtp.gmail.com"
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	if cfg.SMTPTimeout == 0 {
		cfg.SMTPTimeout = 30 * time.Second
	}
	return &ChannelFactory{cfg: cfg}
}

// SenderFor selects and initializes the delivery channel for one run.
// The SMTP path performs its connection/authentication handshake here so a
// bad password fails the run before any recipient is processed.
func (f *ChannelFactory) SenderFor(ctx context.Context, from string, creds domain.Credentials) (Sender, error) {
	channel, ok := creds.SelectChannel()
	if !ok {
		if creds.SMTP.AppPassword != "" && !creds.SMTP.Valid() {
			return nil, fmt.Errorf("%w: got %d characters", ErrBadAppPassword, len(creds.SMTP.Canonical()))
		}
		return nil, ErrNoUsableChannel
	}

	switch channel {
	case domain.ChannelGmailAPI:
		return NewGmailSender(ctx, creds.OAuth2)
	case domain.ChannelSMTP:
		return ConnectSMTP(ctx, f.cfg, from, creds.SMTP)
	}
	return nil, ErrNoUsableChannel
}
