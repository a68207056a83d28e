package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"time"

	"github.com/Trandung-02/mail-job-manager/internal/domain"
	"github.com/Trandung-02/mail-job-manager/internal/pkg/logger"
)

// smtpSession is the subset of *smtp.Client the sender uses. Abstracted so
// tests can drive the transaction without a live relay.
type smtpSession interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Reset() error
	Quit() error
	Close() error
}

// SMTPSender submits messages over one authenticated SMTP connection.
// The handshake (dial, EHLO, STARTTLS, AUTH) happens once in ConnectSMTP;
// every recipient of the run reuses the session. Not safe for concurrent
// use, which is why the dispatch loop is strictly sequential per job.
type SMTPSender struct {
	host    string
	session smtpSession
	closed  bool
}

// ConnectSMTP validates the app password, then performs the connection and
// authentication handshake against the submission endpoint. It fails fast
// with a diagnostic if authentication does not succeed, so a bad credential
// aborts the run before any recipient is attempted.
func ConnectSMTP(ctx context.Context, cfg Config, from string, creds domain.SMTPCredentials) (*SMTPSender, error) {
	pass := creds.Canonical()
	if len(pass) != 16 {
		return nil, fmt.Errorf("%w: got %d characters", ErrBadAppPassword, len(pass))
	}

	addr := fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort)
	dialer := &net.Dialer{Timeout: cfg.SMTPTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("smtp: connect to %s: %w", addr, err)
	}

	c, err := smtp.NewClient(conn, cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp: client handshake: %w", err)
	}

	if !cfg.SMTPDisableTLS {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			c.Close()
			return nil, fmt.Errorf("smtp: server %s does not offer STARTTLS", cfg.SMTPHost)
		}
		if err := c.StartTLS(&tls.Config{ServerName: cfg.SMTPHost}); err != nil {
			c.Close()
			return nil, fmt.Errorf("smtp: STARTTLS: %w", err)
		}
	}

	auth := smtp.PlainAuth("", from, pass, cfg.SMTPHost)
	if err := c.Auth(auth); err != nil {
		c.Close()
		return nil, fmt.Errorf("smtp: authentication failed for %s (check the app password): %w", logger.RedactEmail(from), err)
	}

	return &SMTPSender{host: cfg.SMTPHost, session: c}, nil
}

// Channel identifies this sender as the SMTP channel.
func (s *SMTPSender) Channel() domain.ChannelType { return domain.ChannelSMTP }

// Close ends the SMTP session. Safe to call more than once.
func (s *SMTPSender) Close() error {
	if s.closed || s.session == nil {
		return nil
	}
	s.closed = true
	if err := s.session.Quit(); err != nil {
		return s.session.Close()
	}
	return nil
}

// Send issues one envelope transaction on the shared session:
// MAIL FROM = sender, RCPT TO = [recipient], DATA with the tool's custom
// headers and the sender declared as the bounce return path. A server
// rejection surfaces as an error whose text is the raw reply, which the
// classifier parses; an accepted message yields an explicit accepted list.
func (s *SMTPSender) Send(ctx context.Context, msg *domain.Message) (*domain.SendResult, error) {
	if s.closed {
		return nil, fmt.Errorf("smtp: session already closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if msg.Headers == nil {
		msg.Headers = make(map[string]string)
	}
	msg.Headers["X-Mailer"] = "mail-job-manager"
	msg.Headers["Return-Path"] = msg.From

	if err := s.session.Mail(msg.From); err != nil {
		s.session.Reset()
		return nil, fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := s.session.Rcpt(msg.To); err != nil {
		// The reply text rides on the error; the classifier matches it
		// against the rejection markers.
		s.session.Reset()
		return nil, fmt.Errorf("RCPT TO %s: %w", msg.To, err)
	}

	w, err := s.session.Data()
	if err != nil {
		s.session.Reset()
		return nil, fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(buildMIME(msg)); err != nil {
		w.Close()
		return nil, fmt.Errorf("smtp: write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("smtp: finish message: %w", err)
	}

	// net/smtp swallows the final reply text on success, so the normalized
	// result carries a synthetic 250 plus the explicit accepted list.
	return &domain.SendResult{
		Response: "250 2.0.0 OK",
		Accepted: []string{msg.To},
		Channel:  domain.ChannelSMTP,
		SentAt:   time.Now(),
	}, nil
}
