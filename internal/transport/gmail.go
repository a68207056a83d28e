package transport

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/Trandung-02/mail-job-manager/internal/classify"
	"github.com/Trandung-02/mail-job-manager/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GmailSender delivers through the Gmail API authenticated with a
// refresh-token OAuth2 flow. The API either succeeds (returning a provider
// message id, treated as unconditionally delivered) or errors; there is no
// partial state to classify.
type GmailSender struct {
	service *gmail.Service
}

// NewGmailSender builds a Gmail API sender from client credentials plus a
// refresh token for the sender mailbox. Token refresh is handled by the
// oauth2 transport.
func NewGmailSender(ctx context.Context, creds domain.OAuth2Credentials) (*GmailSender, error) {
	if !creds.Complete() {
		return nil, ErrNoUsableChannel
	}

	oauthCfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailSendScope},
	}
	token := &oauth2.Token{RefreshToken: creds.RefreshToken}
	client := oauthCfg.Client(ctx, token)

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("gmail: create service: %w", err)
	}

	return &GmailSender{service: svc}, nil
}

// Channel identifies this sender as the OAuth2 API channel.
func (g *GmailSender) Channel() domain.ChannelType { return domain.ChannelGmailAPI }

// Close is a no-op; the Gmail sender holds no connection.
func (g *GmailSender) Close() error { return nil }

// Send submits one message through Users.Messages.Send. Errors matching the
// provider's "address does not exist" taxonomy are wrapped with
// classify.ErrAddressNotFound; everything else passes through unchanged.
func (g *GmailSender) Send(ctx context.Context, msg *domain.Message) (*domain.SendResult, error) {
	raw := base64.URLEncoding.EncodeToString(buildMIME(msg))

	sent, err := g.service.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return nil, g.wrapSendError(err)
	}

	return &domain.SendResult{
		MessageID: sent.Id,
		Channel:   domain.ChannelGmailAPI,
		SentAt:    time.Now(),
	}, nil
}

// wrapSendError tags errors that mean "this mailbox does not exist" so the
// classifier can recognize them with errors.Is. 400/422 signal a client-side
// addressing problem for this API regardless of message text.
func (g *GmailSender) wrapSendError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 400 || apiErr.Code == 422 {
			return fmt.Errorf("%w: %v", classify.ErrAddressNotFound, err)
		}
		if _, ok := classify.MatchRejectionMarker(apiErr.Message); ok {
			return fmt.Errorf("%w: %v", classify.ErrAddressNotFound, err)
		}
	}
	if _, ok := classify.MatchRejectionMarker(err.Error()); ok {
		return fmt.Errorf("%w: %v", classify.ErrAddressNotFound, err)
	}
	return fmt.Errorf("gmail: send: %w", err)
}
