// Package classify decides whether one delivery attempt was a genuine
// failure, a confirmed success, or an ambiguous acceptance.
//
// Providers give inconsistent, free-text signals about nonexistent
// mailboxes: the Gmail API returns structured errors with varying messages,
// while SMTP relays reply with enhanced-status codes buried in prose. The
// marker table below collects both families so the heuristic stays in one
// auditable place instead of scattered substring checks.
package classify

import (
	"errors"
	"strings"

	"github.com/Trandung-02/mail-job-manager/internal/domain"
	"google.golang.org/api/googleapi"
)

// ErrAddressNotFound marks a provider response that means the recipient
// mailbox does not exist. The Gmail channel wraps matching API errors with
// this sentinel so callers can rely on errors.Is instead of re-parsing text.
var ErrAddressNotFound = errors.New("không tìm thấy địa chỉ email")

// rejectionMarkers is the ordered, case-insensitive table of substrings that
// signal a nonexistent or rejected mailbox. Drawn from two sources: numeric
// SMTP enhanced-status codes for the "mailbox does not exist" class, and the
// English phrases providers use for the same condition. Order is broadly
// most-specific first so the matched marker makes a useful diagnostic.
var rejectionMarkers = []string{
	"550 5.1.1",
	"550-5.1.1",
	"551 5.1.1",
	"553 5.1.3",
	"5.1.1",
	"5.1.2",
	"5.1.3",
	"5.1.6",
	"5.1.10",
	"5.2.1",
	"550",
	"551",
	"553",
	"no such user",
	"user unknown",
	"unknown user",
	"mailbox unavailable",
	"mailbox not found",
	"mailbox does not exist",
	"address rejected",
	"address not found",
	"does not exist",
	"invalid recipient",
	"recipient rejected",
	"recipient address rejected",
	"delivery failed",
	"không tìm thấy địa chỉ",
}

// MatchRejectionMarker reports the first marker found in text, if any.
// Matching is case-insensitive substring containment.
func MatchRejectionMarker(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, m := range rejectionMarkers {
		if strings.Contains(lower, m) {
			return m, true
		}
	}
	return "", false
}

// Outcome is the classified result of one attempt.
type Outcome struct {
	Kind       domain.OutcomeKind
	Diagnostic string
}

// Classifier maps transport results and errors onto the three-way outcome.
// It is stateless and safe for concurrent use.
type Classifier struct{}

// New creates a Classifier.
func New() *Classifier { return &Classifier{} }

// Classify inspects a send attempt for one recipient. Exactly one of result
// and sendErr is meaningful: a nil sendErr means the transport returned a
// result, a non-nil sendErr means the attempt raised.
func (c *Classifier) Classify(channel domain.ChannelType, recipient string, result *domain.SendResult, sendErr error) Outcome {
	if sendErr != nil {
		return c.classifyError(recipient, sendErr)
	}
	if result == nil {
		return Outcome{Kind: domain.OutcomePotentiallyFailed, Diagnostic: "đã gửi nhưng chưa xác nhận được kết quả"}
	}

	if channel == domain.ChannelGmailAPI {
		// The API channel either succeeds or errors; a returned result is
		// an unconditional delivery.
		return Outcome{Kind: domain.OutcomeSent, Diagnostic: result.MessageID}
	}

	return c.classifySMTPResult(recipient, result)
}

func (c *Classifier) classifyError(recipient string, sendErr error) Outcome {
	if errors.Is(sendErr, ErrAddressNotFound) {
		return Outcome{Kind: domain.OutcomeRejected, Diagnostic: "Không tìm thấy địa chỉ email: " + recipient}
	}

	var apiErr *googleapi.Error
	if errors.As(sendErr, &apiErr) {
		// 400/422 signal a client-side addressing problem for this API,
		// independent of the message text.
		if apiErr.Code == 400 || apiErr.Code == 422 {
			return Outcome{Kind: domain.OutcomeRejected, Diagnostic: "Không tìm thấy địa chỉ email: " + recipient + " (" + apiErr.Message + ")"}
		}
		if _, ok := MatchRejectionMarker(apiErr.Message); ok {
			return Outcome{Kind: domain.OutcomeRejected, Diagnostic: "Không tìm thấy địa chỉ email: " + recipient}
		}
	}

	if _, ok := MatchRejectionMarker(sendErr.Error()); ok {
		return Outcome{Kind: domain.OutcomeRejected, Diagnostic: "Không tìm thấy địa chỉ email: " + recipient}
	}

	// Transparent pass-through: still a failure for this recipient, but the
	// diagnostic keeps the raw error so the job owner sees what happened.
	return Outcome{Kind: domain.OutcomeRejected, Diagnostic: sendErr.Error()}
}

func (c *Classifier) classifySMTPResult(recipient string, result *domain.SendResult) Outcome {
	for _, r := range result.Rejected {
		if strings.EqualFold(r, recipient) {
			return Outcome{Kind: domain.OutcomeRejected, Diagnostic: "Không tìm thấy địa chỉ email: " + recipient}
		}
	}

	if marker, ok := MatchRejectionMarker(result.Response); ok {
		return Outcome{Kind: domain.OutcomeRejected, Diagnostic: "Không tìm thấy địa chỉ email: " + recipient + " (" + marker + ")"}
	}

	if len(result.Accepted) > 0 {
		for _, a := range result.Accepted {
			if strings.EqualFold(a, recipient) {
				return Outcome{Kind: domain.OutcomeSent, Diagnostic: result.Response}
			}
		}
		// The relay told us who it accepted and this recipient isn't there.
		return Outcome{Kind: domain.OutcomeRejected, Diagnostic: "Không tìm thấy địa chỉ email: " + recipient}
	}

	// No explicit accept/reject information: fall back to the leading
	// three-digit reply code.
	if code, ok := leadingReplyCode(result.Response); ok && code >= 200 && code < 300 {
		return Outcome{Kind: domain.OutcomeSent, Diagnostic: result.Response}
	}
	return Outcome{
		Kind:       domain.OutcomePotentiallyFailed,
		Diagnostic: "Đã gửi nhưng chưa xác nhận được kết quả, hãy kiểm tra thư báo lỗi (bounce): " + result.Response,
	}
}

// leadingReplyCode parses a 3-digit SMTP reply code at the start of text.
func leadingReplyCode(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if len(text) < 3 {
		return 0, false
	}
	code := 0
	for i := 0; i < 3; i++ {
		ch := text[i]
		if ch < '0' || ch > '9' {
			return 0, false
		}
		code = code*10 + int(ch-'0')
	}
	return code, true
}
