package domain

import "time"

// Message is the fully-resolved email handed to a transport channel. By the
// time a message reaches this struct, display-name resolution and the
// newline-to-break HTML derivation are complete.
type Message struct {
	From     string            `json:"from"`
	FromName string            `json:"from_name"`
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	TextBody string            `json:"text_body"`
	HTMLBody string            `json:"html_body"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// SendResult is the normalized outcome a transport channel returns for one
// recipient. The Gmail API channel fills MessageID and nothing else (it
// either succeeds or errors). The SMTP channel fills Response plus the
// accepted/rejected lists, and its result is inherently ambiguous: a 250
// reply only proves acceptance by the relay, not final delivery.
type SendResult struct {
	MessageID string      `json:"message_id,omitempty"`
	Response  string      `json:"response,omitempty"`
	Accepted  []string    `json:"accepted,omitempty"`
	Rejected  []string    `json:"rejected,omitempty"`
	Channel   ChannelType `json:"channel"`
	SentAt    time.Time   `json:"sent_at"`
}
