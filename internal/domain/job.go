package domain

import (
	"strings"
	"time"
)

// ChannelType identifies the delivery mechanism used for a job run.
type ChannelType string

const (
	ChannelGmailAPI ChannelType = "gmail_api"
	ChannelSMTP     ChannelType = "smtp"
)

// OAuth2Credentials holds the refresh-token credential set for the Gmail
// API channel. All three fields must be non-empty for the set to be usable.
type OAuth2Credentials struct {
	ClientID     string `json:"client_id" db:"oauth_client_id"`
	ClientSecret string `json:"client_secret" db:"oauth_client_secret"`
	RefreshToken string `json:"refresh_token" db:"oauth_refresh_token"`
}

// Complete reports whether all three OAuth2 fields are present.
func (c OAuth2Credentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// SMTPCredentials holds the application password for the SMTP channel.
// App passwords are issued in groups of 4 characters separated by spaces,
// so the raw value must be canonicalized before length validation.
type SMTPCredentials struct {
	AppPassword string `json:"app_password" db:"app_password"`
}

// Canonical returns the app password with all whitespace removed.
func (c SMTPCredentials) Canonical() string {
	return strings.Join(strings.Fields(c.AppPassword), "")
}

// Valid reports whether the canonicalized password is exactly 16 characters.
func (c SMTPCredentials) Valid() bool {
	return len(c.Canonical()) == 16
}

// Credentials is the tagged union of the two credential sets. Exactly one
// channel is selected per run; complete OAuth2 credentials take priority
// over an app password.
type Credentials struct {
	OAuth2 OAuth2Credentials `json:"oauth2"`
	SMTP   SMTPCredentials   `json:"smtp"`
}

// Redacted returns a copy safe for API responses and logs: secrets are
// masked, presence is still visible.
func (c Credentials) Redacted() Credentials {
	out := c
	if out.OAuth2.ClientSecret != "" {
		out.OAuth2.ClientSecret = "***"
	}
	if out.OAuth2.RefreshToken != "" {
		out.OAuth2.RefreshToken = "***"
	}
	if out.SMTP.AppPassword != "" {
		out.SMTP.AppPassword = "***"
	}
	return out
}

// SelectChannel resolves which delivery channel the credentials allow.
// Returns false if neither channel is usable.
func (c Credentials) SelectChannel() (ChannelType, bool) {
	if c.OAuth2.Complete() {
		return ChannelGmailAPI, true
	}
	if c.SMTP.Valid() {
		return ChannelSMTP, true
	}
	return "", false
}

// JobStatus enumerates the lifecycle states of a send job.
type JobStatus string

const (
	JobDraft   JobStatus = "draft"
	JobSending JobStatus = "sending"
	JobSent    JobStatus = "sent"
	JobFailed  JobStatus = "failed"
)

// Job represents a "send email to recipients" job with its content,
// recipient list, and delivery credentials.
type Job struct {
	ID          string      `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	FromEmail   string      `json:"from_email" db:"from_email"`
	DisplayName string      `json:"display_name" db:"display_name"`
	ProfileID   string      `json:"profile_id" db:"profile_id"`
	Recipients  []string    `json:"recipients" db:"recipients"`
	Subject     string      `json:"subject" db:"subject"`
	Body        string      `json:"body" db:"body"`
	Credentials Credentials `json:"credentials"`
	Status      JobStatus   `json:"status" db:"status"`

	// Stats (read-only, populated after runs)
	TotalRecipients int `json:"total_recipients" db:"total_recipients"`
	SentCount       int `json:"sent_count" db:"sent_count"`
	FailedCount     int `json:"failed_count" db:"failed_count"`

	LastRunAt *time.Time `json:"last_run_at" db:"last_run_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// HTMLBody derives the HTML variant of the plain-text body by substituting
// newlines with break tags. The tool owns no real templating.
func (j *Job) HTMLBody() string {
	return strings.ReplaceAll(j.Body, "\n", "<br>")
}

// Profile is a sender identity resolved from the profile directory.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}
