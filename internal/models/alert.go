package models

import "time"

// Alert is a dispatch request derived from an incident.
type Alert struct {
	Key      string                 `json:"key"`
	Severity Severity               `json:"severity"`
	Subject  string                 `json:"subject"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// Channel identifies a notification transport.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ChannelAttempt records one per-recipient delivery attempt.
type ChannelAttempt struct {
	Channel   Channel `json:"channel"`
	Recipient string  `json:"recipient"`
	OK        bool    `json:"ok"`
	Error     string  `json:"error,omitempty"`
}

// DispatchResult is the outcome of one dispatch call. Suppressed results
// carry zero attempts: no transport was contacted.
type DispatchResult struct {
	Key        string           `json:"key"`
	Suppressed bool             `json:"suppressed"`
	Attempts   []ChannelAttempt `json:"attempts,omitempty"`
	SentAt     *time.Time       `json:"sent_at,omitempty"`
}

// Delivered reports whether at least one channel attempt succeeded.
func (r DispatchResult) Delivered() bool {
	for _, a := range r.Attempts {
		if a.OK {
			return true
		}
	}
	return false
}
