package models

import "time"

const (
	EventOTPIssued         = "otp.issued"
	EventOTPDispatchFailed = "otp.dispatch_failed"
	EventOTPVerified       = "otp.verified"
	EventOTPRejected       = "otp.rejected"
)

// SecurityEvent is an audit trail entry. Identity is always masked.
type SecurityEvent struct {
	EventID     string    `json:"event_id" ch:"event_id"`
	EventBucket int       `json:"event_bucket" ch:"event_bucket"`
	EventDate   string    `json:"event_date" ch:"event_date"`
	EventTime   time.Time `json:"event_time" ch:"event_time"`
	EventType   string    `json:"event_type" ch:"event_type"`
	Identity    string    `json:"identity" ch:"identity"`
	Reason      string    `json:"reason,omitempty" ch:"reason"`
	TokenID     string    `json:"token_id,omitempty" ch:"token_id"`
	SourceIP    string    `json:"source_ip,omitempty" ch:"source_ip"`
	RequestID   string    `json:"request_id,omitempty" ch:"request_id"`
}
