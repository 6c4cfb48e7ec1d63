package model

import "time"

// LinkState is a read-only copy of the link manager's bookkeeping.
type LinkState struct {
	Connected           bool      `json:"connected"`
	LastAttempt         time.Time `json:"last_attempt"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}
