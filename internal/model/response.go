package model

import "time"

// Response is the orchestrator's answer to one inbound message.
type Response struct {
	Timestamp            time.Time         `json:"timestamp"`
	Metadata             map[string]string `json:"metadata,omitempty"`
	SessionID            string            `json:"session_id"`
	Message              string            `json:"message"`
	Intent               Intent            `json:"intent,omitempty"`
	Confidence           float64           `json:"confidence,omitempty"`
	RequiresAuth         bool              `json:"requires_auth"`
	RequiresConfirmation bool              `json:"requires_confirmation"`
	Error                bool              `json:"error,omitempty"`
}
