// Package httpapi provides the HTTP trigger API.
package httpapi

import "time"

const (
	// AdminTokenHeader is the header name for admin authentication token.
	AdminTokenHeader = "X-Admin-Token"
)

// PlayResponse is returned by POST /v1/sequences/{name}/play.
type PlayResponse struct {
	Sequence string `json:"sequence"`
	Outcome  string `json:"outcome"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`
}

// AbortResponse is returned by POST /v1/abort.
type AbortResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ResetResponse is returned by POST /v1/reset.
type ResetResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// QueueEntry is a pending clip in a StatusResponse.
type QueueEntry struct {
	Sequence string  `json:"sequence"`
	Clip     string  `json:"clip"`
	AgeSec   float64 `json:"age_sec"`
}

// StatusResponse is returned by GET /v1/status.
type StatusResponse struct {
	SessionID     string       `json:"session_id"`
	StartedAt     time.Time    `json:"started_at"`
	Running       bool         `json:"running"`
	Playback      string       `json:"playback"`
	CurrentClip   string       `json:"current_clip,omitempty"`
	Active        []string     `json:"active"`
	Queue         []QueueEntry `json:"queue"`
	Seen          []string     `json:"seen"`
	LastQueueTime time.Time    `json:"last_queue_time"`
	Subscribers   int          `json:"subscribers"`
}

// ErrorResponse is the body of non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}
