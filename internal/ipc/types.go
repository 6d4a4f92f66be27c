package ipc

import "time"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and store status information.
type StatusResponse struct {
	Running      bool           `json:"running"`
	BundleStats  map[string]int `json:"bundle_stats"`
	CarDir       string         `json:"car_dir"`
	InboxDir     string         `json:"inbox_dir"`
	BundleDBPath string         `json:"bundle_db_path"`
	LockPath     string         `json:"lock_path"`
	PID          int            `json:"pid"`
}

// Session mirrors one bundle row for IPC callers.
type Session struct {
	SessionKey   string    `json:"session_key"`
	Status       string    `json:"status"`
	FileCount    int       `json:"file_count"`
	FirstSeenAt  time.Time `json:"first_seen_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	ErrorMessage string    `json:"error_message,omitempty"`
	LastPassID   string    `json:"last_pass_id,omitempty"`
}

// SessionsListRequest filters the session listing by status.
type SessionsListRequest struct {
	Statuses []string `json:"statuses"`
}

// SessionsListResponse contains bundle rows.
type SessionsListResponse struct {
	Sessions []Session `json:"sessions"`
}

// RetryRequest retries failed bundles. Empty list means all failed bundles.
type RetryRequest struct {
	SessionKeys []string `json:"session_keys"`
}

// RetryResponse reports the number of retried bundles.
type RetryResponse struct {
	Updated int64 `json:"updated"`
}

// ClearDoneRequest removes done bundle rows.
type ClearDoneRequest struct{}

// ClearDoneResponse reports the number of removed rows.
type ClearDoneResponse struct {
	Removed int64 `json:"removed"`
}
