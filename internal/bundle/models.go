package bundle

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a session bundle.
type Status string

const (
	StatusAccumulating Status = "accumulating"
	StatusReady        Status = "ready"
	StatusProcessing   Status = "processing"
	StatusDone         Status = "done"
	StatusFailed       Status = "failed"
)

var allStatuses = []Status{
	StatusAccumulating,
	StatusReady,
	StatusProcessing,
	StatusDone,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Bundle represents one session bundle persisted in SQLite.
type Bundle struct {
	ID           int64
	SessionKey   string
	Status       Status
	FileCount    int
	FirstSeenAt  time.Time
	LastSeenAt   time.Time
	ErrorMessage string
	LastPassID   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Quiet reports how long the bundle has gone without a new member file.
func (b Bundle) Quiet(now time.Time) time.Duration {
	return now.Sub(b.LastSeenAt)
}

// HealthSummary describes aggregated bundle counts per lifecycle state.
type HealthSummary struct {
	Total        int
	Accumulating int
	Ready        int
	Processing   int
	Done         int
	Failed       int
}
