// Package crawler discovers candidate notification documents on the listing
// pages of registered government sources.
package crawler

import "time"

// TriageStatus tracks what downstream consumers have done with a candidate.
type TriageStatus string

// Triage states. The crawler only ever creates NEW candidates; consumers
// advance them.
const (
	StatusNew       TriageStatus = "NEW"
	StatusProcessed TriageStatus = "PROCESSED"
	StatusIgnored   TriageStatus = "IGNORED"
)

// CandidateReference is a discovered but not-yet-processed document link.
// The normalized URL is the deduplication key within a scan cycle.
type CandidateReference struct {
	SourceID     string       `json:"source_id"`
	Title        string       `json:"title"`
	URL          string       `json:"url"`
	DiscoveredAt time.Time    `json:"discovered_at"`
	Status       TriageStatus `json:"status"`
}

// Clock returns the current time (injectable for tests).
type Clock interface {
	Now() time.Time
}
