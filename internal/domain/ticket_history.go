package domain

import "time"

// StatusHistoryEntry is an immutable audit trail entry written once per status change.
type StatusHistoryEntry struct {
	ID       string
	TicketID string
	// Seq is assigned by the store and defines history order.
	Seq         int64
	FromStatus  *TicketStatus
	ToStatus    TicketStatus
	Comment     *string
	ChangedByID *string
	CreatedAt   time.Time
}

// NewestFirst returns a reversed copy of entries stored oldest-first.
func NewestFirst(entries []StatusHistoryEntry) []StatusHistoryEntry {
	out := make([]StatusHistoryEntry, len(entries))
	for i := range entries {
		out[len(entries)-1-i] = entries[i]
	}
	return out
}
