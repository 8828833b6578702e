package casesync

import "github.com/veloxcase/cli/internal/schema"

// Results is the ordered, append-only list of entries of one operation.
// It is guarded by the owning Orchestrator.
type Results struct {
	entries []schema.SyncResultEntry
}

// Append adds one entry at the end
func (r *Results) Append(e schema.SyncResultEntry) {
	r.entries = append(r.entries, e)
}

// Reset drops every entry, starting a new operation
func (r *Results) Reset() {
	r.entries = nil
}

// Len returns the number of entries
func (r *Results) Len() int {
	return len(r.entries)
}

// Entries returns a copy of the entries in insertion order
func (r *Results) Entries() []schema.SyncResultEntry {
	out := make([]schema.SyncResultEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Summary counts entries by status
func (r *Results) Summary() schema.Summary {
	return Summarize(r.entries)
}

// AllSucceeded reports whether there is at least one entry and every entry
// succeeded
func (r *Results) AllSucceeded() bool {
	s := r.Summary()
	return s.Total() > 0 && s.Success == s.Total()
}

// PartiallySucceeded reports whether some but not all entries succeeded
func (r *Results) PartiallySucceeded() bool {
	s := r.Summary()
	return s.Success > 0 && s.Success < s.Total()
}

// Summarize counts entries by status in a single pass
func Summarize(entries []schema.SyncResultEntry) schema.Summary {
	var s schema.Summary
	for _, e := range entries {
		switch e.Status {
		case schema.StatusSuccess:
			s.Success++
		case schema.StatusDuplicate:
			s.Duplicate++
		case schema.StatusError:
			s.Error++
		}
	}
	return s
}
