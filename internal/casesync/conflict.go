package casesync

import "github.com/veloxcase/cli/internal/schema"

// ConflictSlot holds at most one duplicate conflict awaiting a decision.
// It is guarded by the owning Orchestrator.
type ConflictSlot struct {
	pending *schema.DuplicateConflict
}

// Raise stores c, failing if a conflict is already held
func (s *ConflictSlot) Raise(c schema.DuplicateConflict) error {
	if s.pending != nil {
		return ErrConflictPending
	}
	s.pending = &c
	return nil
}

// Clear drops the held conflict
func (s *ConflictSlot) Clear() {
	s.pending = nil
}

// Pending returns a copy of the held conflict, or nil
func (s *ConflictSlot) Pending() *schema.DuplicateConflict {
	if s.pending == nil {
		return nil
	}
	c := *s.pending
	return &c
}

// Take returns the held conflict and clears the slot
func (s *ConflictSlot) Take() (schema.DuplicateConflict, bool) {
	if s.pending == nil {
		return schema.DuplicateConflict{}, false
	}
	c := *s.pending
	s.pending = nil
	return c, true
}
