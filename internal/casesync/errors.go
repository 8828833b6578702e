package casesync

import (
	"context"
	"errors"
	"fmt"

	"github.com/veloxcase/cli/internal/client"
)

var (
	// ErrAIDisabled is returned by Analyze when AI analysis is switched off
	ErrAIDisabled = errors.New("AI analysis is disabled")

	// ErrAlreadyInProgress is returned by Sync while another operation is
	// submitting or waiting for a duplicate decision
	ErrAlreadyInProgress = errors.New("a sync operation is already in progress")

	// ErrNoActiveConflict is returned when a decision arrives with no
	// duplicate pending
	ErrNoActiveConflict = errors.New("no duplicate conflict is pending")

	// ErrSuperseded is returned for a preview or analysis whose response
	// arrived after a newer request was issued
	ErrSuperseded = errors.New("request superseded by a newer one")

	// ErrConflictPending is returned when a second conflict is raised while
	// one is still held
	ErrConflictPending = errors.New("a duplicate conflict is already pending")
)

// isFatal reports whether err ends the whole operation rather than one entry
func isFatal(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, client.ErrUnauthorized) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// asUpstream keeps classified errors and files everything else as upstream
func asUpstream(err error) error {
	for _, known := range []error{
		client.ErrValidation,
		client.ErrNotFound,
		client.ErrUnauthorized,
		client.ErrConflict,
		client.ErrNetwork,
		client.ErrUpstream,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", client.ErrUpstream, err)
}
