// Package lifecycle enforces the source state machine over the source
// repository. Every state change in the system goes through the
// Tracker so illegal transitions are caught at one choke point.
package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/groundkit/groundkit/internal/domain"
)

type sourceRepo interface {
	Get(ctx context.Context, id string) (domain.Source, error)
	UpdateState(ctx context.Context, id string, to domain.State, cause string) error
}

// Tracker validates and applies source state transitions.
type Tracker struct {
	sources sourceRepo
	logger  *zap.Logger
}

// New creates a lifecycle tracker.
func New(sources sourceRepo, logger *zap.Logger) *Tracker {
	return &Tracker{sources: sources, logger: logger}
}

// Advance moves a source to next, validating the transition against
// its current state.
func (t *Tracker) Advance(ctx context.Context, id string, next domain.State) error {
	src, err := t.sources.Get(ctx, id)
	if err != nil {
		return err
	}
	if !src.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, src.Status, next)
	}
	if err := t.sources.UpdateState(ctx, id, next, ""); err != nil {
		return err
	}
	t.logger.Info("source state advanced",
		zap.String("source_id", id),
		zap.String("from", string(src.Status)),
		zap.String("to", string(next)))
	return nil
}

// Fail marks a source FAILED with a reason. Terminal states stay put:
// failing an already-failed or deleted source is a no-op error.
func (t *Tracker) Fail(ctx context.Context, id, reason string) error {
	src, err := t.sources.Get(ctx, id)
	if err != nil {
		return err
	}
	if !src.Status.CanTransition(domain.StateFailed) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, src.Status, domain.StateFailed)
	}
	if err := t.sources.UpdateState(ctx, id, domain.StateFailed, reason); err != nil {
		return err
	}
	t.logger.Warn("source failed",
		zap.String("source_id", id),
		zap.String("from", string(src.Status)),
		zap.String("reason", reason))
	return nil
}

// Reset returns a READY or FAILED source to PENDING for re-ingestion.
// A source already PENDING resets to itself: refreshing a queued source
// must not error, the touched timestamp makes it eligible for the next
// sweep even if its original enqueue was lost.
func (t *Tracker) Reset(ctx context.Context, id string) error {
	src, err := t.sources.Get(ctx, id)
	if err != nil {
		return err
	}
	if src.Status != domain.StatePending && !src.Status.CanTransition(domain.StatePending) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, src.Status, domain.StatePending)
	}
	return t.sources.UpdateState(ctx, id, domain.StatePending, "")
}

// Status returns the current source snapshot.
func (t *Tracker) Status(ctx context.Context, id string) (domain.Source, error) {
	return t.sources.Get(ctx, id)
}
