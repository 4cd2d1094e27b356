package drive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"curator/internal/logging"
)

// RetryPolicy bounds the retry behavior of the retrying client.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	CallTimeout    time.Duration
}

// DefaultRetryPolicy matches the repository config defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    4,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		CallTimeout:    30 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 2 * time.Second
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.CallTimeout <= 0 {
		p.CallTimeout = 30 * time.Second
	}
	return p
}

// Retrying wraps a Client so every call runs under a bounded timeout and
// transient failures are retried with capped exponential backoff. Structural,
// capacity, and not-found errors pass through untouched on the first attempt.
type Retrying struct {
	inner  Client
	policy RetryPolicy
	logger *slog.Logger
}

// NewRetrying builds the retrying decorator around inner.
func NewRetrying(inner Client, policy RetryPolicy, logger *slog.Logger) *Retrying {
	return &Retrying{
		inner:  inner,
		policy: policy.normalized(),
		logger: logging.NewComponentLogger(logger, "drive"),
	}
}

func (r *Retrying) ListChildren(ctx context.Context, folderID, pageToken string) (ChildPage, error) {
	var page ChildPage
	err := r.do(ctx, "list_children", folderID, func(callCtx context.Context) error {
		var callErr error
		page, callErr = r.inner.ListChildren(callCtx, folderID, pageToken)
		return callErr
	})
	return page, err
}

func (r *Retrying) MoveItem(ctx context.Context, itemID, newParentID string) error {
	return r.do(ctx, "move_item", itemID, func(callCtx context.Context) error {
		return r.inner.MoveItem(callCtx, itemID, newParentID)
	})
}

func (r *Retrying) TrashItem(ctx context.Context, itemID string) error {
	return r.do(ctx, "trash_item", itemID, func(callCtx context.Context) error {
		return r.inner.TrashItem(callCtx, itemID)
	})
}

func (r *Retrying) UntrashItem(ctx context.Context, itemID string) error {
	return r.do(ctx, "untrash_item", itemID, func(callCtx context.Context) error {
		return r.inner.UntrashItem(callCtx, itemID)
	})
}

func (r *Retrying) GetMetadata(ctx context.Context, itemID string) (Metadata, error) {
	var meta Metadata
	err := r.do(ctx, "get_metadata", itemID, func(callCtx context.Context) error {
		var callErr error
		meta, callErr = r.inner.GetMetadata(callCtx, itemID)
		return callErr
	})
	return meta, err
}

// UpdateMetadata retries transient failures like every other call and
// additionally degrades to patch.Minimal() when the remote rejects the full
// patch for size. The capacity error is not surfaced to the caller.
func (r *Retrying) UpdateMetadata(ctx context.Context, itemID string, patch MetadataPatch) error {
	err := r.do(ctx, "update_metadata", itemID, func(callCtx context.Context) error {
		return r.inner.UpdateMetadata(callCtx, itemID, patch)
	})
	if err == nil || !isCapacity(err) {
		return err
	}

	r.logger.Warn("metadata patch exceeded remote size limit, retrying with minimal patch",
		logging.String(logging.FieldTargetID, itemID))
	return r.do(ctx, "update_metadata_minimal", itemID, func(callCtx context.Context) error {
		return r.inner.UpdateMetadata(callCtx, itemID, patch.Minimal())
	})
}

func (r *Retrying) do(ctx context.Context, operation, targetID string, call func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, r.policy.CallTimeout)
		err := call(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if !Retryable(err) || attempt == r.policy.MaxAttempts {
			break
		}

		backoff := r.policy.InitialBackoff * time.Duration(1<<uint(attempt-1))
		if backoff > r.policy.MaxBackoff {
			backoff = r.policy.MaxBackoff
		}
		r.logger.Warn("remote call failed, backing off",
			logging.String(logging.FieldOperation, operation),
			logging.String(logging.FieldTargetID, targetID),
			logging.Int("attempt", attempt),
			logging.Duration("backoff", backoff),
			logging.Error(err))
		if err := sleepWithContext(ctx, backoff); err != nil {
			return Wrap(ErrTransient, "drive", operation, "retry interrupted", err)
		}
	}
	if hasMarker(lastErr) {
		return fmt.Errorf("drive: %s: target %s: %w", operation, targetID, lastErr)
	}
	// Unmarked remote failures default to transient so they stay retryable
	// for the caller even after the local attempts are exhausted.
	return Wrap(ErrTransient, "drive", operation, "target "+targetID, lastErr)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
