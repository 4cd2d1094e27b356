package drive

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for the engine error taxonomy. Every error crossing a
// package boundary is wrapped with exactly one of these so callers can match
// exhaustively.
var (
	// ErrTransient tags timeouts, rate limits, and 5xx-style remote failures.
	// Retried with bounded backoff, never fatal on first occurrence.
	ErrTransient = errors.New("transient remote failure")
	// ErrStructural tags corrupt local state (malformed manifest or cache
	// JSON, unexpected tree shape). Fatal, never retried.
	ErrStructural = errors.New("structural error")
	// ErrCapacity tags remote size-limit rejections. Locally recoverable by
	// degrading to a minimal payload.
	ErrCapacity = errors.New("capacity limit")
	// ErrNotFound tags missing remote items.
	ErrNotFound = errors.New("not found")
	// ErrConflict tags idempotency conflicts resolved by read-before-write.
	ErrConflict = errors.New("idempotency conflict")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the error is worth retrying. A per-call deadline
// expiry counts as transient; caller cancellation never does.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return errors.Is(err, ErrTransient)
}

// IsStructural reports whether the error is tagged as corrupt local state.
func IsStructural(err error) bool { return errors.Is(err, ErrStructural) }

// IsNotFound reports whether the error is tagged as a missing remote item.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func isCapacity(err error) bool { return errors.Is(err, ErrCapacity) }

func hasMarker(err error) bool {
	for _, marker := range []error{ErrTransient, ErrStructural, ErrCapacity, ErrNotFound, ErrConflict} {
		if errors.Is(err, marker) {
			return true
		}
	}
	return false
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "remote failure"
	}
	return strings.Join(parts, ": ")
}
