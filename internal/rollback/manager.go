package rollback

import (
	"context"
	"fmt"
	"log/slog"

	"curator/internal/drive"
	"curator/internal/logging"
)

// Reverser is the slice of the drive contract replay needs.
type Reverser interface {
	drive.Mover
	drive.Trasher
}

// Result summarizes one rollback replay.
type Result struct {
	SessionID  string
	Reversed   int
	Skipped    int
	Remaining  int
	RolledBack bool
}

// Manager replays session logs against the remote drive.
type Manager struct {
	store  *Store
	client Reverser
	logger *slog.Logger
}

// NewManager constructs a Manager.
func NewManager(store *Store, client Reverser, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		client: client,
		logger: logging.NewComponentLogger(logger, "rollback"),
	}
}

// Store exposes the underlying session store.
func (m *Manager) Store() *Store {
	return m.store
}

// Rollback replays the session's pending operations in reverse append order.
// Each reversed operation is flagged immediately, so a cancelled or failed
// replay can be resumed without double-reversing. The session reaches
// rolled_back only when the pending list is exhausted; on partial failure it
// stays active and the error reports what remains.
func (m *Manager) Rollback(ctx context.Context, sessionID string) (Result, error) {
	result := Result{SessionID: sessionID}

	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return result, err
	}
	if session.Status != StatusActive {
		return result, fmt.Errorf("%w: %s is %s", ErrSessionNotActive, sessionID, session.Status)
	}

	pending, err := m.store.PendingOperations(ctx, sessionID)
	if err != nil {
		return result, err
	}
	result.Remaining = len(pending)

	for _, op := range pending {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("rollback interrupted with %d operations remaining: %w", result.Remaining, err)
		}

		if !op.Reversible {
			m.logger.Warn("skipping non-reversible operation",
				logging.String(logging.FieldSessionID, sessionID),
				logging.String(logging.FieldTargetID, op.ItemID),
				logging.String("kind", string(op.Kind)))
			if err := m.store.MarkReversed(ctx, op.ID); err != nil {
				return result, err
			}
			result.Skipped++
			result.Remaining--
			continue
		}

		if err := m.reverse(ctx, op); err != nil {
			return result, fmt.Errorf("reverse operation %d (%s %s) with %d remaining: %w",
				op.Seq, op.Kind, op.ItemID, result.Remaining, err)
		}
		if err := m.store.MarkReversed(ctx, op.ID); err != nil {
			return result, err
		}
		result.Reversed++
		result.Remaining--

		m.logger.Debug("reversed operation",
			logging.String(logging.FieldSessionID, sessionID),
			logging.String(logging.FieldTargetID, op.ItemID),
			logging.String("kind", string(op.Kind)),
			logging.Int("seq", op.Seq))
	}

	if err := m.store.MarkRolledBack(ctx, sessionID); err != nil {
		return result, err
	}
	result.RolledBack = true

	m.logger.Info("session rolled back",
		logging.String(logging.FieldSessionID, sessionID),
		logging.Int("reversed", result.Reversed),
		logging.Int("skipped", result.Skipped))
	return result, nil
}

func (m *Manager) reverse(ctx context.Context, op Operation) error {
	switch op.Kind {
	case ActionMove:
		return m.client.MoveItem(ctx, op.ItemID, op.FromParentID)
	case ActionTrash:
		return m.client.UntrashItem(ctx, op.ItemID)
	default:
		return drive.Wrap(drive.ErrStructural, "rollback", "reverse", "unknown action kind "+string(op.Kind), nil)
	}
}
