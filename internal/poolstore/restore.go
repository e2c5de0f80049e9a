package poolstore

import (
	"context"

	"github.com/maumercado/corosched/internal/logger"
)

// restorablePool is the slice of *pool.TaskPool[A, T] that RestoreAll
// needs: just the Restore half of its contract, so callers don't have to
// name A and T at the call site.
type restorablePool interface {
	Restore(data []byte) bool
}

// RestoreAll reloads every id persisted under store's prefix into p, via
// p.Restore. Intended to run once at process start, before the
// scheduler's event loop begins, so a ThrottledTaskPool resumes at its
// prior throttling state instead of starting cold. Returns how many ids
// were successfully restored; ids that p.Restore rejects (pool already
// at capacity, deserialize failure) are logged and skipped rather than
// aborting the whole reload.
func RestoreAll(ctx context.Context, store *Store, p restorablePool) (int, error) {
	ids, err := store.Keys(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, id := range ids {
		data, err := store.Load(ctx, id)
		if err != nil {
			logger.WithComponent("poolstore").Warn().Err(err).Str("id", id).Msg("RestoreAll: load failed, skipping")
			continue
		}
		if !p.Restore(data) {
			logger.WithComponent("poolstore").Warn().Str("id", id).Msg("RestoreAll: pool rejected restore, skipping")
			continue
		}
		restored++
	}
	return restored, nil
}
