// Package conflict resolves divergent edits between the local copy of a
// task and the version held by the remote authority, using last-write-
// wins on the modification timestamp.
package conflict

import (
	"time"

	"task-sync/backend/internal/models"
	"task-sync/backend/internal/protocol"
)

// Winner identifies which side a resolution picked.
type Winner string

const (
	WinnerLocal  Winner = "local"
	WinnerRemote Winner = "remote"
)

// Resolution is the outcome of resolving one conflict. Task carries the
// full field set the caller should commit; the losing side's divergent
// edits are discarded.
type Resolution struct {
	Task   models.Task
	Winner Winner
}

// Resolve compares the local task against the remote-supplied version
// and returns the winner with sync bookkeeping already settled. Ties on
// updated_at favor local, the party initiating the resync. Resolve is
// deterministic and never writes to storage; the caller commits.
func Resolve(local models.Task, remote protocol.TaskPayload, now time.Time) Resolution {
	resolved := local
	winner := WinnerLocal

	if local.UpdatedAt.Before(remote.UpdatedAt) {
		winner = WinnerRemote
		resolved.Title = remote.Title
		resolved.Description = remote.Description
		resolved.Completed = remote.Completed
		resolved.IsDeleted = remote.IsDeleted
		resolved.UpdatedAt = remote.UpdatedAt
	}

	if remote.ServerID != "" {
		resolved.ServerID = remote.ServerID
	}
	resolved.SyncStatus = models.SyncStatusSynced
	syncedAt := now
	resolved.LastSyncedAt = &syncedAt

	return Resolution{Task: resolved, Winner: winner}
}
