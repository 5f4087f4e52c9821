package conflict_test

import (
	"testing"
	"time"

	"task-sync/backend/internal/conflict"
	"task-sync/backend/internal/models"
	"task-sync/backend/internal/protocol"

	"github.com/gofrs/uuid"
)

func makeLocal(updatedAt time.Time) models.Task {
	return models.Task{
		ID:          uuid.Must(uuid.NewV4()),
		UserID:      uuid.Must(uuid.NewV4()),
		Title:       "Local Title",
		Description: "Local Description",
		Completed:   false,
		SyncStatus:  models.SyncStatusPending,
		CreatedAt:   updatedAt.Add(-time.Hour),
		UpdatedAt:   updatedAt,
	}
}

func makeRemote(updatedAt time.Time) protocol.TaskPayload {
	return protocol.TaskPayload{
		ID:          uuid.Must(uuid.NewV4()).String(),
		ServerID:    uuid.Must(uuid.NewV4()).String(),
		Title:       "Remote Title",
		Description: "Remote Description",
		Completed:   true,
		CreatedAt:   updatedAt.Add(-time.Hour),
		UpdatedAt:   updatedAt,
	}
}

func TestResolve_LocalNewerWins(t *testing.T) {
	base := time.Now()
	local := makeLocal(base)
	remote := makeRemote(base.Add(-time.Minute))

	resolution := conflict.Resolve(local, remote, base)

	if resolution.Winner != conflict.WinnerLocal {
		t.Errorf("Expected local to win, got %s", resolution.Winner)
	}

	if resolution.Task.Title != "Local Title" {
		t.Errorf("Expected local title to survive, got '%s'", resolution.Task.Title)
	}

	if resolution.Task.Completed {
		t.Error("Expected local completed state to survive")
	}
}

func TestResolve_RemoteNewerWins(t *testing.T) {
	base := time.Now()
	local := makeLocal(base.Add(-time.Minute))
	remote := makeRemote(base)

	resolution := conflict.Resolve(local, remote, base)

	if resolution.Winner != conflict.WinnerRemote {
		t.Errorf("Expected remote to win, got %s", resolution.Winner)
	}

	if resolution.Task.Title != "Remote Title" {
		t.Errorf("Expected remote title to be adopted, got '%s'", resolution.Task.Title)
	}

	if !resolution.Task.Completed {
		t.Error("Expected remote completed state to be adopted")
	}

	if !resolution.Task.UpdatedAt.Equal(remote.UpdatedAt) {
		t.Errorf("Expected remote updated_at to be adopted, got %v", resolution.Task.UpdatedAt)
	}
}

func TestResolve_TieFavorsLocal(t *testing.T) {
	base := time.Now()
	local := makeLocal(base)
	remote := makeRemote(base)

	resolution := conflict.Resolve(local, remote, base)

	if resolution.Winner != conflict.WinnerLocal {
		t.Errorf("Expected tie to favor local, got %s", resolution.Winner)
	}

	if resolution.Task.Title != "Local Title" {
		t.Errorf("Expected local title on tie, got '%s'", resolution.Task.Title)
	}
}

func TestResolve_KeepsLocalIdentity(t *testing.T) {
	base := time.Now()
	local := makeLocal(base.Add(-time.Minute))
	remote := makeRemote(base)

	resolution := conflict.Resolve(local, remote, base)

	if resolution.Task.ID != local.ID {
		t.Errorf("Expected resolved task to keep local id %s, got %s", local.ID, resolution.Task.ID)
	}

	if resolution.Task.UserID != local.UserID {
		t.Error("Expected resolved task to keep local owner")
	}
}

func TestResolve_AdoptsServerID(t *testing.T) {
	base := time.Now()
	local := makeLocal(base)
	remote := makeRemote(base.Add(-time.Minute))

	resolution := conflict.Resolve(local, remote, base)

	if resolution.Task.ServerID != remote.ServerID {
		t.Errorf("Expected server id %s even when local wins, got '%s'",
			remote.ServerID, resolution.Task.ServerID)
	}
}

func TestResolve_SettlesSyncBookkeeping(t *testing.T) {
	base := time.Now()
	local := makeLocal(base)
	remote := makeRemote(base.Add(-time.Minute))

	resolution := conflict.Resolve(local, remote, base)

	if resolution.Task.SyncStatus != models.SyncStatusSynced {
		t.Errorf("Expected sync status synced, got '%s'", resolution.Task.SyncStatus)
	}

	if resolution.Task.LastSyncedAt == nil || !resolution.Task.LastSyncedAt.Equal(base) {
		t.Errorf("Expected last_synced_at %v, got %v", base, resolution.Task.LastSyncedAt)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	base := time.Now()
	local := makeLocal(base.Add(-time.Minute))
	remote := makeRemote(base)

	first := conflict.Resolve(local, remote, base)
	second := conflict.Resolve(local, remote, base)

	if first.Winner != second.Winner {
		t.Errorf("Expected identical winner on repeated resolution, got %s then %s",
			first.Winner, second.Winner)
	}

	if first.Task.Title != second.Task.Title ||
		!first.Task.UpdatedAt.Equal(second.Task.UpdatedAt) {
		t.Error("Expected identical resolved task on repeated resolution")
	}
}

func TestResolve_RemoteDeletionPropagates(t *testing.T) {
	base := time.Now()
	local := makeLocal(base.Add(-time.Minute))
	remote := makeRemote(base)
	remote.IsDeleted = true

	resolution := conflict.Resolve(local, remote, base)

	if !resolution.Task.IsDeleted {
		t.Error("Expected newer remote deletion to win")
	}
}
