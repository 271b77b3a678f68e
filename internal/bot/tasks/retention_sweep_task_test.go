package tasks_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ykaravaev/secretarybot/internal/bot/tasks"
	"github.com/ykaravaev/secretarybot/internal/config"
	"github.com/ykaravaev/secretarybot/internal/database"
)

// sweepStore is an in-memory ledger for sweep tests.
type sweepStore struct {
	rows     []database.CapturedMessage
	fetchErr error
	delErr   error
	deleted  [][]int64
}

func (s *sweepStore) Ping(context.Context) error { return nil }

func (s *sweepStore) GetOrCreateOwner(_ context.Context, owner *database.Owner) (*database.Owner, error) {
	return owner, nil
}

func (s *sweepStore) AppendMessage(_ context.Context, msg *database.CapturedMessage) error {
	s.rows = append(s.rows, *msg)
	return nil
}

func (s *sweepStore) LatestVersion(context.Context, int64, int64, int) (*database.CapturedMessage, error) {
	return nil, nil
}

func (s *sweepStore) MessagesOlderThan(_ context.Context, cutoff time.Time, limit int) ([]database.CapturedMessage, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	var out []database.CapturedMessage
	for _, row := range s.rows {
		if !row.CapturedAt.After(cutoff) && len(out) < limit {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *sweepStore) DeleteMessagesByIDs(_ context.Context, ids []int64) error {
	if s.delErr != nil {
		return s.delErr
	}
	s.deleted = append(s.deleted, ids)
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := s.rows[:0]
	for _, row := range s.rows {
		if !drop[row.ID] {
			kept = append(kept, row)
		}
	}
	s.rows = kept
	return nil
}

// recordingDeleter records every DeleteAll batch.
type recordingDeleter struct {
	batches [][]string
}

func (d *recordingDeleter) DeleteAll(_ context.Context, paths []string) {
	d.batches = append(d.batches, paths)
}

func sweepDeps(store *sweepStore, deleter *recordingDeleter, days, batch int) tasks.TaskDeps {
	return tasks.TaskDeps{
		Logger:      slog.New(slog.DiscardHandler),
		Store:       store,
		Attachments: deleter,
		Config: &config.Config{
			Retention: config.RetentionConfig{
				Days:                 days,
				SweepIntervalSeconds: 3600,
				SweepBatchSize:       batch,
			},
		},
	}
}

func sweepTask(t *testing.T, deps tasks.TaskDeps) tasks.ScheduledTaskFunc {
	t.Helper()
	task, ok := tasks.RegisterAllTasks(deps)["retention_sweep"]
	if !ok {
		t.Fatal("retention_sweep task not registered")
	}
	return task
}

func agedRow(id int64, age time.Duration, path string) database.CapturedMessage {
	row := database.CapturedMessage{
		ID:          id,
		OwnerID:     500,
		ChatID:      100,
		MessageID:   int(id),
		ContentType: database.ContentTypeText,
		CapturedAt:  time.Now().UTC().Add(-age),
	}
	if path != "" {
		row.ContentType = database.ContentTypePhoto
		row.FilePath = sql.NullString{String: path, Valid: true}
	}
	return row
}

func TestSweepDeletesOnlyOverdueRows(t *testing.T) {
	t.Parallel()

	const day = 24 * time.Hour
	store := &sweepStore{rows: []database.CapturedMessage{
		agedRow(1, 31*day, "/cache/old.jpg"),
		agedRow(2, 30*day+time.Minute, ""),
		agedRow(3, 29*day, "/cache/fresh.jpg"),
	}}
	deleter := &recordingDeleter{}

	if err := sweepTask(t, sweepDeps(store, deleter, 30, 100))(context.Background()); err != nil {
		t.Fatalf("sweep returned error: %v", err)
	}

	if len(store.rows) != 1 || store.rows[0].ID != 3 {
		t.Errorf("remaining rows = %+v, want only row 3", store.rows)
	}
	if len(deleter.batches) != 1 {
		t.Fatalf("deleter called %d times, want 1", len(deleter.batches))
	}
	if len(deleter.batches[0]) != 1 || deleter.batches[0][0] != "/cache/old.jpg" {
		t.Errorf("deleted paths = %v, want [/cache/old.jpg]", deleter.batches[0])
	}
}

func TestSweepEmptyOverdueSetDoesNothing(t *testing.T) {
	t.Parallel()

	store := &sweepStore{rows: []database.CapturedMessage{
		agedRow(1, time.Hour, ""),
	}}
	deleter := &recordingDeleter{}

	if err := sweepTask(t, sweepDeps(store, deleter, 30, 100))(context.Background()); err != nil {
		t.Fatalf("sweep returned error: %v", err)
	}

	if len(store.deleted) != 0 {
		t.Errorf("row deletions = %v, want none", store.deleted)
	}
	if len(deleter.batches) != 0 {
		t.Errorf("attachment deletions = %v, want none", deleter.batches)
	}
}

func TestSweepDrainsInBatches(t *testing.T) {
	t.Parallel()

	const day = 24 * time.Hour
	store := &sweepStore{rows: []database.CapturedMessage{
		agedRow(1, 40*day, "/cache/a.jpg"),
		agedRow(2, 39*day, "/cache/b.jpg"),
		agedRow(3, 38*day, ""),
	}}
	deleter := &recordingDeleter{}

	if err := sweepTask(t, sweepDeps(store, deleter, 30, 1))(context.Background()); err != nil {
		t.Fatalf("sweep returned error: %v", err)
	}

	if len(store.rows) != 0 {
		t.Errorf("%d rows left after sweep, want 0", len(store.rows))
	}
	if len(store.deleted) != 3 {
		t.Errorf("row deletion ran %d times, want 3 (batch size 1)", len(store.deleted))
	}
}

func TestSweepFetchFailureAbandonsCycle(t *testing.T) {
	t.Parallel()

	fetchErr := errors.New("database unreachable")
	store := &sweepStore{fetchErr: fetchErr}
	deleter := &recordingDeleter{}

	err := sweepTask(t, sweepDeps(store, deleter, 30, 100))(context.Background())
	if !errors.Is(err, fetchErr) {
		t.Errorf("sweep error = %v, want wrapped %v", err, fetchErr)
	}
	if len(deleter.batches) != 0 {
		t.Errorf("attachments were deleted despite fetch failure")
	}
}
