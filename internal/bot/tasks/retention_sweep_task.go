package tasks

import (
	"context"
	"fmt"
	"time"
)

// newRetentionSweepTask creates the scheduled task that expires captured
// content older than the retention window. Each run drains overdue rows in
// batches: attachments are deleted first, then the ledger rows, until a
// fetch comes back empty. A failed cycle is abandoned and retried on the
// next scheduled run.
func newRetentionSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "retention_sweep")

	return func(ctx context.Context) error {
		window := time.Duration(deps.Config.Retention.Days) * 24 * time.Hour
		cutoff := time.Now().UTC().Add(-window)
		batchSize := deps.Config.Retention.SweepBatchSize

		log.InfoContext(ctx, "Starting retention sweep", "cutoff", cutoff, "batch_size", batchSize)
		startTime := time.Now()
		swept := 0

		for {
			rows, err := deps.Store.MessagesOlderThan(ctx, cutoff, batchSize)
			if err != nil {
				return fmt.Errorf("fetch overdue rows: %w", err)
			}
			if len(rows) == 0 {
				break
			}

			paths := make([]string, 0, len(rows))
			ids := make([]int64, 0, len(rows))
			for i := range rows {
				ids = append(ids, rows[i].ID)
				if rows[i].HasAttachment() {
					paths = append(paths, rows[i].FilePath.String)
				}
			}

			// Attachments first. If the row delete then fails, the retried
			// sweep re-deletes already-missing files, which is a no-op.
			deps.Attachments.DeleteAll(ctx, paths)

			if err := deps.Store.DeleteMessagesByIDs(ctx, ids); err != nil {
				return fmt.Errorf("delete %d overdue rows: %w", len(ids), err)
			}
			swept += len(rows)
		}

		log.InfoContext(ctx, "Retention sweep completed",
			"rows_swept", swept, "duration", time.Since(startTime))
		return nil
	}
}
