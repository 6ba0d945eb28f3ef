package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yuehan/english-tutor/internal/storage"
)

// TaskMaintenance prunes stored conversation history and compacts the
// database file.
const TaskMaintenance = "maintenance"

// NewMaintenanceTask builds the cache maintenance task.
func NewMaintenanceTask(log *slog.Logger, store *storage.Store, maxStored int) TaskFunc {
	taskLog := log.With("task", TaskMaintenance)

	return func(ctx context.Context) error {
		taskLog.InfoContext(ctx, "Starting cache maintenance")

		if err := store.Maintain(ctx, maxStored); err != nil {
			return fmt.Errorf("cache maintenance failed: %w", err)
		}

		taskLog.InfoContext(ctx, "Cache maintenance completed")
		return nil
	}
}
