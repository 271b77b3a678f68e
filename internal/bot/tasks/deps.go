// Package tasks implements the bot's scheduled background tasks, including
// the retention sweeper, with their registration mechanism.
package tasks

import (
	"context"
	"log/slog"

	"github.com/ykaravaev/secretarybot/internal/config"
	"github.com/ykaravaev/secretarybot/internal/database"
)

// AttachmentDeleter is the slice of the attachment store the sweeper needs.
// *content.Store satisfies it.
type AttachmentDeleter interface {
	DeleteAll(ctx context.Context, paths []string)
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger      *slog.Logger
	Store       database.Store
	Attachments AttachmentDeleter
	Config      *config.Config
}
