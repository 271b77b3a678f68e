// Package logger provides structured logging for the bot. It uses Go's slog
// package with configurable levels and formats.
package logger

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewLogger creates a new slog Logger with the specified level and format.
// If jsonOutput is true, logs are formatted as JSON, otherwise as text.
func NewLogger(levelStr string, jsonOutput bool) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Middleware creates a logging middleware for the Telegram bot. It logs
// every inbound update, including business updates, at debug level.
func Middleware(log *slog.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			switch {
			case update.BusinessMessage != nil:
				log.DebugContext(ctx, "Business message received",
					"update_id", update.ID,
					"chat_id", update.BusinessMessage.Chat.ID,
					"message_id", update.BusinessMessage.ID)
			case update.EditedBusinessMessage != nil:
				log.DebugContext(ctx, "Business message edited",
					"update_id", update.ID,
					"chat_id", update.EditedBusinessMessage.Chat.ID,
					"message_id", update.EditedBusinessMessage.ID)
			case update.DeletedBusinessMessages != nil:
				log.DebugContext(ctx, "Business messages deleted",
					"update_id", update.ID,
					"chat_id", update.DeletedBusinessMessages.Chat.ID,
					"count", len(update.DeletedBusinessMessages.MessageIDs))
			case update.Message != nil:
				log.DebugContext(ctx, "Message received",
					"update_id", update.ID,
					"chat_id", update.Message.Chat.ID)
			default:
				log.DebugContext(ctx, "Update received", "update_id", update.ID)
			}
			next(ctx, b, update)
		}
	}
}
