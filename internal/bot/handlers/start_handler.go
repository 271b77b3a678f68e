package handlers

import (
	"context"
	"database/sql"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/ykaravaev/secretarybot/internal/database"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

// startHandler processes the /start command using injected dependencies.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}
	if update.Message.Chat.Type != models.ChatTypePrivate {
		return
	}

	from := update.Message.From
	log.InfoContext(ctx, "Handling /start command", "chat_id", update.Message.Chat.ID, "user_id", from.ID)

	owner := &database.Owner{ID: from.ID, FullName: from.FirstName}
	if from.LastName != "" {
		owner.FullName = from.FirstName + " " + from.LastName
	}
	if from.Username != "" {
		owner.Username = sql.NullString{String: from.Username, Valid: true}
	}
	if _, err := h.deps.Store.GetOrCreateOwner(ctx, owner); err != nil {
		log.ErrorContext(ctx, "Failed to ensure owner record", "user_id", from.ID, "error", err)
	}

	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   h.deps.Config.Messages.Welcome,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send welcome message", "error", err, "chat_id", update.Message.Chat.ID)
	}
}
