package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/ykaravaev/secretarybot/internal/reconcile"
)

// NewBusinessHandler returns the default update handler dispatching business
// lifecycle events (created, edited, deleted) to the reconciliation engine
// and forwarding the resulting plans to the notifier.
func NewBusinessHandler(deps HandlerDeps) bot.HandlerFunc {
	return businessHandler{deps}.Handle
}

type businessHandler struct {
	deps HandlerDeps
}

func (h businessHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	switch {
	case update.BusinessMessage != nil:
		h.handleCreated(ctx, b, update.BusinessMessage)
	case update.EditedBusinessMessage != nil:
		h.handleEdited(ctx, b, update.EditedBusinessMessage)
	case update.DeletedBusinessMessages != nil:
		h.handleDeleted(ctx, b, update.DeletedBusinessMessages)
	}
}

func (h businessHandler) handleCreated(ctx context.Context, b *bot.Bot, msg *models.Message) {
	log := h.deps.Logger.With("handler", "business_created")

	if msg.Chat.Type != models.ChatTypePrivate {
		return
	}

	conn, err := h.connection(ctx, b, msg.BusinessConnectionID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve business connection",
			"connection_id", msg.BusinessConnectionID, "error", err)
		return
	}

	plans, err := h.deps.Engine.Created(ctx, msg, conn)
	if err != nil {
		log.ErrorContext(ctx, "Failed to capture created message",
			"chat_id", msg.Chat.ID, "message_id", msg.ID, "error", err)
		return
	}
	h.dispatchAll(ctx, log, plans)
}

func (h businessHandler) handleEdited(ctx context.Context, b *bot.Bot, msg *models.Message) {
	log := h.deps.Logger.With("handler", "business_edited")

	if msg.Chat.Type != models.ChatTypePrivate {
		return
	}

	conn, err := h.connection(ctx, b, msg.BusinessConnectionID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve business connection",
			"connection_id", msg.BusinessConnectionID, "error", err)
		return
	}

	plan, err := h.deps.Engine.Edited(ctx, msg, conn)
	if err != nil {
		log.ErrorContext(ctx, "Failed to capture edited message",
			"chat_id", msg.Chat.ID, "message_id", msg.ID, "error", err)
		return
	}
	if plan != nil {
		h.dispatchAll(ctx, log, []reconcile.Plan{*plan})
	}
}

func (h businessHandler) handleDeleted(ctx context.Context, b *bot.Bot, evt *models.BusinessMessagesDeleted) {
	log := h.deps.Logger.With("handler", "business_deleted")

	conn, err := h.connection(ctx, b, evt.BusinessConnectionID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve business connection",
			"connection_id", evt.BusinessConnectionID, "error", err)
		return
	}

	plans, err := h.deps.Engine.Deleted(ctx, evt, conn)
	if err != nil {
		// Tombstones for IDs that did resolve are still dispatched below.
		log.ErrorContext(ctx, "Deletion handling failed for some messages",
			"chat_id", evt.Chat.ID, "count", len(evt.MessageIDs), "error", err)
	}
	h.dispatchAll(ctx, log, plans)
}

func (h businessHandler) connection(ctx context.Context, b *bot.Bot, id string) (*models.BusinessConnection, error) {
	return b.GetBusinessConnection(ctx, &bot.GetBusinessConnectionParams{BusinessConnectionID: id})
}

func (h businessHandler) dispatchAll(ctx context.Context, log *slog.Logger, plans []reconcile.Plan) {
	for i := range plans {
		if err := h.deps.Notifier.Dispatch(ctx, &plans[i]); err != nil {
			log.ErrorContext(ctx, "Failed to dispatch notification",
				"plan", plans[i].Kind.String(), "chat_id", plans[i].OwnerChatID, "error", err)
		}
	}
}
