// Package reconcile implements the message-lifecycle reconciliation engine:
// given create/edit/delete events from the messaging platform, it persists
// message versions to the ledger, captures attachments, classifies edit and
// delete transitions against the last known version, and synthesizes
// notification plans for the owner.
package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/ykaravaev/secretarybot/internal/content"
	"github.com/ykaravaev/secretarybot/internal/database"
)

// Attachments is the slice of the attachment store the engine needs.
// *content.Store satisfies it.
type Attachments interface {
	Capture(ctx context.Context, ownerID, chatID int64, messageID int, capturedAt time.Time, src content.Source) (content.Descriptor, error)
}

// Engine processes business-message lifecycle events against the ledger and
// attachment store.
type Engine struct {
	store       database.Store
	attachments Attachments
	logger      *slog.Logger
}

// New creates a reconciliation engine.
func New(store database.Store, attachments Attachments, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		store:       store,
		attachments: attachments,
		logger:      logger.With("component", "reconcile_engine"),
	}
}

// Created handles a newly observed business message: it ensures the owner
// row, captures the message version (attachment included when
// content-bearing), and appends it to the ledger. Plain captures produce no
// notification; replying to owner-protected content additionally captures the
// replied-to message and yields a protected-content relay plan.
func (e *Engine) Created(ctx context.Context, msg *models.Message, conn *models.BusinessConnection) ([]Plan, error) {
	owner, err := e.store.GetOrCreateOwner(ctx, ownerFromConnection(conn))
	if err != nil {
		return nil, err
	}

	if _, err := e.captureVersion(ctx, msg, owner.ID); err != nil {
		return nil, err
	}

	// Protected content cannot be forwarded or saved by the owner through the
	// client; relay a captured copy so it is not lost.
	if reply := msg.ReplyToMessage; reply != nil && reply.HasProtectedContent {
		relayed, err := e.captureVersion(ctx, reply, owner.ID)
		if err != nil {
			return nil, err
		}
		e.logger.InfoContext(ctx, "Captured protected replied-to message",
			"owner_id", owner.ID, "chat_id", reply.Chat.ID, "message_id", reply.ID)
		return []Plan{{
			Kind:        PlanProtectedRelay,
			OwnerChatID: conn.UserChatID,
			After:       relayed,
		}}, nil
	}

	return nil, nil
}

// Edited handles an edit event: it looks up the prior version for the
// natural key, appends the new version, and classifies the pair into a
// notification plan. A missing prior version (bot offline for the original)
// degrades to a fresh notice.
func (e *Engine) Edited(ctx context.Context, msg *models.Message, conn *models.BusinessConnection) (*Plan, error) {
	owner, err := e.store.GetOrCreateOwner(ctx, ownerFromConnection(conn))
	if err != nil {
		return nil, err
	}

	prior, err := e.store.LatestVersion(ctx, owner.ID, msg.Chat.ID, msg.ID)
	if err != nil {
		return nil, err
	}

	next, err := e.captureVersion(ctx, msg, owner.ID)
	if err != nil {
		return nil, err
	}

	kind := Classify(prior, next)
	e.logger.InfoContext(ctx, "Classified edit transition",
		"owner_id", owner.ID, "chat_id", msg.Chat.ID, "message_id", msg.ID,
		"plan", kind.String())

	return &Plan{
		Kind:        kind,
		OwnerChatID: conn.UserChatID,
		Before:      prior,
		After:       next,
	}, nil
}

// Deleted handles a batch deletion event. Each message ID is resolved
// independently: a known last version yields a tombstone plan, an unknown ID
// is silently skipped, and a lookup failure on one ID does not block the
// rest.
func (e *Engine) Deleted(ctx context.Context, evt *models.BusinessMessagesDeleted, conn *models.BusinessConnection) ([]Plan, error) {
	owner, err := e.store.GetOrCreateOwner(ctx, ownerFromConnection(conn))
	if err != nil {
		return nil, err
	}

	var (
		plans []Plan
		errs  []error
	)
	for _, messageID := range evt.MessageIDs {
		prior, err := e.store.LatestVersion(ctx, owner.ID, evt.Chat.ID, messageID)
		if err != nil {
			errs = append(errs, fmt.Errorf("message %d: %w", messageID, err))
			continue
		}
		if prior == nil {
			e.logger.DebugContext(ctx, "Deleted message was never captured, skipping",
				"owner_id", owner.ID, "chat_id", evt.Chat.ID, "message_id", messageID)
			continue
		}
		plans = append(plans, Plan{
			Kind:        PlanTombstone,
			OwnerChatID: conn.UserChatID,
			Before:      prior,
		})
	}

	return plans, errors.Join(errs...)
}

// captureVersion builds the ledger row for one observed message, downloads
// its attachment when content-bearing, and appends the row. A failed
// download is logged and leaves the descriptor empty; the row is persisted
// regardless so the metadata is not lost.
func (e *Engine) captureVersion(ctx context.Context, msg *models.Message, ownerID int64) (*database.CapturedMessage, error) {
	row := buildRow(msg, ownerID)

	if src := attachmentSource(msg); src != nil {
		desc, err := e.attachments.Capture(ctx, ownerID, row.ChatID, row.MessageID, row.CapturedAt, *src)
		if err != nil {
			e.logger.ErrorContext(ctx, "Attachment capture failed, persisting metadata only",
				"owner_id", ownerID, "chat_id", row.ChatID, "message_id", row.MessageID,
				"content_type", row.ContentType, "error", err)
		} else {
			row.FileReference = sql.NullString{String: desc.FileID, Valid: true}
			row.FilePath = sql.NullString{String: desc.Path, Valid: true}
			row.FileName = sql.NullString{String: desc.Name, Valid: true}
			if desc.MimeType != "" {
				row.MimeType = sql.NullString{String: desc.MimeType, Valid: true}
			}
		}
	}

	if err := e.store.AppendMessage(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}
