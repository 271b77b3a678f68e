// Package notify renders reconciliation plans into outbound Telegram
// messages delivered to the owner's own chat.
package notify

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/ykaravaev/secretarybot/internal/database"
	"github.com/ykaravaev/secretarybot/internal/reconcile"
)

// Notifier dispatches notification plans to the owner's chat.
type Notifier struct {
	bot    *tgbot.Bot
	texts  Texts
	logger *slog.Logger
}

// New creates a Notifier sending through the given bot instance.
func New(b *tgbot.Bot, texts Texts, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		bot:    b,
		texts:  texts,
		logger: logger.With("component", "notifier"),
	}
}

// Dispatch renders one plan. Each plan kind has exactly one rendering; a
// missing or unreadable local attachment degrades to the text rendering.
func (n *Notifier) Dispatch(ctx context.Context, plan *reconcile.Plan) error {
	n.logger.DebugContext(ctx, "Dispatching notification", "plan", plan.Kind.String(), "chat_id", plan.OwnerChatID)

	switch plan.Kind {
	case reconcile.PlanFreshNotice:
		return n.sendText(ctx, plan.OwnerChatID, fmt.Sprintf(n.texts.EditFresh, quoted(plan.After)))
	case reconcile.PlanTextDiff:
		return n.sendText(ctx, plan.OwnerChatID, n.diffText(plan.Before, plan.After))
	case reconcile.PlanGroupedMediaDiff:
		return n.sendGroupedDiff(ctx, plan)
	case reconcile.PlanSingleContentDiff:
		return n.sendContent(ctx, plan.OwnerChatID, plan.SingleSide(), n.diffText(plan.Before, plan.After))
	case reconcile.PlanSplitBeforeAfter:
		if err := n.sendContent(ctx, plan.OwnerChatID, plan.Before, fmt.Sprintf(n.texts.EditBefore, quoted(plan.Before))); err != nil {
			return err
		}
		return n.sendContent(ctx, plan.OwnerChatID, plan.After, fmt.Sprintf(n.texts.EditAfter, quoted(plan.After)))
	case reconcile.PlanTombstone:
		return n.sendTombstone(ctx, plan)
	case reconcile.PlanProtectedRelay:
		return n.sendContent(ctx, plan.OwnerChatID, plan.After, fmt.Sprintf(n.texts.ProtectedRelay, quoted(plan.After)))
	}
	return fmt.Errorf("unknown plan kind %d", plan.Kind)
}

func (n *Notifier) diffText(before, after *database.CapturedMessage) string {
	return fmt.Sprintf(n.texts.EditDiff, quoted(before), quoted(after))
}

// sendTombstone re-renders the deleted message's last known version. Notes
// cannot carry captions, so they get a dedicated lead-in message before the
// content itself; other content-bearing types get one captioned resend; text
// gets a quoted tombstone.
func (n *Notifier) sendTombstone(ctx context.Context, plan *reconcile.Plan) error {
	row := plan.Before
	caption := fmt.Sprintf(n.texts.Deleted, quoted(row))

	switch row.ContentType {
	case database.ContentTypeVideoNote, database.ContentTypeVoice:
		if err := n.sendText(ctx, plan.OwnerChatID, n.texts.DeletedNote); err != nil {
			return err
		}
		return n.sendContent(ctx, plan.OwnerChatID, row, caption)
	case database.ContentTypeAudio, database.ContentTypeDocument, database.ContentTypePhoto, database.ContentTypeVideo:
		return n.sendContent(ctx, plan.OwnerChatID, row, caption)
	case database.ContentTypeText, database.ContentTypeOther:
		return n.sendText(ctx, plan.OwnerChatID, caption)
	}
	return fmt.Errorf("unknown content type %q", row.ContentType)
}

// sendGroupedDiff sends both versions' attachments as one media group, then
// the text-diff summary. If either side's file is unavailable the plan
// degrades to a single-content diff rendering.
func (n *Notifier) sendGroupedDiff(ctx context.Context, plan *reconcile.Plan) error {
	beforeFile, beforeErr := openAttachment(plan.Before)
	afterFile, afterErr := openAttachment(plan.After)
	defer closeBoth(beforeFile, afterFile)

	if beforeErr != nil || afterErr != nil {
		n.logger.WarnContext(ctx, "Media group attachment unavailable, degrading to single diff",
			"before_error", beforeErr, "after_error", afterErr)
		return n.sendContent(ctx, plan.OwnerChatID, plan.SingleSide(), n.diffText(plan.Before, plan.After))
	}

	media := []models.InputMedia{
		groupItem(plan.Before, beforeFile, "before_"+attachmentName(plan.Before)),
		groupItem(plan.After, afterFile, "after_"+attachmentName(plan.After)),
	}
	if _, err := n.bot.SendMediaGroup(ctx, &tgbot.SendMediaGroupParams{
		ChatID: plan.OwnerChatID,
		Media:  media,
	}); err != nil {
		return fmt.Errorf("send media group: %w", err)
	}

	return n.sendText(ctx, plan.OwnerChatID, n.diffText(plan.Before, plan.After))
}

// sendContent resends one captured version with the given HTML caption.
// Rows without a usable attachment, and video notes (which cannot carry
// captions), fall back to plain text for the caption part.
func (n *Notifier) sendContent(ctx context.Context, chatID int64, row *database.CapturedMessage, caption string) error {
	if row == nil || !row.HasAttachment() {
		return n.sendText(ctx, chatID, caption)
	}

	file, err := os.Open(row.FilePath.String)
	if err != nil {
		n.logger.WarnContext(ctx, "Stored attachment unreadable, sending text only",
			"path", row.FilePath.String, "error", err)
		return n.sendText(ctx, chatID, caption)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			n.logger.WarnContext(ctx, "Error closing attachment file", "path", row.FilePath.String, "error", closeErr)
		}
	}()

	upload := &models.InputFileUpload{Filename: attachmentName(row), Data: file}

	switch row.ContentType {
	case database.ContentTypeAudio:
		_, err = n.bot.SendAudio(ctx, &tgbot.SendAudioParams{
			ChatID: chatID, Audio: upload, Caption: caption, ParseMode: models.ParseModeHTML,
		})
	case database.ContentTypeDocument:
		_, err = n.bot.SendDocument(ctx, &tgbot.SendDocumentParams{
			ChatID: chatID, Document: upload, Caption: caption, ParseMode: models.ParseModeHTML,
		})
	case database.ContentTypePhoto:
		_, err = n.bot.SendPhoto(ctx, &tgbot.SendPhotoParams{
			ChatID: chatID, Photo: upload, Caption: caption, ParseMode: models.ParseModeHTML,
		})
	case database.ContentTypeVideo:
		_, err = n.bot.SendVideo(ctx, &tgbot.SendVideoParams{
			ChatID: chatID, Video: upload, Caption: caption, ParseMode: models.ParseModeHTML,
		})
	case database.ContentTypeVideoNote:
		// Video notes cannot carry captions.
		if err = n.sendText(ctx, chatID, caption); err == nil {
			_, err = n.bot.SendVideoNote(ctx, &tgbot.SendVideoNoteParams{ChatID: chatID, VideoNote: upload})
		}
	case database.ContentTypeVoice:
		_, err = n.bot.SendVoice(ctx, &tgbot.SendVoiceParams{
			ChatID: chatID, Voice: upload, Caption: caption, ParseMode: models.ParseModeHTML,
		})
	case database.ContentTypeText, database.ContentTypeOther:
		return n.sendText(ctx, chatID, caption)
	}
	if err != nil {
		return fmt.Errorf("resend %s content: %w", row.ContentType, err)
	}
	return nil
}

func (n *Notifier) sendText(ctx context.Context, chatID int64, text string) error {
	if n.texts.Signature != "" {
		text = text + "\n\n" + n.texts.Signature
	}
	if _, err := n.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// groupItem builds the media-group entry for one captured version. Only
// media-group-eligible types reach here. The upload name must be unique
// within the group, since it doubles as the multipart field name.
func groupItem(row *database.CapturedMessage, file io.Reader, name string) models.InputMedia {
	attach := "attach://" + name

	switch row.ContentType {
	case database.ContentTypeAudio:
		return &models.InputMediaAudio{Media: attach, MediaAttachment: file}
	case database.ContentTypeDocument:
		return &models.InputMediaDocument{Media: attach, MediaAttachment: file}
	case database.ContentTypeVideo:
		return &models.InputMediaVideo{Media: attach, MediaAttachment: file}
	default:
		return &models.InputMediaPhoto{Media: attach, MediaAttachment: file}
	}
}

func openAttachment(row *database.CapturedMessage) (*os.File, error) {
	if row == nil || !row.HasAttachment() {
		return nil, os.ErrNotExist
	}
	return os.Open(row.FilePath.String)
}

func closeBoth(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}

func attachmentName(row *database.CapturedMessage) string {
	if row.FileName.Valid && row.FileName.String != "" {
		return row.FileName.String
	}
	return filepath.Base(row.FilePath.String)
}

// quoted returns the version's text or caption escaped for HTML rendering,
// with a placeholder for rows that carry no text.
func quoted(row *database.CapturedMessage) string {
	text := row.PlainText()
	if text == "" {
		return "(no text)"
	}
	return html.EscapeString(text)
}
