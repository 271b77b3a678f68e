package reconcile

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/ykaravaev/secretarybot/internal/content"
	"github.com/ykaravaev/secretarybot/internal/database"
)

// DetectContentType maps a Telegram message onto the ledger's closed
// content-type enumeration.
func DetectContentType(msg *models.Message) database.ContentType {
	switch {
	case msg.Audio != nil:
		return database.ContentTypeAudio
	case msg.Document != nil:
		return database.ContentTypeDocument
	case len(msg.Photo) > 0:
		return database.ContentTypePhoto
	case msg.Video != nil:
		return database.ContentTypeVideo
	case msg.VideoNote != nil:
		return database.ContentTypeVideoNote
	case msg.Voice != nil:
		return database.ContentTypeVoice
	case msg.Text != "":
		return database.ContentTypeText
	}
	return database.ContentTypeOther
}

// attachmentSource extracts the downloadable attachment reference from a
// message, or nil when the content type carries none. Photos pick the
// highest-resolution variant Telegram offers.
func attachmentSource(msg *models.Message) *content.Source {
	switch {
	case msg.Audio != nil:
		name := msg.Audio.FileName
		if name == "" {
			name = msg.Audio.Title
		}
		return &content.Source{FileID: msg.Audio.FileID, Name: name, MimeType: msg.Audio.MimeType}
	case msg.Document != nil:
		return &content.Source{FileID: msg.Document.FileID, Name: msg.Document.FileName, MimeType: msg.Document.MimeType}
	case len(msg.Photo) > 0:
		best := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.Width*p.Height > best.Width*best.Height {
				best = p
			}
		}
		// Telegram serves photos as JPEG.
		return &content.Source{FileID: best.FileID, MimeType: "image/jpeg"}
	case msg.Video != nil:
		return &content.Source{FileID: msg.Video.FileID, Name: msg.Video.FileName, MimeType: msg.Video.MimeType}
	case msg.VideoNote != nil:
		return &content.Source{FileID: msg.VideoNote.FileID, MimeType: "video/mp4"}
	case msg.Voice != nil:
		return &content.Source{FileID: msg.Voice.FileID, MimeType: msg.Voice.MimeType}
	}
	return nil
}

// buildRow converts an observed Telegram message into a ledger row for the
// given owner. The attachment descriptor is filled in later, once the
// download has succeeded.
func buildRow(msg *models.Message, ownerID int64) *database.CapturedMessage {
	contentType := DetectContentType(msg)

	// An edited message keeps its original Date; the observation time of the
	// edit is EditDate. Each version must carry its own captured_at so the
	// attachment paths of consecutive versions never collide.
	observedAt := msg.Date
	if msg.EditDate != 0 {
		observedAt = msg.EditDate
	}

	text := msg.Text
	if contentType != database.ContentTypeText {
		text = msg.Caption
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		raw = []byte("{}")
	}

	row := &database.CapturedMessage{
		OwnerID:     ownerID,
		ChatID:      msg.Chat.ID,
		MessageID:   msg.ID,
		ContentType: contentType,
		RawSnapshot: database.RawJSON(raw),
		CapturedAt:  time.Unix(int64(observedAt), 0).UTC(),
	}
	if text != "" {
		row.Text = sql.NullString{String: text, Valid: true}
	}
	return row
}

// ownerFromConnection maps the business connection's linked account onto an
// owner row.
func ownerFromConnection(conn *models.BusinessConnection) *database.Owner {
	owner := &database.Owner{
		ID:       conn.User.ID,
		FullName: fullName(&conn.User),
	}
	if conn.User.Username != "" {
		owner.Username = sql.NullString{String: conn.User.Username, Valid: true}
	}
	return owner
}

func fullName(user *models.User) string {
	if user.LastName == "" {
		return user.FirstName
	}
	return user.FirstName + " " + user.LastName
}
