package database

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ContentType is the closed enumeration of message content kinds the ledger
// stores. Unknown kinds map to ContentTypeOther.
type ContentType string

const (
	ContentTypeText      ContentType = "text"
	ContentTypeAudio     ContentType = "audio"
	ContentTypeDocument  ContentType = "document"
	ContentTypePhoto     ContentType = "photo"
	ContentTypeVideo     ContentType = "video"
	ContentTypeVideoNote ContentType = "video_note"
	ContentTypeVoice     ContentType = "voice"
	ContentTypeOther     ContentType = "other"
)

// AllContentTypes lists every valid ContentType, in sync with the constants
// above.
var AllContentTypes = []ContentType{
	ContentTypeText,
	ContentTypeAudio,
	ContentTypeDocument,
	ContentTypePhoto,
	ContentTypeVideo,
	ContentTypeVideoNote,
	ContentTypeVoice,
	ContentTypeOther,
}

// ContentBearing reports whether capturing a message of this type requires
// downloading a binary attachment.
func (c ContentType) ContentBearing() bool {
	switch c {
	case ContentTypeAudio, ContentTypeDocument, ContentTypePhoto, ContentTypeVideo, ContentTypeVideoNote, ContentTypeVoice:
		return true
	}
	return false
}

// MediaGroupEligible reports whether this type can be sent as part of a single
// grouped media message.
func (c ContentType) MediaGroupEligible() bool {
	switch c {
	case ContentTypeAudio, ContentTypeDocument, ContentTypePhoto, ContentTypeVideo:
		return true
	}
	return false
}

// NoteLike reports whether this type is a self-contained circular/voice note,
// which cannot be grouped or captioned like other media.
func (c ContentType) NoteLike() bool {
	return c == ContentTypeVideoNote || c == ContentTypeVoice
}

// RawJSON carries the original platform payload for a jsonb column. It
// values as a string so the driver does not encode it as bytea.
type RawJSON json.RawMessage

// Value implements driver.Valuer.
func (r RawJSON) Value() (driver.Value, error) {
	if len(r) == 0 {
		return "{}", nil
	}
	return string(r), nil
}

// Scan implements sql.Scanner.
func (r *RawJSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = nil
	case []byte:
		*r = append((*r)[:0], v...)
	case string:
		*r = RawJSON(v)
	default:
		return fmt.Errorf("unsupported raw snapshot source type %T", src)
	}
	return nil
}

// Owner represents the human operator behind a business connection. Created
// on the first observed event, never deleted.
type Owner struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	Username sql.NullString `db:"username"`
	FullName string         `db:"full_name"`
}

// CapturedMessage is one observed version of a message at a point in time.
// Rows are append-only: the version with the greatest CapturedAt for a given
// (owner, chat, message) natural key is current, older rows remain as history
// until the retention sweeper removes them.
type CapturedMessage struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	OwnerID   int64 `db:"owner_id"`
	ChatID    int64 `db:"chat_id"`
	MessageID int   `db:"message_id"`

	ContentType ContentType    `db:"content_type"`
	Text        sql.NullString `db:"text"`
	RawSnapshot RawJSON        `db:"raw_snapshot"`

	// Attachment descriptor, set iff the content type is content-bearing and
	// the download succeeded.
	FileReference sql.NullString `db:"file_reference"`
	FilePath      sql.NullString `db:"file_path"`
	FileName      sql.NullString `db:"file_name"`
	MimeType      sql.NullString `db:"mime_type"`

	CapturedAt time.Time `db:"captured_at"`
}

// HasAttachment reports whether the row carries a usable local attachment.
func (m *CapturedMessage) HasAttachment() bool {
	return m.FilePath.Valid && m.FilePath.String != ""
}

// PlainText returns the stored text or caption, or the empty string.
func (m *CapturedMessage) PlainText() string {
	if m == nil || !m.Text.Valid {
		return ""
	}
	return m.Text.String
}
