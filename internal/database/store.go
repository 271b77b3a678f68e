package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrStorage marks ledger failures caused by the backing store being
// unreachable or rejecting a statement. Callers match it with errors.Is.
var ErrStorage = errors.New("storage error")

// Store is the message ledger: append-only version rows, latest-version
// point lookups, and age-based range deletes for the retention sweeper.
// Methods accept context.Context for cancellation and timeouts; each call is
// an independent transaction.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// GetOrCreateOwner inserts the owner row if absent and returns the stored
	// row. Idempotent upsert keyed by owner ID.
	GetOrCreateOwner(ctx context.Context, owner *Owner) (*Owner, error)

	// AppendMessage inserts a new message version and sets its row ID.
	// It never merges with existing rows.
	AppendMessage(ctx context.Context, msg *CapturedMessage) error

	// LatestVersion returns the row with the greatest captured_at for the
	// (owner, chat, message) natural key, or nil if never observed.
	LatestVersion(ctx context.Context, ownerID, chatID int64, messageID int) (*CapturedMessage, error)

	// MessagesOlderThan returns up to limit rows with captured_at <= cutoff,
	// newest first. An empty slice signals nothing left to sweep.
	MessagesOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]CapturedMessage, error)

	// DeleteMessagesByIDs bulk-deletes rows by ID. Deleting an already-deleted
	// ID is a no-op, so the call is safe to retry.
	DeleteMessagesByIDs(ctx context.Context, ids []int64) error
}

// sqlxStore implements Store on top of sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrStorage, err)
	}
	return nil
}

// GetOrCreateOwner inserts the owner if missing. Concurrent first events for
// the same owner are resolved by ON CONFLICT DO NOTHING plus a re-read.
func (s *sqlxStore) GetOrCreateOwner(ctx context.Context, owner *Owner) (*Owner, error) {
	if owner == nil {
		return nil, fmt.Errorf("cannot save nil owner")
	}
	if owner.ID == 0 {
		return nil, fmt.Errorf("owner must have a non-zero id")
	}

	now := time.Now().UTC()
	owner.CreatedAt = now
	owner.UpdatedAt = now

	query := `
        INSERT INTO owners (id, username, full_name, created_at, updated_at)
        VALUES (:id, :username, :full_name, :created_at, :updated_at)
        ON CONFLICT (id) DO NOTHING;
    `
	if _, err := s.db.NamedExecContext(ctx, query, owner); err != nil {
		s.logger.ErrorContext(ctx, "Error upserting owner", "owner_id", owner.ID, "error", err)
		return nil, fmt.Errorf("%w: upsert owner %d: %v", ErrStorage, owner.ID, err)
	}

	var stored Owner
	err := s.db.GetContext(ctx, &stored,
		`SELECT id, username, full_name, created_at, updated_at FROM owners WHERE id = $1;`, owner.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error reading owner after upsert", "owner_id", owner.ID, "error", err)
		return nil, fmt.Errorf("%w: get owner %d: %v", ErrStorage, owner.ID, err)
	}

	s.logger.DebugContext(ctx, "Owner ensured", "owner_id", stored.ID)
	return &stored, nil
}

func (s *sqlxStore) AppendMessage(ctx context.Context, msg *CapturedMessage) error {
	if msg == nil {
		return fmt.Errorf("cannot save nil message")
	}
	if msg.OwnerID == 0 {
		return fmt.Errorf("message must have a non-zero owner_id")
	}
	if msg.ChatID == 0 {
		return fmt.Errorf("message must have a non-zero chat_id")
	}
	if msg.MessageID == 0 {
		return fmt.Errorf("message must have a non-zero message_id")
	}
	if msg.CapturedAt.IsZero() {
		return fmt.Errorf("message must have a non-zero captured_at")
	}
	if msg.ContentType == "" {
		msg.ContentType = ContentTypeOther
	}
	if len(msg.RawSnapshot) == 0 {
		msg.RawSnapshot = RawJSON("{}")
	}

	now := time.Now().UTC()
	msg.CreatedAt = now
	msg.UpdatedAt = now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for appending message",
			"owner_id", msg.OwnerID, "chat_id", msg.ChatID, "message_id", msg.MessageID, "error", err)
		return fmt.Errorf("%w: begin transaction: %v", ErrStorage, err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	query := `
        INSERT INTO captured_messages (
            owner_id, chat_id, message_id, content_type, text, raw_snapshot,
            file_reference, file_path, file_name, mime_type,
            captured_at, created_at, updated_at
        ) VALUES (
            :owner_id, :chat_id, :message_id, :content_type, :text, :raw_snapshot,
            :file_reference, :file_path, :file_name, :mime_type,
            :captured_at, :created_at, :updated_at
        ) RETURNING id;
    `
	rows, err := tx.NamedQuery(query, msg)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error appending message version",
			"owner_id", msg.OwnerID, "chat_id", msg.ChatID, "message_id", msg.MessageID, "error", err)
		return fmt.Errorf("%w: append message (owner %d, chat %d, message %d): %v",
			ErrStorage, msg.OwnerID, msg.ChatID, msg.MessageID, err)
	}
	if rows.Next() {
		if scanErr := rows.Scan(&msg.ID); scanErr != nil {
			s.logger.WarnContext(ctx, "Could not scan inserted row ID",
				"owner_id", msg.OwnerID, "chat_id", msg.ChatID, "message_id", msg.MessageID, "error", scanErr)
		}
	}
	if closeErr := rows.Close(); closeErr != nil {
		s.logger.WarnContext(ctx, "Error closing insert result rows", "error", closeErr)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction",
			"owner_id", msg.OwnerID, "chat_id", msg.ChatID, "message_id", msg.MessageID, "error", err)
		return fmt.Errorf("%w: commit transaction: %v", ErrStorage, err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Message version appended",
		"row_id", msg.ID, "owner_id", msg.OwnerID, "chat_id", msg.ChatID,
		"message_id", msg.MessageID, "content_type", msg.ContentType)
	return nil
}

func (s *sqlxStore) LatestVersion(ctx context.Context, ownerID, chatID int64, messageID int) (*CapturedMessage, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var msg CapturedMessage
	query := `
        SELECT id, owner_id, chat_id, message_id, content_type, text, raw_snapshot,
               file_reference, file_path, file_name, mime_type,
               captured_at, created_at, updated_at
        FROM captured_messages
        WHERE owner_id = $1 AND chat_id = $2 AND message_id = $3
        ORDER BY captured_at DESC, id DESC
        LIMIT 1;
    `
	err := s.db.GetContext(ctx, &msg, query, ownerID, chatID, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.DebugContext(ctx, "No prior version found",
			"owner_id", ownerID, "chat_id", chatID, "message_id", messageID)
		return nil, nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error fetching latest version",
			"owner_id", ownerID, "chat_id", chatID, "message_id", messageID, "error", err)
		return nil, fmt.Errorf("%w: latest version (owner %d, chat %d, message %d): %v",
			ErrStorage, ownerID, chatID, messageID, err)
	}
	return &msg, nil
}

func (s *sqlxStore) MessagesOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]CapturedMessage, error) {
	if limit <= 0 {
		limit = 1000
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var msgs []CapturedMessage
	query := `
        SELECT id, owner_id, chat_id, message_id, content_type, text, raw_snapshot,
               file_reference, file_path, file_name, mime_type,
               captured_at, created_at, updated_at
        FROM captured_messages
        WHERE captured_at <= $1
        ORDER BY captured_at DESC
        LIMIT $2;
    `
	if err := s.db.SelectContext(ctx, &msgs, query, cutoff, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error fetching overdue messages", "cutoff", cutoff, "error", err)
		return nil, fmt.Errorf("%w: messages older than %s: %v", ErrStorage, cutoff.Format(time.RFC3339), err)
	}

	s.logger.DebugContext(ctx, "Fetched overdue messages", "cutoff", cutoff, "count", len(msgs))
	return msgs, nil
}

func (s *sqlxStore) DeleteMessagesByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM captured_messages WHERE id = ANY($1);`, pq.Array(ids))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting message rows", "count", len(ids), "error", err)
		return fmt.Errorf("%w: delete %d message rows: %v", ErrStorage, len(ids), err)
	}

	if affected, err := res.RowsAffected(); err == nil {
		s.logger.DebugContext(ctx, "Message rows deleted", "requested", len(ids), "deleted", affected)
	}
	return nil
}
