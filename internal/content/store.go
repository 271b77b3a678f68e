// Package content implements the attachment store: it downloads message
// attachments into a retention-window-scoped filesystem layout and deletes
// them in lockstep with their ledger rows.
package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrFetch marks a failed remote binary download. The owning ledger row is
	// still persisted, with an empty attachment descriptor.
	ErrFetch = errors.New("attachment fetch error")

	// ErrFilesystem marks a failed directory creation or file write. Treated
	// the same as ErrFetch by callers.
	ErrFilesystem = errors.New("attachment filesystem error")
)

// FileFetcher downloads the binary content behind a platform file reference.
type FileFetcher interface {
	Download(ctx context.Context, fileID string, dst io.Writer) error
}

// Source describes the remote attachment offered by an inbound event.
type Source struct {
	FileID   string
	Name     string // preferred filename stem; falls back to FileID when empty
	MimeType string
}

// Descriptor points at a captured attachment on local storage.
type Descriptor struct {
	FileID   string
	Path     string
	Name     string
	MimeType string
}

// Store downloads and removes attachments under a single root directory,
// keyed by (owner, chat, message, capture-timestamp).
type Store struct {
	root    string
	fetcher FileFetcher
	logger  *slog.Logger
}

// NewStore creates an attachment store rooted at dir.
func NewStore(dir string, fetcher FileFetcher, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		root:    dir,
		fetcher: fetcher,
		logger:  logger.With("component", "content_store"),
	}
}

// ContentDir returns the directory holding one capture of one message:
// {root}/{owner}/{chat}/{message}/{captureEpochSeconds}.
func (s *Store) ContentDir(ownerID, chatID int64, messageID int, capturedAt time.Time) string {
	return filepath.Join(
		s.root,
		strconv.FormatInt(ownerID, 10),
		strconv.FormatInt(chatID, 10),
		strconv.Itoa(messageID),
		strconv.FormatInt(capturedAt.Unix(), 10),
	)
}

// Capture downloads the source binary into the capture directory and returns
// its descriptor. Directory creation is idempotent; the file write goes
// through a temp file and rename so partially downloaded files never appear
// under the final name.
func (s *Store) Capture(ctx context.Context, ownerID, chatID int64, messageID int, capturedAt time.Time, src Source) (Descriptor, error) {
	dir := s.ContentDir(ownerID, chatID, messageID, capturedAt)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Descriptor{}, fmt.Errorf("%w: create %s: %v", ErrFilesystem, dir, err)
	}

	name := FileName(src)
	path := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, name+".download-*")
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: create temp file in %s: %v", ErrFilesystem, dir, err)
	}
	tmpName := tmp.Name()

	if err := s.fetcher.Download(ctx, src.FileID, tmp); err != nil {
		if closeErr := tmp.Close(); closeErr != nil {
			s.logger.WarnContext(ctx, "Error closing temp file after failed download", "path", tmpName, "error", closeErr)
		}
		if rmErr := os.Remove(tmpName); rmErr != nil {
			s.logger.WarnContext(ctx, "Error removing temp file after failed download", "path", tmpName, "error", rmErr)
		}
		return Descriptor{}, fmt.Errorf("%w: file %s: %v", ErrFetch, src.FileID, err)
	}
	if err := tmp.Close(); err != nil {
		return Descriptor{}, fmt.Errorf("%w: close %s: %v", ErrFilesystem, tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return Descriptor{}, fmt.Errorf("%w: rename %s: %v", ErrFilesystem, tmpName, err)
	}

	s.logger.DebugContext(ctx, "Attachment captured",
		"owner_id", ownerID, "chat_id", chatID, "message_id", messageID, "path", path)

	return Descriptor{
		FileID:   src.FileID,
		Path:     path,
		Name:     name,
		MimeType: src.MimeType,
	}, nil
}

// DeleteAll removes each path, best effort. A missing file is not an error;
// other failures are logged and never block deletion of the remaining paths.
// Capture directories left empty by the removal are pruned up to the root.
func (s *Store) DeleteAll(ctx context.Context, paths []string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.ErrorContext(ctx, "Failed to delete attachment file", "path", path, "error", err)
			continue
		}
		s.pruneEmptyParents(filepath.Dir(path))
	}
}

// pruneEmptyParents removes empty directories from dir upward, stopping at
// the store root, the first non-empty directory, or any path outside the
// root.
func (s *Store) pruneEmptyParents(dir string) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return
	}
	for {
		abs, err := filepath.Abs(dir)
		if err != nil || abs == root ||
			!strings.HasPrefix(abs+string(filepath.Separator), root+string(filepath.Separator)) {
			return
		}
		if err := os.Remove(abs); err != nil {
			// Not empty, already gone, or not removable. Either way, done.
			return
		}
		dir = filepath.Dir(dir)
	}
}

// FileName derives the stored filename: source-name stem plus an extension
// resolved from the mime type. When the mime registry has no mapping, the
// part after the slash is used as the extension. The source name is
// sender-controlled, so any directory components are stripped.
func FileName(src Source) string {
	stem := filepath.Base(src.Name)
	if stem == "." || stem == ".." || stem == string(filepath.Separator) {
		stem = src.FileID
	}

	ext := extensionFor(src.MimeType)
	if ext != "" && !strings.HasSuffix(stem, ext) {
		return stem + ext
	}
	return stem
}

// preferredExts pins conventional extensions for the mime types Telegram
// commonly delivers; mime.ExtensionsByType ordering is platform-dependent.
var preferredExts = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"audio/mpeg":      ".mp3",
	"audio/mp4":       ".m4a",
	"audio/ogg":       ".ogg",
	"video/mp4":       ".mp4",
	"application/pdf": ".pdf",
}

func extensionFor(mimeType string) string {
	if mimeType == "" {
		return ""
	}
	if ext, ok := preferredExts[mimeType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	if _, after, found := strings.Cut(mimeType, "/"); found && after != "" {
		return "." + after
	}
	return ""
}
