package content_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ykaravaev/secretarybot/internal/content"
)

// fakeFetcher writes a fixed payload, or fails.
type fakeFetcher struct {
	payload string
	err     error
	calls   int
}

func (f *fakeFetcher) Download(_ context.Context, _ string, dst io.Writer) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(dst, f.payload)
	return err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestContentDirLayout(t *testing.T) {
	t.Parallel()

	store := content.NewStore("/var/cache/bot", nil, discardLogger())
	capturedAt := time.Unix(1700000000, 0).UTC()

	got := store.ContentDir(500, -100200, 42, capturedAt)
	want := filepath.Join("/var/cache/bot", "500", "-100200", "42", "1700000000")
	if got != want {
		t.Errorf("ContentDir() = %q, want %q", got, want)
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		src      content.Source
		expected string
	}{
		{
			name:     "jpeg photo keyed by file id",
			src:      content.Source{FileID: "AgACAgIAAxk", MimeType: "image/jpeg"},
			expected: "AgACAgIAAxk.jpg",
		},
		{
			name:     "document keeps its name",
			src:      content.Source{FileID: "doc1", Name: "report", MimeType: "application/pdf"},
			expected: "report.pdf",
		},
		{
			name:     "name already carrying the extension",
			src:      content.Source{FileID: "doc2", Name: "report.pdf", MimeType: "application/pdf"},
			expected: "report.pdf",
		},
		{
			name:     "unknown mime falls back to subtype",
			src:      content.Source{FileID: "f1", MimeType: "application/x-tgsticker"},
			expected: "f1.x-tgsticker",
		},
		{
			name:     "missing mime leaves the stem bare",
			src:      content.Source{FileID: "f2"},
			expected: "f2",
		},
		{
			name:     "voice note ogg",
			src:      content.Source{FileID: "v1", MimeType: "audio/ogg"},
			expected: "v1.ogg",
		},
		{
			name:     "name with directory components is flattened",
			src:      content.Source{FileID: "doc3", Name: "reports/2023/summary.pdf", MimeType: "application/pdf"},
			expected: "summary.pdf",
		},
		{
			name:     "traversal name keeps only the base",
			src:      content.Source{FileID: "doc4", Name: "../../etc/passwd"},
			expected: "passwd",
		},
		{
			name:     "degenerate name falls back to file id",
			src:      content.Source{FileID: "doc5", Name: "..", MimeType: "application/pdf"},
			expected: "doc5.pdf",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := content.FileName(tc.src); got != tc.expected {
				t.Errorf("FileName(%+v) = %q, want %q", tc.src, got, tc.expected)
			}
		})
	}
}

func TestCaptureWritesFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	fetcher := &fakeFetcher{payload: "binary-content"}
	store := content.NewStore(root, fetcher, discardLogger())
	capturedAt := time.Unix(1700000000, 0).UTC()

	desc, err := store.Capture(context.Background(), 500, 100, 42, capturedAt,
		content.Source{FileID: "photo-large", MimeType: "image/jpeg"})
	if err != nil {
		t.Fatalf("Capture returned error: %v", err)
	}

	wantPath := filepath.Join(root, "500", "100", "42", "1700000000", "photo-large.jpg")
	if desc.Path != wantPath {
		t.Errorf("descriptor path = %q, want %q", desc.Path, wantPath)
	}
	if desc.Name != "photo-large.jpg" {
		t.Errorf("descriptor name = %q, want photo-large.jpg", desc.Name)
	}

	data, err := os.ReadFile(desc.Path)
	if err != nil {
		t.Fatalf("reading captured file: %v", err)
	}
	if string(data) != "binary-content" {
		t.Errorf("file content = %q, want %q", data, "binary-content")
	}
}

// A source name carrying path separators must still capture: the stored file
// keeps only the base name and lands inside the capture directory.
func TestCaptureSanitizesSourceName(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	fetcher := &fakeFetcher{payload: "x"}
	store := content.NewStore(root, fetcher, discardLogger())

	desc, err := store.Capture(context.Background(), 500, 100, 42, time.Unix(1700000000, 0),
		content.Source{FileID: "doc", Name: "nested/dir/notes.pdf", MimeType: "application/pdf"})
	if err != nil {
		t.Fatalf("Capture returned error: %v", err)
	}

	wantPath := filepath.Join(root, "500", "100", "42", "1700000000", "notes.pdf")
	if desc.Path != wantPath {
		t.Errorf("descriptor path = %q, want %q", desc.Path, wantPath)
	}
	if _, err := os.Stat(wantPath); err != nil {
		t.Errorf("captured file missing: %v", err)
	}
}

// Re-capturing into an existing directory chain must not fail: directory
// creation is idempotent and a second version gets its own timestamped dir.
func TestCaptureIsIdempotentAcrossVersions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	fetcher := &fakeFetcher{payload: "x"}
	store := content.NewStore(root, fetcher, discardLogger())
	ctx := context.Background()
	src := content.Source{FileID: "doc", Name: "notes", MimeType: "application/pdf"}

	first, err := store.Capture(ctx, 500, 100, 42, time.Unix(1700000000, 0), src)
	if err != nil {
		t.Fatalf("first Capture returned error: %v", err)
	}
	second, err := store.Capture(ctx, 500, 100, 42, time.Unix(1700000060, 0), src)
	if err != nil {
		t.Fatalf("second Capture returned error: %v", err)
	}

	if first.Path == second.Path {
		t.Errorf("both captures resolved to %q, want distinct timestamped paths", first.Path)
	}
	for _, p := range []string{first.Path, second.Path} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("captured file %q missing: %v", p, err)
		}
	}
}

func TestCaptureFetchFailureLeavesNoFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	fetcher := &fakeFetcher{err: errors.New("bad gateway")}
	store := content.NewStore(root, fetcher, discardLogger())

	_, err := store.Capture(context.Background(), 500, 100, 42, time.Unix(1700000000, 0),
		content.Source{FileID: "photo", MimeType: "image/jpeg"})
	if !errors.Is(err, content.ErrFetch) {
		t.Fatalf("Capture error = %v, want %v", err, content.ErrFetch)
	}

	dir := filepath.Join(root, "500", "100", "42", "1700000000")
	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		t.Fatalf("reading capture dir: %v", readErr)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "photo") && !strings.Contains(e.Name(), ".download-") {
			t.Errorf("unexpected file %q left after failed fetch", e.Name())
		}
	}
	if len(entries) != 0 {
		t.Errorf("capture dir holds %d entries after failed fetch, want 0", len(entries))
	}
}

func TestDeleteAllIsBestEffort(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := content.NewStore(root, nil, discardLogger())

	existing := filepath.Join(root, "file.bin")
	if err := os.WriteFile(existing, []byte("x"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	// The missing path and the empty path must not block the real one.
	store.DeleteAll(context.Background(), []string{
		filepath.Join(root, "never-existed.bin"),
		"",
		existing,
	})

	if _, err := os.Stat(existing); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("existing file was not deleted: %v", err)
	}
}

// Deleting the last file of a capture prunes its directory chain, but never
// a directory still holding another capture, and never the root itself.
func TestDeleteAllPrunesEmptyDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	fetcher := &fakeFetcher{payload: "x"}
	store := content.NewStore(root, fetcher, discardLogger())
	ctx := context.Background()
	src := content.Source{FileID: "photo", MimeType: "image/jpeg"}

	first, err := store.Capture(ctx, 500, 100, 42, time.Unix(1700000000, 0), src)
	if err != nil {
		t.Fatalf("first Capture returned error: %v", err)
	}
	second, err := store.Capture(ctx, 500, 100, 43, time.Unix(1700000060, 0), src)
	if err != nil {
		t.Fatalf("second Capture returned error: %v", err)
	}

	store.DeleteAll(ctx, []string{first.Path})

	if _, err := os.Stat(filepath.Join(root, "500", "100", "42")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("emptied message directory survived: %v", err)
	}
	if _, err := os.Stat(second.Path); err != nil {
		t.Errorf("sibling capture was disturbed: %v", err)
	}

	store.DeleteAll(ctx, []string{second.Path})

	if _, err := os.Stat(filepath.Join(root, "500")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("emptied owner directory survived: %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Errorf("store root was removed: %v", err)
	}
}
