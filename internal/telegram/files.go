package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	tgbot "github.com/go-telegram/bot"
)

// FileDownloader fetches file content from the Telegram Bot API file storage.
// It satisfies content.FileFetcher.
type FileDownloader struct {
	bot    *tgbot.Bot
	client *http.Client
	logger *slog.Logger
}

// NewFileDownloader creates a downloader bound to the given bot instance.
func NewFileDownloader(b *tgbot.Bot, logger *slog.Logger) *FileDownloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileDownloader{
		bot:    b,
		client: &http.Client{Timeout: 2 * time.Minute},
		logger: logger.With("component", "file_downloader"),
	}
}

// Download resolves the file path for fileID and streams the binary content
// into dst.
func (d *FileDownloader) Download(ctx context.Context, fileID string, dst io.Writer) error {
	file, err := d.bot.GetFile(ctx, &tgbot.GetFileParams{FileID: fileID})
	if err != nil {
		return fmt.Errorf("get file %s: %w", fileID, err)
	}

	link := d.bot.FileDownloadLink(file)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("download file %s: %w", fileID, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			d.logger.Warn("Error closing download response body", "file_id", fileID, "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download file %s: unexpected status %s", fileID, resp.Status)
	}

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("write file %s content: %w", fileID, err)
	}
	return nil
}
