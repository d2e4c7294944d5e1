package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lanzoufetch/internal"
	"lanzoufetch/utils"
)

// Streamer opens a streaming GET; the caller closes the body
type Streamer interface {
	Stream(ctx context.Context, url string, headers http.Header) (*http.Response, error)
}

// Engine downloads a resolved file over a single stream into a .part file
// and renames it into place once complete. It implements internal.DownloadEngine.
type Engine struct {
	streamer    Streamer
	fileOps     *utils.FileOperations
	userAgent   string
	maxAttempts int
	retryDelay  time.Duration
	progressOut io.Writer

	lastSummary *utils.DownloadSummary
}

// NewEngine creates an engine using streamer for transfers
func NewEngine(cfg *internal.Config, streamer Streamer) *Engine {
	return &Engine{
		streamer:    streamer,
		fileOps:     utils.NewFileOperations(),
		userAgent:   cfg.UserAgent,
		maxAttempts: cfg.MaxRetries + 1,
		retryDelay:  time.Second,
		progressOut: os.Stderr,
	}
}

// SetProgressOutput redirects the progress bar and summary
func (e *Engine) SetProgressOutput(w io.Writer) {
	e.progressOut = w
}

// LastSummary returns the statistics of the most recent successful download
func (e *Engine) LastSummary() *utils.DownloadSummary {
	return e.lastSummary
}

// OutputPathFor picks the local path for meta. An empty configured path uses
// the sanitized remote name; an existing directory gets the name appended.
func (e *Engine) OutputPathFor(meta *internal.FileMetadata, configured string) string {
	name := utils.SanitizeFilename(meta.Filename)
	if configured == "" {
		return name
	}
	if info, err := os.Stat(configured); err == nil && info.IsDir() {
		return filepath.Join(configured, name)
	}
	if strings.HasSuffix(configured, string(os.PathSeparator)) {
		return filepath.Join(configured, name)
	}
	return configured
}

// Download streams meta.DirectURL to disk, retrying recoverable failures
func (e *Engine) Download(ctx context.Context, meta *internal.FileMetadata, config *internal.DownloadConfig) error {
	if meta == nil {
		return fmt.Errorf("file metadata cannot be nil")
	}
	if meta.DirectURL == "" {
		return fmt.Errorf("file metadata has no direct URL")
	}
	if config == nil {
		return fmt.Errorf("download config cannot be nil")
	}

	outputPath := e.OutputPathFor(meta, config.OutputPath)

	var lastErr error
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if attempt > 0 {
			backoffDelay := e.retryDelay * time.Duration(1<<uint(attempt-1))
			internal.LogWarn("download attempt %d failed: %v; retrying in %v", attempt, lastErr, backoffDelay)
			select {
			case <-time.After(backoffDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		summary, err := e.transfer(ctx, meta, outputPath, config)
		if err == nil {
			e.lastSummary = summary
			internal.LogInfo("saved %s (%d bytes)", outputPath, summary.TotalBytes)
			return nil
		}

		lastErr = err
		if rmErr := e.fileOps.RemovePartial(outputPath); rmErr != nil {
			internal.LogWarn("failed to remove partial file: %v", rmErr)
		}
		if !isRecoverableError(err) || ctx.Err() != nil {
			return err
		}
	}

	return fmt.Errorf("download failed after %d attempts: %w", e.maxAttempts, lastErr)
}

// transfer performs one attempt: stream, copy through limiter and progress, rename
func (e *Engine) transfer(ctx context.Context, meta *internal.FileMetadata, outputPath string, config *internal.DownloadConfig) (*utils.DownloadSummary, error) {
	headers := http.Header{}
	headers.Set("User-Agent", e.userAgent)
	headers.Set("Accept-Language", "zh-cn")
	if meta.Mirror != "" {
		headers.Set("Referer", meta.Mirror)
	}

	resp, err := e.streamer.Stream(ctx, meta.DirectURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to start download: %w", err)
	}
	defer resp.Body.Close()

	partFile, err := e.fileOps.CreatePartialFile(outputPath)
	if err != nil {
		return nil, err
	}

	tracker := utils.NewProgressTrackerTo(e.progressOut, resp.ContentLength, config.Quiet)
	tracker.SetFilename(outputPath)

	var body io.Reader = resp.Body
	if config.RateLimit > 0 {
		body = utils.NewBandwidthLimiter(config.RateLimit).Wrap(ctx, body)
	}

	written, copyErr := io.Copy(io.MultiWriter(partFile, tracker.Writer()), body)
	closeErr := partFile.Close()

	switch {
	case copyErr != nil:
		err = fmt.Errorf("failed to copy file data: %w", copyErr)
	case closeErr != nil:
		err = fmt.Errorf("failed to close partial file: %w", closeErr)
	case resp.ContentLength > 0 && written != resp.ContentLength:
		err = fmt.Errorf("file size mismatch: expected %d bytes, got %d bytes", resp.ContentLength, written)
	default:
		err = e.fileOps.AtomicRename(e.fileOps.PartPath(outputPath), outputPath)
		if err != nil {
			err = fmt.Errorf("failed to rename part file to final file: %w", err)
		}
	}
	if err != nil {
		_, _, pct := tracker.GetCurrentStats()
		internal.LogDebug("transfer of %s stopped at %d bytes (%.1f%%)", outputPath, written, pct)
		tracker.Abort()
		return nil, err
	}

	summary := tracker.Finish()
	summary.TotalBytes = written
	return summary, nil
}

// isRecoverableError reports whether another attempt may succeed
func isRecoverableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var se *utils.StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}

	errStr := strings.ToLower(err.Error())
	recoverablePatterns := []string{
		"connection reset",
		"connection refused",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"no route to host",
		"broken pipe",
		"unexpected eof",
		"size mismatch",
	}

	for _, pattern := range recoverablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
