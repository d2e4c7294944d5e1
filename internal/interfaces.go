package internal

import (
	"context"
	"io"
)

// LinkResolver turns a share request into file metadata with a direct URL
type LinkResolver interface {
	Resolve(ctx context.Context, req ResolutionRequest) (*FileMetadata, error)
}

// DownloadEngine streams a resolved file to disk
type DownloadEngine interface {
	Download(ctx context.Context, meta *FileMetadata, config *DownloadConfig) error
}

// RateLimiter controls bandwidth usage
type RateLimiter interface {
	Wrap(ctx context.Context, r io.Reader) io.Reader
	SetRate(bytesPerSecond int64)
}
