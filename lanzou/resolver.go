package lanzou

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lanzoufetch/internal"
	"lanzoufetch/utils"
)

// MirrorAttempt records the outcome of one mirror
type MirrorAttempt struct {
	Mirror   string
	File     *internal.FileMetadata
	Err      *internal.LanzouError
	Duration time.Duration
}

// Resolver tries each configured mirror in order until one resolves the link
type Resolver struct {
	mirrors   []string
	client    *Client
	validator *utils.ShareURLValidator
}

// NewResolver creates a resolver over cfg.Mirrors using transport for all traffic
func NewResolver(cfg *internal.Config, transport Transport) *Resolver {
	return &Resolver{
		mirrors:   cfg.Mirrors,
		client:    NewClient(cfg, transport),
		validator: utils.NewShareURLValidator(),
	}
}

// Client returns the protocol client shared by all attempts
func (r *Resolver) Client() *Client {
	return r.client
}

// Resolve implements internal.LinkResolver
func (r *Resolver) Resolve(ctx context.Context, req internal.ResolutionRequest) (*internal.FileMetadata, error) {
	meta, _, err := r.ResolveAttempts(ctx, req)
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// ResolveAttempts resolves req and also returns the per-mirror record. Input
// is validated before any mirror is contacted. Iteration stops at the first
// success, on a terminal failure, or when ctx is done. With every mirror
// failed the last failure is returned.
func (r *Resolver) ResolveAttempts(ctx context.Context, req internal.ResolutionRequest) (*internal.FileMetadata, []MirrorAttempt, error) {
	share, err := r.validator.Parse(req.ShareURL)
	if err != nil {
		return nil, nil, err
	}

	traceID := uuid.New().String()
	logger := internal.GetLogger()
	logger.Fields(internal.LogLevelInfo, "resolving share link", map[string]interface{}{
		"trace_id": traceID,
		"share_id": share.ShareID,
		"mirrors":  len(r.mirrors),
	})

	var (
		attempts []MirrorAttempt
		lastErr  *internal.LanzouError
	)

	for _, mirror := range r.mirrors {
		if ctxErr := ctx.Err(); ctxErr != nil {
			lastErr = internal.NewUpstreamUnavailableError(mirror, ctxErr)
			break
		}

		start := time.Now()
		meta, lerr := r.attempt(ctx, mirror, share, req)
		rec := MirrorAttempt{Mirror: mirror, File: meta, Err: lerr, Duration: time.Since(start)}
		attempts = append(attempts, rec)

		if lerr == nil {
			logger.Fields(internal.LogLevelInfo, "share link resolved", map[string]interface{}{
				"trace_id": traceID,
				"mirror":   mirror,
				"duration": rec.Duration,
			})
			return meta, attempts, nil
		}

		lastErr = lerr
		logger.Fields(internal.LogLevelWarn, "mirror attempt failed", map[string]interface{}{
			"trace_id": traceID,
			"mirror":   mirror,
			"type":     lerr.Type.String(),
			"message":  lerr.Message,
			"detail":   lerr.Detail,
		})

		if lerr.IsTerminal() {
			break
		}
	}

	if lastErr == nil {
		lastErr = internal.NewUpstreamRejectedError(internal.MsgResolveFailed)
	}
	return nil, attempts, lastErr
}

// attempt runs one mirror and converts every failure, panics included, into a
// *LanzouError tagged with the mirror.
func (r *Resolver) attempt(ctx context.Context, mirror string, share *utils.ShareURLInfo, req internal.ResolutionRequest) (meta *internal.FileMetadata, lerr *internal.LanzouError) {
	defer func() {
		if rec := recover(); rec != nil {
			internal.LogError("attempt on %s panicked: %v", mirror, rec)
			meta = nil
			lerr = internal.NewLanzouError(internal.ErrUnexpected, internal.MsgResolveException).
				WithDetail(fmt.Sprint(rec)).
				WithMirror(mirror)
		}
	}()

	m, err := r.client.Attempt(ctx, mirror, share, req)
	if err != nil {
		return nil, internal.AsLanzouError(err).WithMirror(mirror)
	}
	return m, nil
}
