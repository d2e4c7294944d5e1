package lanzou

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"lanzoufetch/internal"
	"lanzoufetch/utils"
)

// Prober issues a single HEAD request without following redirects
type Prober interface {
	Probe(ctx context.Context, url string, headers http.Header) (*utils.Response, error)
}

// RedirectResolver walks a redirect chain with HEAD probes up to a hop limit
type RedirectResolver struct {
	prober  Prober
	forger  *IdentityForger
	maxHops int
}

// NewRedirectResolver creates a resolver stopping after maxHops redirects
func NewRedirectResolver(prober Prober, forger *IdentityForger, maxHops int) *RedirectResolver {
	return &RedirectResolver{prober: prober, forger: forger, maxHops: maxHops}
}

// Resolve returns the last URL reached. It never fails: probe errors and the
// hop limit both end the walk at the current URL. session may be nil.
func (r *RedirectResolver) Resolve(ctx context.Context, rawURL string, session *Session) string {
	current := rawURL

	for hop := 0; ; hop++ {
		if hop >= r.maxHops {
			internal.LogWarn("redirect limit %d reached, using %s", r.maxHops, current)
			return current
		}

		headers := session.Apply(r.forger.Headers(current, hostOf(current)))
		resp, err := r.prober.Probe(ctx, current, headers)

		var next string
		switch {
		case err != nil:
			var se *utils.StatusError
			if errors.As(err, &se) && se.StatusCode >= 300 && se.StatusCode < 400 {
				next = se.Location()
			}
			if next == "" {
				degraded := internal.NewLanzouError(internal.ErrResolutionDegraded, internal.MsgResolveFailed).
					WithURL(current).
					WithCause(err).
					WithContext("hop", hop)
				internal.LogLanzouError(degraded)
				return current
			}
		default:
			next = resp.Header.Get("Location")
		}

		if next == "" {
			internal.LogDebug("final URL after %d redirects: %s", hop, current)
			return current
		}

		resolved := resolveReference(current, next)
		internal.LogDebug("redirect %d: %s -> %s", hop+1, current, resolved)
		current = resolved
	}
}

// resolveReference resolves a possibly relative Location against base
func resolveReference(base, location string) string {
	b, err := url.Parse(base)
	if err != nil {
		return location
	}
	ref, err := url.Parse(location)
	if err != nil {
		return location
	}
	return b.ResolveReference(ref).String()
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
