package lanzou

import (
	"fmt"
	"math/rand"
	"net/http"

	"lanzoufetch/internal"
)

// IdentityForger builds browser-like request headers with a spoofed client IP
type IdentityForger struct {
	userAgent string
	prefixes  []int
	intn      func(n int) int
}

// NewIdentityForger creates a forger from the configured UA and IP prefix pool
func NewIdentityForger(cfg *internal.Config) *IdentityForger {
	return &IdentityForger{
		userAgent: cfg.UserAgent,
		prefixes:  cfg.IPPrefixes,
		intn:      rand.Intn,
	}
}

// WithRand replaces the randomness source; intn(n) must return a value in [0, n)
func (f *IdentityForger) WithRand(intn func(n int) int) *IdentityForger {
	f.intn = intn
	return f
}

// RandomIP returns an IPv4 address whose first octet comes from the prefix
// pool and whose remaining octets fall in 0..254.
func (f *IdentityForger) RandomIP() string {
	prefix := f.prefixes[f.intn(len(f.prefixes))]
	return fmt.Sprintf("%d.%d.%d.%d", prefix, f.intn(255), f.intn(255), f.intn(255))
}

// Headers returns a fresh header set for one request. host, when non-empty,
// overrides the Host header.
func (f *IdentityForger) Headers(referer, host string) http.Header {
	ip := f.RandomIP()

	h := http.Header{}
	h.Set("User-Agent", f.userAgent)
	h.Set("X-Forwarded-For", ip)
	h.Set("Client-IP", ip)
	h.Set("Referer", referer)
	h.Set("Connection", "Keep-Alive")
	h.Set("Accept", "*/*")
	h.Set("Accept-Language", "zh-cn")
	if host != "" {
		h.Set("Host", host)
	}
	return h
}
