package utils

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// BandwidthLimiter caps the byte rate of wrapped readers. A zero rate means
// unlimited. It satisfies internal.RateLimiter.
type BandwidthLimiter struct {
	mu      sync.RWMutex
	limiter *rate.Limiter
}

// NewBandwidthLimiter creates a limiter allowing bytesPerSecond
func NewBandwidthLimiter(bytesPerSecond int64) *BandwidthLimiter {
	l := &BandwidthLimiter{}
	l.SetRate(bytesPerSecond)
	return l
}

// SetRate changes the allowed rate; <= 0 disables limiting. The burst is one
// second of traffic, never below 32KiB.
func (l *BandwidthLimiter) SetRate(bytesPerSecond int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if bytesPerSecond <= 0 {
		l.limiter = nil
		return
	}
	burst := int(bytesPerSecond)
	if burst < 32*1024 {
		burst = 32 * 1024
	}
	if l.limiter == nil {
		l.limiter = rate.NewLimiter(rate.Limit(bytesPerSecond), burst)
		return
	}
	l.limiter.SetLimit(rate.Limit(bytesPerSecond))
	l.limiter.SetBurst(burst)
}

// Rate returns the configured bytes per second, 0 when unlimited
func (l *BandwidthLimiter) Rate() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.limiter == nil {
		return 0
	}
	return int64(l.limiter.Limit())
}

// Wrap returns a reader whose throughput is bounded by the limiter
func (l *BandwidthLimiter) Wrap(ctx context.Context, r io.Reader) io.Reader {
	return &limitedReader{ctx: ctx, r: r, l: l}
}

func (l *BandwidthLimiter) current() *rate.Limiter {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limiter
}

type limitedReader struct {
	ctx context.Context
	r   io.Reader
	l   *BandwidthLimiter
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	lim := lr.l.current()
	if lim == nil {
		return lr.r.Read(p)
	}
	if burst := lim.Burst(); len(p) > burst {
		p = p[:burst]
	}

	n, err := lr.r.Read(p)
	if n > 0 {
		if werr := lim.WaitN(lr.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// ParseRateLimit parses rate limit strings like "1M", "500K", "2G", "1.5MB"
func ParseRateLimit(rateStr string) (int64, error) {
	rateStr = strings.TrimSpace(rateStr)
	if rateStr == "" {
		return 0, nil
	}

	// Handle pure numbers (bytes per second)
	if val, err := strconv.ParseInt(rateStr, 10, 64); err == nil {
		if val < 0 {
			return 0, fmt.Errorf("rate cannot be negative: %d", val)
		}
		return val, nil
	}

	if len(rateStr) < 2 {
		return 0, fmt.Errorf("invalid rate format: %s", rateStr)
	}

	var numStr, suffix string
	rateUpper := strings.ToUpper(rateStr)

	// Check for 2-character suffixes first (KB, MB, GB, TB)
	if len(rateUpper) >= 3 && (strings.HasSuffix(rateUpper, "KB") ||
		strings.HasSuffix(rateUpper, "MB") ||
		strings.HasSuffix(rateUpper, "GB") ||
		strings.HasSuffix(rateUpper, "TB")) {
		numStr = rateStr[:len(rateStr)-2]
		suffix = rateUpper[len(rateUpper)-2:]
	} else {
		numStr = rateStr[:len(rateStr)-1]
		suffix = rateUpper[len(rateUpper)-1:]
	}

	baseValue, err := strconv.ParseFloat(strings.TrimSpace(numStr), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value in rate: %s", numStr)
	}
	if baseValue < 0 {
		return 0, fmt.Errorf("rate cannot be negative: %f", baseValue)
	}

	var multiplier int64
	switch suffix {
	case "B":
		multiplier = 1
	case "K", "KB":
		multiplier = 1024
	case "M", "MB":
		multiplier = 1024 * 1024
	case "G", "GB":
		multiplier = 1024 * 1024 * 1024
	case "T", "TB":
		multiplier = 1024 * 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unsupported rate suffix: %s (supported: B, K/KB, M/MB, G/GB, T/TB)", suffix)
	}

	result := int64(baseValue * float64(multiplier))
	if result < 0 {
		return 0, fmt.Errorf("rate value overflow")
	}

	return result, nil
}

// FormatRate formats a bytes-per-second value for display
func FormatRate(bytesPerSecond int64) string {
	if bytesPerSecond <= 0 {
		return "unlimited"
	}
	return formatBytes(bytesPerSecond) + "/s"
}
