package utils

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"lanzoufetch/internal"
)

var _ internal.RateLimiter = (*BandwidthLimiter)(nil)

func TestBandwidthLimiter_NoRateLimit(t *testing.T) {
	limiter := NewBandwidthLimiter(0)
	if limiter.Rate() != 0 {
		t.Errorf("Rate() = %d, want 0", limiter.Rate())
	}

	data := bytes.Repeat([]byte("x"), 1<<20)
	start := time.Now()
	n, err := io.Copy(io.Discard, limiter.Wrap(context.Background(), bytes.NewReader(data)))
	if err != nil {
		t.Fatalf("copy failed: %v", err)
	}
	if n != int64(len(data)) {
		t.Errorf("copied %d bytes, want %d", n, len(data))
	}
	if time.Since(start) > time.Second {
		t.Error("unlimited reader should not throttle")
	}
}

func TestBandwidthLimiter_Throttles(t *testing.T) {
	// burst equals one second of rate, so 160KiB at 64KiB/s waits about 1.5s
	limiter := NewBandwidthLimiter(64 * 1024)
	data := bytes.Repeat([]byte("x"), 160*1024)

	start := time.Now()
	n, err := io.Copy(io.Discard, limiter.Wrap(context.Background(), bytes.NewReader(data)))
	if err != nil {
		t.Fatalf("copy failed: %v", err)
	}
	if n != int64(len(data)) {
		t.Errorf("copied %d bytes, want %d", n, len(data))
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("copy took %v, expected throttling", elapsed)
	}
}

func TestBandwidthLimiter_Burst(t *testing.T) {
	tests := []struct {
		name  string
		rate  int64
		burst int
	}{
		{"slow_rate_gets_floor", 1024, 32 * 1024},
		{"floor_rate", 32 * 1024, 32 * 1024},
		{"fast_rate_bursts_one_second", 64 * 1024, 64 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := NewBandwidthLimiter(tt.rate)
			if got := limiter.limiter.Burst(); got != tt.burst {
				t.Errorf("burst = %d, want %d", got, tt.burst)
			}
		})
	}
}

func TestBandwidthLimiter_ContextCancellation(t *testing.T) {
	limiter := NewBandwidthLimiter(1024)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data := bytes.Repeat([]byte("x"), 128*1024)
	_, err := io.Copy(io.Discard, limiter.Wrap(ctx, bytes.NewReader(data)))
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBandwidthLimiter_SetRate(t *testing.T) {
	limiter := NewBandwidthLimiter(1024 * 1024)
	if limiter.Rate() != 1024*1024 {
		t.Errorf("Rate() = %d", limiter.Rate())
	}

	limiter.SetRate(2 * 1024 * 1024)
	if limiter.Rate() != 2*1024*1024 {
		t.Errorf("Rate() after SetRate = %d", limiter.Rate())
	}

	limiter.SetRate(0)
	if limiter.Rate() != 0 {
		t.Errorf("Rate() after disabling = %d", limiter.Rate())
	}
}

func TestParseRateLimit(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
		hasError bool
	}{
		{"Empty string", "", 0, false},
		{"Pure number", "1000", 1000, false},
		{"Bytes", "500B", 500, false},
		{"Kilobytes", "5K", 5 * 1024, false},
		{"Kilobytes with B", "5KB", 5 * 1024, false},
		{"Megabytes", "10M", 10 * 1024 * 1024, false},
		{"Megabytes with B", "10MB", 10 * 1024 * 1024, false},
		{"Gigabytes", "2G", 2 * 1024 * 1024 * 1024, false},
		{"Decimal megabytes", "1.5M", int64(1.5 * 1024 * 1024), false},
		{"With whitespace", "  5M  ", 5 * 1024 * 1024, false},
		{"Invalid suffix", "5X", 0, true},
		{"Invalid number", "abcM", 0, true},
		{"Negative number", "-5M", 0, true},
		{"Negative bytes", "-5", 0, true},
		{"Too short", "M", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseRateLimit(tt.input)

			if tt.hasError {
				if err == nil {
					t.Errorf("Expected error for input %q, but got none", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error for input %q: %v", tt.input, err)
			}
			if result != tt.expected {
				t.Errorf("For input %q, expected %d, got %d", tt.input, tt.expected, result)
			}
		})
	}
}

func TestFormatRate(t *testing.T) {
	if got := FormatRate(0); got != "unlimited" {
		t.Errorf("FormatRate(0) = %q", got)
	}
	if got := FormatRate(2 * 1024 * 1024); got != "2.0 MB/s" {
		t.Errorf("FormatRate(2MiB) = %q", got)
	}
}
