package utils

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"
)

func TestProgressTracker_BasicFunctionality(t *testing.T) {
	quietTracker := NewProgressTracker(1000, true)

	quietTracker.Update(500)

	_, _, percentage := quietTracker.GetCurrentStats()
	if percentage != 50.0 {
		t.Errorf("Expected 50%% progress, got %.1f%%", percentage)
	}

	summary := quietTracker.Finish()
	if summary == nil {
		t.Fatal("Expected summary to be returned")
	}
	if summary.TotalBytes != 500 {
		t.Errorf("Expected 500 bytes, got %d", summary.TotalBytes)
	}
}

func TestProgressTracker_StatisticsCalculation(t *testing.T) {
	tracker := NewProgressTracker(1000, true)

	tracker.Update(100)
	time.Sleep(110 * time.Millisecond)
	tracker.Update(600)

	speed, eta, percentage := tracker.GetCurrentStats()
	if percentage != 60.0 {
		t.Errorf("Expected 60%% progress, got %.1f%%", percentage)
	}
	if speed <= 0 {
		t.Errorf("Speed should be positive after a sampled update, got %f", speed)
	}
	if eta < 0 {
		t.Error("ETA should not be negative")
	}

	tracker.Update(1000)
	summary := tracker.Finish()
	if summary.TotalBytes != 1000 {
		t.Errorf("Expected 1000 bytes, got %d", summary.TotalBytes)
	}
	if summary.TotalTime <= 0 {
		t.Error("Total time should be positive")
	}
}

func TestProgressTracker_Writer(t *testing.T) {
	tracker := NewProgressTracker(0, true)
	tracker.SetFilename("demo.apk")

	src := strings.NewReader(strings.Repeat("a", 4096))
	if _, err := io.Copy(io.Discard, io.TeeReader(src, tracker.Writer())); err != nil {
		t.Fatalf("copy failed: %v", err)
	}

	summary := tracker.Finish()
	if summary.TotalBytes != 4096 {
		t.Errorf("TotalBytes = %d, want 4096", summary.TotalBytes)
	}
	if summary.Filename != "demo.apk" {
		t.Errorf("Filename = %q", summary.Filename)
	}
	if _, _, pct := tracker.GetCurrentStats(); pct != 0 {
		t.Errorf("percentage with unknown total = %f, want 0", pct)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, test := range tests {
		if result := formatBytes(test.bytes); result != test.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", test.bytes, result, test.expected)
		}
	}
}

func TestProgressTracker_NonQuietMode(t *testing.T) {
	var out bytes.Buffer
	tracker := NewProgressTrackerTo(&out, 1000, false)

	tracker.Update(500)
	tracker.Update(1000)
	tracker.SetFilename("out.bin")

	if summary := tracker.Finish(); summary == nil {
		t.Fatal("Expected summary to be returned")
	}
	if !strings.Contains(out.String(), "Saved to: out.bin") {
		t.Errorf("summary missing from output: %q", out.String())
	}
}

func TestProgressTracker_AbortPrintsNoSummary(t *testing.T) {
	var out bytes.Buffer
	tracker := NewProgressTrackerTo(&out, 2048, false)
	tracker.SetFilename("partial.bin")
	tracker.Update(1024)

	tracker.Abort()
	tracker.Abort()

	if strings.Contains(out.String(), "Download completed successfully!") {
		t.Errorf("aborted transfer printed a success summary: %q", out.String())
	}
}
