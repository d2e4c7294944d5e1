package utils

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
)

// ProgressTracker renders download progress and collects transfer statistics
type ProgressTracker struct {
	bar       *pb.ProgressBar
	quiet     bool
	out       io.Writer
	startTime time.Time
	total     int64
	current   int64
	filename  string
	mutex     sync.RWMutex

	lastUpdate   time.Time
	lastBytes    int64
	speedSamples []float64
	maxSamples   int
}

// DownloadSummary contains final download statistics
type DownloadSummary struct {
	TotalBytes   int64
	TotalTime    time.Duration
	AverageSpeed float64 // bytes per second
	PeakSpeed    float64 // bytes per second
	Filename     string
}

// NewProgressTracker creates a tracker; total may be <= 0 when the size is unknown
func NewProgressTracker(total int64, quiet bool) *ProgressTracker {
	return NewProgressTrackerTo(os.Stderr, total, quiet)
}

// NewProgressTrackerTo creates a tracker rendering to out
func NewProgressTrackerTo(out io.Writer, total int64, quiet bool) *ProgressTracker {
	tracker := &ProgressTracker{
		quiet:        quiet,
		out:          out,
		startTime:    time.Now(),
		total:        total,
		lastUpdate:   time.Now(),
		speedSamples: make([]float64, 0, 10),
		maxSamples:   10,
	}

	if !quiet {
		tmpl := `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}`
		if total <= 0 {
			tmpl = `{{string . "prefix"}}{{counters . }} {{speed . }} {{etime . }}`
		}
		bar := pb.ProgressBarTemplate(tmpl).New(0).SetTotal(total)
		bar.SetWriter(out)
		bar.Set(pb.Bytes, true)
		bar.Set(pb.SIBytesPrefix, true)
		bar.Set("prefix", "Downloading: ")
		bar.Start()
		tracker.bar = bar
	}

	return tracker
}

// Writer returns an io.Writer that advances the tracker by the bytes written,
// for use with io.TeeReader or io.MultiWriter.
func (p *ProgressTracker) Writer() io.Writer {
	return progressWriter{p}
}

type progressWriter struct{ p *ProgressTracker }

func (w progressWriter) Write(b []byte) (int, error) {
	w.p.Add(int64(len(b)))
	return len(b), nil
}

// Add advances progress by n bytes
func (p *ProgressTracker) Add(n int64) {
	p.mutex.RLock()
	current := p.current
	p.mutex.RUnlock()
	p.Update(current + n)
}

// Update sets the absolute progress and refreshes speed statistics
func (p *ProgressTracker) Update(current int64) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	now := time.Now()
	p.current = current
	if p.bar != nil {
		p.bar.SetCurrent(current)
	}

	// sample speed at most every 100ms
	timeDiff := now.Sub(p.lastUpdate).Seconds()
	if timeDiff > 0.1 {
		currentSpeed := float64(current-p.lastBytes) / timeDiff

		p.speedSamples = append(p.speedSamples, currentSpeed)
		if len(p.speedSamples) > p.maxSamples {
			p.speedSamples = p.speedSamples[1:]
		}

		p.lastUpdate = now
		p.lastBytes = current
	}
}

// Finish completes the progress bar and returns download summary
func (p *ProgressTracker) Finish() *DownloadSummary {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	totalTime := time.Since(p.startTime)
	if p.bar != nil {
		p.bar.Finish()
	}

	var averageSpeed float64
	if totalTime > 0 {
		averageSpeed = float64(p.current) / totalTime.Seconds()
	}

	var peakSpeed float64
	for _, speed := range p.speedSamples {
		if speed > peakSpeed {
			peakSpeed = speed
		}
	}

	summary := &DownloadSummary{
		TotalBytes:   p.current,
		TotalTime:    totalTime,
		AverageSpeed: averageSpeed,
		PeakSpeed:    peakSpeed,
		Filename:     p.filename,
	}

	if !p.quiet {
		p.displaySummary(summary)
	}

	return summary
}

// Abort stops the progress bar without printing a summary
func (p *ProgressTracker) Abort() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}

func (p *ProgressTracker) displaySummary(summary *DownloadSummary) {
	fmt.Fprintf(p.out, "\n")
	fmt.Fprintf(p.out, "Download completed successfully!\n")
	fmt.Fprintf(p.out, "Total size: %s\n", formatBytes(summary.TotalBytes))
	fmt.Fprintf(p.out, "Total time: %v\n", summary.TotalTime.Round(time.Millisecond))
	fmt.Fprintf(p.out, "Average speed: %s/s\n", formatBytes(int64(summary.AverageSpeed)))
	if summary.PeakSpeed > 0 {
		fmt.Fprintf(p.out, "Peak speed: %s/s\n", formatBytes(int64(summary.PeakSpeed)))
	}
	if summary.Filename != "" {
		fmt.Fprintf(p.out, "Saved to: %s\n", summary.Filename)
	}
}

// SetFilename sets the filename reported in the summary
func (p *ProgressTracker) SetFilename(filename string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.filename = filename
}

// GetCurrentStats returns current speed, ETA and completion percentage.
// Percentage is 0 when the total size is unknown.
func (p *ProgressTracker) GetCurrentStats() (speed float64, eta time.Duration, percentage float64) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if n := len(p.speedSamples); n > 0 {
		sampleCount := n
		if sampleCount > 3 {
			sampleCount = 3
		}
		for i := n - sampleCount; i < n; i++ {
			speed += p.speedSamples[i]
		}
		speed /= float64(sampleCount)
	}

	if speed > 0 && p.total > p.current {
		eta = time.Duration(float64(p.total-p.current)/speed) * time.Second
	}

	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100
	}

	return speed, eta, percentage
}

// formatBytes formats byte count as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
