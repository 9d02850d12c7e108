package zmodem

import (
	"sync"
	"time"
)

// ProgressTracker tracks transfer progress (offset against the file's
// advertised size, per spec §3's data model) and invokes progress
// callbacks no more often than updateInterval.
type ProgressTracker struct {
	mu sync.Mutex

	filename   string
	offset     int64
	filesize   int64
	startTime  time.Time
	lastUpdate time.Time
	lastOffset int64

	callback       func(string, int64, int64, float64)
	updateInterval time.Duration
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker(callback func(string, int64, int64, float64), interval time.Duration) *ProgressTracker {
	if interval <= 0 {
		interval = 100 * time.Millisecond // Default: update every 100ms
	}
	
	return &ProgressTracker{
		callback:       callback,
		updateInterval: interval,
	}
}

// Start begins tracking a new file transfer.
func (pt *ProgressTracker) Start(filename string, filesize int64) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.filename = filename
	pt.filesize = filesize
	pt.offset = 0
	pt.startTime = time.Now()
	pt.lastUpdate = pt.startTime
	pt.lastOffset = 0
}

// Update records the new offset and invokes the callback if enough time has
// passed since the last one.
func (pt *ProgressTracker) Update(offset int64) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.offset = offset

	now := time.Now()
	if now.Sub(pt.lastUpdate) < pt.updateInterval {
		return
	}

	elapsed := now.Sub(pt.lastUpdate).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(offset-pt.lastOffset) / elapsed
	}

	if pt.callback != nil {
		pt.callback(pt.filename, offset, pt.filesize, rate)
	}

	pt.lastUpdate = now
	pt.lastOffset = offset
}

// Complete marks the transfer as complete and returns the duration.
func (pt *ProgressTracker) Complete() time.Duration {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	duration := time.Since(pt.startTime)

	if pt.callback != nil {
		pt.callback(pt.filename, pt.offset, pt.filesize, 0)
	}

	return duration
}

// GetStats returns current progress statistics.
func (pt *ProgressTracker) GetStats() (filename string, offset, filesize int64, rate float64, duration time.Duration) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	filename = pt.filename
	offset = pt.offset
	filesize = pt.filesize
	duration = time.Since(pt.startTime)

	if duration.Seconds() > 0 {
		rate = float64(offset) / duration.Seconds()
	}

	return
}

