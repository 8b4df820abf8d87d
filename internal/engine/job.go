package engine

import (
	"context"
	"sync"
	"time"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusProbing     Status = "probing"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// Request describes one download. It is immutable after submission.
type Request struct {
	URL         string
	OutputPath  string
	Connections int
}

// Job is the aggregate the engine tracks per download: the plan, the live
// byte counters, retry state, and lifecycle status.
type Job struct {
	ID         string
	Request    Request
	MaxRetries int

	mu              sync.Mutex
	status          Status
	totalSize       int64
	rangeSupported  bool
	segments        []*Segment
	retryCount      int
	lastErr         error
	cancel          context.CancelFunc
	cancelRequested bool
	terminalSent    bool
	attemptStart    time.Time

	gate *Gate
}

func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// setStatus moves the job to s unless it already reached a state that is
// never left.
func (j *Job) setStatus(s Status) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == StatusCompleted || j.status == StatusCancelled {
		return
	}
	j.status = s
}

// TotalSize is the probed resource size, -1 while unknown.
func (j *Job) TotalSize() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.totalSize
}

func (j *Job) RangeSupported() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rangeSupported
}

func (j *Job) RetryCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.retryCount
}

func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastErr
}

// Segments returns the current plan. Valid to inspect once the job has
// reached a terminal status.
func (j *Job) Segments() []*Segment {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.segments
}

// Downloaded sums the live segment counters.
func (j *Job) Downloaded() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.downloadedLocked()
}

func (j *Job) downloadedLocked() int64 {
	var total int64
	for _, seg := range j.segments {
		total += seg.Downloaded()
	}
	return total
}

// speedLocked is the average rate of the current attempt in bytes per second.
func (j *Job) speedLocked() float64 {
	if j.attemptStart.IsZero() {
		return 0
	}
	elapsed := time.Since(j.attemptStart).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(j.downloadedLocked()) / elapsed
}

func (j *Job) isCancelRequested() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelRequested
}

func (j *Job) setPlan(size int64, rangeSupported bool, segments []*Segment) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.totalSize = size
	j.rangeSupported = rangeSupported
	j.segments = segments
	j.attemptStart = time.Now()
	if j.status == StatusProbing {
		j.status = StatusDownloading
	}
}
