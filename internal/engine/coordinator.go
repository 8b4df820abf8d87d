// Package engine downloads single remote resources into local files by
// splitting them into concurrently fetched byte-range segments. A Manager
// owns the jobs: submit with Add, drive with Start/Pause/Resume/Cancel, and
// watch Events for progress snapshots and terminal notifications.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yankdl/yank/internal/transport"
	"github.com/yankdl/yank/internal/utils"
)

type Config struct {
	MaxRetries       int
	RetryBackoff     time.Duration
	ProbeTimeout     time.Duration
	ProgressInterval time.Duration
	HTTPClient       utils.HTTPClientConfig
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:       3,
		RetryBackoff:     2 * time.Second,
		ProbeTimeout:     30 * time.Second,
		ProgressInterval: 500 * time.Millisecond,
	}
}

type Manager struct {
	cfg    Config
	mu     sync.Mutex
	jobs   map[string]*Job
	order  []string
	events chan Event
	wg     sync.WaitGroup
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 30 * time.Second
	}
	if cfg.ProgressInterval == 0 {
		cfg.ProgressInterval = 500 * time.Millisecond
	}
	return &Manager{
		cfg:    cfg,
		jobs:   make(map[string]*Job),
		events: make(chan Event, 64),
	}
}

// Events delivers progress and terminal notifications for all jobs. The
// channel must be drained; terminal sends block until received.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Add registers a download without starting it.
func (m *Manager) Add(req Request) (*Job, error) {
	if req.URL == "" {
		return nil, errors.New("url is required")
	}
	if req.OutputPath == "" {
		return nil, errors.New("output path is required")
	}
	if req.Connections < MinConnections || req.Connections > MaxConnections {
		return nil, fmt.Errorf("connections must be between %d and %d", MinConnections, MaxConnections)
	}
	job := &Job{
		ID:         uuid.New().String(),
		Request:    req,
		MaxRetries: m.cfg.MaxRetries,
		status:     StatusPending,
		totalSize:  -1,
		gate:       NewGate(),
	}
	m.mu.Lock()
	m.jobs[job.ID] = job
	m.order = append(m.order, job.ID)
	m.mu.Unlock()
	return job, nil
}

func (m *Manager) lookup(id string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id]
}

// Start launches a pending job, or relaunches a failed one for a fresh try.
// Anything else is ignored.
func (m *Manager) Start(id string) {
	log := utils.GetLogger("engine")
	job := m.lookup(id)
	if job == nil {
		log.Debug().Str("jobId", id).Msg("Ignoring start for unknown job")
		return
	}
	job.mu.Lock()
	if job.status != StatusPending && job.status != StatusFailed {
		status := job.status
		job.mu.Unlock()
		log.Debug().Str("jobId", id).Str("status", string(status)).Msg("Ignoring start in current status")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	job.status = StatusProbing
	job.cancel = cancel
	job.cancelRequested = false
	job.terminalSent = false
	job.lastErr = nil
	job.mu.Unlock()
	job.gate.Open()
	m.wg.Add(1)
	go m.runJob(ctx, job)
}

// Pause freezes an active download in place. Byte counters and sink files
// stay exactly as they are.
func (m *Manager) Pause(id string) {
	log := utils.GetLogger("engine")
	job := m.lookup(id)
	if job == nil {
		log.Debug().Str("jobId", id).Msg("Ignoring pause for unknown job")
		return
	}
	job.mu.Lock()
	if job.status != StatusDownloading {
		status := job.status
		job.mu.Unlock()
		log.Debug().Str("jobId", id).Str("status", string(status)).Msg("Ignoring pause in current status")
		return
	}
	job.status = StatusPaused
	job.mu.Unlock()
	job.gate.Close()
	log.Debug().Str("jobId", id).Msg("Download paused")
}

// Resume releases a paused download mid-stream; nothing is re-fetched.
func (m *Manager) Resume(id string) {
	log := utils.GetLogger("engine")
	job := m.lookup(id)
	if job == nil {
		log.Debug().Str("jobId", id).Msg("Ignoring resume for unknown job")
		return
	}
	job.mu.Lock()
	if job.status != StatusPaused {
		status := job.status
		job.mu.Unlock()
		log.Debug().Str("jobId", id).Str("status", string(status)).Msg("Ignoring resume in current status")
		return
	}
	job.status = StatusDownloading
	job.mu.Unlock()
	job.gate.Open()
	log.Debug().Str("jobId", id).Msg("Download resumed")
}

// Cancel aborts a job and discards its partial data. Cancelling a job that
// already reached a terminal status is ignored.
func (m *Manager) Cancel(id string) {
	log := utils.GetLogger("engine")
	job := m.lookup(id)
	if job == nil {
		log.Debug().Str("jobId", id).Msg("Ignoring cancel for unknown job")
		return
	}
	job.mu.Lock()
	switch job.status {
	case StatusPending:
		job.status = StatusCancelled
		job.mu.Unlock()
		log.Debug().Str("jobId", id).Msg("Cancelled before start")
		// Emit async so a caller driving the events channel cannot
		// deadlock against its own terminal notification.
		go m.emitTerminal(job, nil)
	case StatusProbing, StatusDownloading, StatusPaused:
		job.cancelRequested = true
		cancel := job.cancel
		job.mu.Unlock()
		log.Debug().Str("jobId", id).Msg("Cancelling download")
		cancel()
	default:
		status := job.status
		job.mu.Unlock()
		log.Debug().Str("jobId", id).Str("status", string(status)).Msg("Ignoring cancel in current status")
	}
}

// runJob drives one download through probe, fetch, and reassembly, retrying
// failed attempts from scratch with a fixed backoff until the budget runs
// out. User cancellation wins over any concurrent failure.
func (m *Manager) runJob(ctx context.Context, job *Job) {
	defer m.wg.Done()
	log := utils.GetLogger("engine").With().Str("jobId", job.ID).Logger()
	for {
		err := m.runAttempt(ctx, job)
		if err == nil {
			job.setStatus(StatusCompleted)
			m.emitTerminal(job, nil)
			log.Debug().Int("retries", job.RetryCount()).Msg("Download completed")
			return
		}
		job.mu.Lock()
		if errors.Is(err, context.Canceled) || job.cancelRequested {
			job.status = StatusCancelled
			job.mu.Unlock()
			m.cleanupScratch(job)
			m.emitTerminal(job, nil)
			log.Debug().Msg("Download cancelled")
			return
		}
		job.lastErr = err
		var ioErr *IOError
		if errors.As(err, &ioErr) {
			job.status = StatusFailed
			job.mu.Unlock()
			m.emitTerminal(job, err)
			log.Debug().Err(err).Msg("Local write failed, not retrying")
			return
		}
		job.retryCount++
		retries := job.retryCount
		if retries >= job.MaxRetries {
			job.status = StatusFailed
			job.mu.Unlock()
			m.emitTerminal(job, err)
			log.Debug().Err(err).Int("retries", retries).Msg("Download failed, retries exhausted")
			return
		}
		job.mu.Unlock()
		log.Debug().Err(err).Int("attempt", retries+1).Int("maxRetries", job.MaxRetries).Msg("Retrying download")
		select {
		case <-time.After(m.cfg.RetryBackoff):
		case <-ctx.Done():
			job.setStatus(StatusCancelled)
			m.cleanupScratch(job)
			m.emitTerminal(job, nil)
			return
		}
	}
}

// runAttempt performs one full probe/plan/fetch/assemble cycle. It returns
// nil only when the destination file is fully written.
func (m *Manager) runAttempt(ctx context.Context, job *Job) error {
	log := utils.GetLogger("engine").With().Str("jobId", job.ID).Logger()
	job.setStatus(StatusProbing)

	tr, err := transport.For(job.Request.URL, m.cfg.HTTPClient)
	if err != nil {
		return &transport.ProbeError{URL: job.Request.URL, Err: err}
	}
	probeCtx, cancelProbe := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	info, err := tr.Probe(probeCtx, job.Request.URL)
	cancelProbe()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	connections := job.Request.Connections
	if !info.SupportsRange {
		connections = 1
	}
	segments := planSegments(info.Size, connections)
	ranged := len(segments) > 1
	job.setPlan(info.Size, info.SupportsRange, segments)
	log.Debug().Int64("size", info.Size).Bool("rangeSupported", info.SupportsRange).Int("segments", len(segments)).Msg("Plan ready")

	scratchDir := utils.ScratchDir(job.Request.OutputPath)
	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		return &IOError{Path: scratchDir, Err: fmt.Errorf("error creating scratch directory: %v", err)}
	}

	results := make(chan segmentResult, len(segments))
	var wg sync.WaitGroup
	for _, seg := range segments {
		wg.Add(1)
		go func(seg *Segment) {
			defer wg.Done()
			seg.State = SegmentActive
			err := fetchSegment(ctx, job, tr, seg, ranged)
			if err == nil {
				seg.State = SegmentComplete
			} else if !errors.Is(err, context.Canceled) {
				seg.State = SegmentFailed
			}
			results <- segmentResult{seg: seg, err: err}
		}(seg)
	}

	// Supervise: collect segment results and tick out progress snapshots.
	// Blocking on any single fetcher would stall both.
	ticker := time.NewTicker(m.cfg.ProgressInterval)
	defer ticker.Stop()
	var attemptErr error
	remaining := len(segments)
	for remaining > 0 {
		select {
		case res := <-results:
			remaining--
			if res.err != nil {
				log.Debug().Err(res.err).Int("segment", res.seg.Index).Msg("Segment finished with error")
				attemptErr = preferErr(attemptErr, res.err)
			}
		case <-ticker.C:
			m.emitProgress(job)
		}
	}
	wg.Wait()
	m.emitProgress(job)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if attemptErr != nil {
		return attemptErr
	}
	return assemble(job)
}

// preferErr keeps the first error seen but lets a local IO failure displace a
// transfer failure, since the former must stop the whole job.
func preferErr(current, candidate error) error {
	if current == nil {
		return candidate
	}
	var ioErr *IOError
	if errors.As(candidate, &ioErr) && !errors.As(current, &ioErr) {
		return candidate
	}
	return current
}

func (m *Manager) cleanupScratch(job *Job) {
	if err := utils.CleanScratch(job.Request.OutputPath); err != nil {
		log := utils.GetLogger("engine")
		log.Debug().Err(err).Str("jobId", job.ID).Msg("Could not remove scratch directory")
	}
}

// Jobs returns all jobs in submission order.
func (m *Manager) Jobs() []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs := make([]*Job, 0, len(m.order))
	for _, id := range m.order {
		jobs = append(jobs, m.jobs[id])
	}
	return jobs
}

// Stats counts jobs by status.
func (m *Manager) Stats() map[Status]int {
	stats := make(map[Status]int)
	for _, job := range m.Jobs() {
		stats[job.Status()]++
	}
	return stats
}

func (m *Manager) StartAll() {
	for _, job := range m.Jobs() {
		m.Start(job.ID)
	}
}

func (m *Manager) PauseAll() {
	for _, job := range m.Jobs() {
		m.Pause(job.ID)
	}
}

func (m *Manager) ResumeAll() {
	for _, job := range m.Jobs() {
		m.Resume(job.ID)
	}
}

func (m *Manager) CancelAll() {
	for _, job := range m.Jobs() {
		m.Cancel(job.ID)
	}
}

// ClearCompleted drops completed and cancelled jobs from the registry and
// returns how many were removed.
func (m *Manager) ClearCompleted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.order[:0]
	removed := 0
	for _, id := range m.order {
		job := m.jobs[id]
		job.mu.Lock()
		status := job.status
		job.mu.Unlock()
		if status == StatusCompleted || status == StatusCancelled {
			delete(m.jobs, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return removed
}

// Wait blocks until every started job has reached a terminal status.
func (m *Manager) Wait() {
	m.wg.Wait()
}
