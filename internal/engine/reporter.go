package engine

type EventType string

const (
	EventProgress EventType = "progress"
	EventTerminal EventType = "terminal"
)

// Event is a push notification about one job. Progress events are periodic
// snapshots and may be dropped under backpressure; the terminal event is
// delivered reliably, exactly once per run.
type Event struct {
	JobID      string
	Type       EventType
	Status     Status
	Downloaded int64
	TotalSize  int64 // -1 while unknown
	Speed      float64
	Retries    int
	Err        error
}

func (m *Manager) snapshot(job *Job, eventType EventType, err error) Event {
	job.mu.Lock()
	defer job.mu.Unlock()
	return Event{
		JobID:      job.ID,
		Type:       eventType,
		Status:     job.status,
		Downloaded: job.downloadedLocked(),
		TotalSize:  job.totalSize,
		Speed:      job.speedLocked(),
		Retries:    job.retryCount,
		Err:        err,
	}
}

// emitProgress never blocks a fetcher or the supervisor; a full channel means
// the consumer is behind and this snapshot is dropped.
func (m *Manager) emitProgress(job *Job) {
	select {
	case m.events <- m.snapshot(job, EventProgress, nil):
	default:
	}
}

// emitTerminal blocks until the consumer takes the event. The terminalSent
// flag makes late command races (a cancel landing on a finished job) unable
// to produce a second notification.
func (m *Manager) emitTerminal(job *Job, err error) {
	job.mu.Lock()
	if job.terminalSent {
		job.mu.Unlock()
		return
	}
	job.terminalSent = true
	job.mu.Unlock()
	m.events <- m.snapshot(job, EventTerminal, err)
}
