package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/image-search/internal/constants"
	"github.com/kozaktomas/image-search/internal/engine"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// isJobTerminal returns true if the job status is a terminal state
func isJobTerminal(status JobStatus) bool {
	return status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled
}

// IngestJobOptions are the options an ingest job was started with.
type IngestJobOptions struct {
	PerCategory    int  `json:"per_category"`
	AllowPartial   bool `json:"allow_partial"`
	StrictCapacity bool `json:"strict_capacity"`
	Persist        bool `json:"persist"`
}

// IngestJob is an async build of a new corpus generation.
type IngestJob struct {
	EventBroadcaster

	ID          string               `json:"id"`
	Source      string               `json:"source"`
	Status      JobStatus            `json:"status"`
	Phase       engine.Phase         `json:"phase,omitempty"`
	Total       int                  `json:"total"`
	Processed   int                  `json:"processed"`
	Error       string               `json:"error,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	Options     IngestJobOptions     `json:"options"`
	Result      *engine.IngestReport `json:"result,omitempty"`
}

// GetStatus returns the current job status (implements SSEJob).
func (j *IngestJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// View returns a copy of the job that is safe to encode while it runs.
func (j *IngestJob) View() *IngestJob {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return &IngestJob{
		ID:          j.ID,
		Source:      j.Source,
		Status:      j.Status,
		Phase:       j.Phase,
		Total:       j.Total,
		Processed:   j.Processed,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Options:     j.Options,
		Result:      j.Result,
	}
}

// Cancel cancels the ingest job. The current generation is kept.
func (j *IngestJob) Cancel() {
	j.mu.Lock()
	if !isJobTerminal(j.Status) {
		j.Status = JobStatusCancelled
		now := time.Now()
		j.CompletedAt = &now
	}
	j.mu.Unlock()
	j.EventBroadcaster.Cancel()
}

// setStatus moves a job that is not yet terminal to status.
func (j *IngestJob) setStatus(status JobStatus) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if isJobTerminal(j.Status) {
		return false
	}
	j.Status = status
	return true
}

// finish records the outcome unless the job was cancelled meanwhile.
func (j *IngestJob) finish(status JobStatus, errMsg string, result *engine.IngestReport) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if isJobTerminal(j.Status) {
		return false
	}
	now := time.Now()
	j.Status = status
	j.Error = errMsg
	j.Result = result
	j.CompletedAt = &now
	return true
}

func (j *IngestJob) progress(p engine.Progress) {
	j.mu.Lock()
	j.Phase = p.Phase
	j.Total = p.Total
	j.Processed = p.Current
	j.mu.Unlock()
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

func (b *EventBroadcaster) setCancel(cancel context.CancelFunc) {
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
}

// SSEJob is what streamJobEvents needs from a job.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async jobs.
type JobManager struct {
	jobs map[string]*IngestJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*IngestJob),
	}
}

// CreateJob creates a new ingest job.
func (m *JobManager) CreateJob(id, source string, options IngestJobOptions) *IngestJob {
	job := &IngestJob{
		ID:        id,
		Source:    source,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
		Options:   options,
	}

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	return job
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *IngestJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}

// CancelAll cancels every job that is still running. Used on shutdown.
func (m *JobManager) CancelAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, job := range m.jobs {
		if !isJobTerminal(job.GetStatus()) {
			job.Cancel()
		}
	}
}
