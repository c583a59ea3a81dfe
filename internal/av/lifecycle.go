package av

import (
	"context"
	"fmt"
	"sync"
	"time"

	"academic-vault/internal/model"
)

// Transition describes one change of a file's lifecycle state.
type Transition struct {
	FileID   string
	From     model.FileStatus
	To       model.FileStatus
	Progress int
}

// transitions lists the allowed successor states of every non-terminal state.
var transitions = map[model.FileStatus][]model.FileStatus{
	model.StatusIdle:       {model.StatusUploading, model.StatusError},
	model.StatusUploading:  {model.StatusScanning, model.StatusError},
	model.StatusScanning:   {model.StatusProcessing, model.StatusQuarantined, model.StatusError},
	model.StatusProcessing: {model.StatusReady, model.StatusError},
}

// IsTerminal reports whether status ends an upload attempt.
func IsTerminal(status model.FileStatus) bool {
	switch status {
	case model.StatusReady, model.StatusError, model.StatusQuarantined:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to model.FileStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ProgressFor returns the progress value of a state. Failure states keep the
// progress reached so far.
func ProgressFor(status model.FileStatus, current int) int {
	switch status {
	case model.StatusIdle:
		return 0
	case model.StatusUploading:
		return 25
	case model.StatusScanning:
		return 50
	case model.StatusProcessing:
		return 75
	case model.StatusReady:
		return 100
	default:
		return current
	}
}

// Tracker is the lifecycle state machine of one upload attempt.
// Observers are called once per state change, in registration order.
// Tracker is safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	fileID    string
	status    model.FileStatus
	progress  int
	observers []func(Transition)
}

// NewTracker creates a tracker for a new attempt, starting idle at progress 0.
func NewTracker(fileID string, observers ...func(Transition)) *Tracker {
	return &Tracker{
		fileID:    fileID,
		status:    model.StatusIdle,
		observers: observers,
	}
}

// Advance moves the tracker to status. Repeating the current status is a no-op
// and returns false. Disallowed transitions return ErrInvalidTransition.
func (t *Tracker) Advance(status model.FileStatus) (bool, error) {
	t.mu.Lock()
	if status == t.status {
		t.mu.Unlock()
		return false, nil
	}
	if !CanTransition(t.status, status) {
		from := t.status
		t.mu.Unlock()
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, status)
	}

	tr := Transition{
		FileID:   t.fileID,
		From:     t.status,
		To:       status,
		Progress: max(t.progress, ProgressFor(status, t.progress)),
	}
	t.status = tr.To
	t.progress = tr.Progress
	observers := t.observers
	t.mu.Unlock()

	for _, fn := range observers {
		fn(tr)
	}
	return true, nil
}

// Status returns the current state.
func (t *Tracker) Status() model.FileStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Progress returns the current progress.
func (t *Tracker) Progress() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// Terminal reports whether the attempt has ended.
func (t *Tracker) Terminal() bool {
	return IsTerminal(t.Status())
}

// StatusEvent is a status report for one file delivered by a StatusSource.
type StatusEvent struct {
	FileID string           `json:"file_id"`
	Status model.FileStatus `json:"status"`
}

// StatusSource delivers lifecycle events for a file, by polling or push.
// The returned channel is closed when the source has nothing more to deliver
// or ctx is done.
type StatusSource interface {
	Watch(ctx context.Context, fileID string) (<-chan StatusEvent, error)
}

// SimulatedStep is one delayed status report of a SimulatedStatusSource.
type SimulatedStep struct {
	Status model.FileStatus
	Delay  time.Duration
}

// DefaultSimulatedSteps mirrors the timings of the hosted processing pipeline.
var DefaultSimulatedSteps = []SimulatedStep{
	{Status: model.StatusUploading, Delay: 2 * time.Second},
	{Status: model.StatusScanning, Delay: 1500 * time.Millisecond},
	{Status: model.StatusProcessing, Delay: 4 * time.Second},
	{Status: model.StatusReady, Delay: 500 * time.Millisecond},
}

// SimulatedStatusSource emits a fixed sequence of statuses on a timer. It
// stands in for a backend processing feed.
type SimulatedStatusSource struct {
	Steps []SimulatedStep
}

// NewSimulatedStatusSource creates a source emitting steps, or
// DefaultSimulatedSteps when none are given.
func NewSimulatedStatusSource(steps ...SimulatedStep) *SimulatedStatusSource {
	if len(steps) == 0 {
		steps = DefaultSimulatedSteps
	}
	return &SimulatedStatusSource{Steps: steps}
}

func (s *SimulatedStatusSource) Watch(ctx context.Context, fileID string) (<-chan StatusEvent, error) {
	events := make(chan StatusEvent)
	go func() {
		defer close(events)
		for _, step := range s.Steps {
			timer := time.NewTimer(step.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			select {
			case <-ctx.Done():
				return
			case events <- StatusEvent{FileID: fileID, Status: step.Status}:
			}
		}
	}()
	return events, nil
}

var _ StatusSource = (*SimulatedStatusSource)(nil)
