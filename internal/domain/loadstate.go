package domain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LoadPhase discriminates LoadState values.
type LoadPhase int

const (
	PhaseUninitialized LoadPhase = iota
	PhaseLoading
	PhaseError
	PhaseSuccess
	PhaseDone
)

func (p LoadPhase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseLoading:
		return "loading"
	case PhaseError:
		return "error"
	case PhaseSuccess:
		return "success"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("LoadPhase(%d)", int(p))
	}
}

// Task is the handle of one asynchronous search chain.
type Task struct {
	ID        uuid.UUID
	Terms     *string
	StartedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewTask creates a handle for a chain running under a context whose cancel
// function is cancel. cancel may be nil.
func NewTask(terms *string, cancel context.CancelFunc) *Task {
	return &Task{
		ID:        uuid.New(),
		Terms:     CloneTerms(terms),
		StartedAt: Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Done is closed once the chain has reported back.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel cancels the chain's context. The chain still reports back.
func (t *Task) Cancel() {
	if t.cancel != nil {
		t.cancel()
	}
}

// Finish marks the chain as finished and releases its context. Safe to call
// more than once.
func (t *Task) Finish() {
	t.once.Do(func() {
		t.Cancel()
		close(t.done)
	})
}

func (t *Task) String() string {
	return t.ID.String()
}

// LoadState is the lifecycle of a single-load search.
type LoadState[T any] struct {
	Phase LoadPhase
	Terms *string // loading only
	Task  *Task   // loading only
	Err   error   // error only
	Data  T       // success only
}

func Uninitialized[T any]() LoadState[T] {
	return LoadState[T]{Phase: PhaseUninitialized}
}

func Loading[T any](terms *string, task *Task) LoadState[T] {
	return LoadState[T]{Phase: PhaseLoading, Terms: CloneTerms(terms), Task: task}
}

func Failed[T any](err error) LoadState[T] {
	return LoadState[T]{Phase: PhaseError, Err: err}
}

func Succeeded[T any](data T) LoadState[T] {
	return LoadState[T]{Phase: PhaseSuccess, Data: data}
}

func Done[T any]() LoadState[T] {
	return LoadState[T]{Phase: PhaseDone}
}

// IsLoading reports whether the state is loading the given terms.
func (s LoadState[T]) IsLoading(terms *string) bool {
	return s.Phase == PhaseLoading && SameTerms(s.Terms, terms)
}

// IsLoadingTask reports whether the state is loading on behalf of task.
func (s LoadState[T]) IsLoadingTask(task *Task) bool {
	return s.Phase == PhaseLoading && s.Task == task
}

// Same is the equality used to coalesce consecutive load states. Success
// values never coalesce so every result reaches observers.
func (s LoadState[T]) Same(other LoadState[T]) bool {
	if s.Phase != other.Phase {
		return false
	}
	switch s.Phase {
	case PhaseUninitialized, PhaseDone:
		return true
	case PhaseLoading:
		return s.Task == other.Task
	default:
		return false
	}
}

func (s LoadState[T]) String() string {
	switch s.Phase {
	case PhaseLoading:
		return fmt.Sprintf("loading(%s, task %s)", FormatTerms(s.Terms), s.Task)
	case PhaseError:
		return fmt.Sprintf("error(%v)", s.Err)
	default:
		return s.Phase.String()
	}
}

// SameTerms compares two optional search terms.
func SameTerms(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// CloneTerms copies optional terms so callers can't mutate stored keys.
func CloneTerms(terms *string) *string {
	if terms == nil {
		return nil
	}
	t := *terms
	return &t
}

// Terms is a convenience for building optional search terms.
func Terms(s string) *string {
	return &s
}

// FormatTerms renders optional terms for logs and messages.
func FormatTerms(terms *string) string {
	if terms == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%q", *terms)
}
