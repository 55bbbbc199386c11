// Package session tracks the planned and actual duration of a focus session
// and gates early termination behind a typed confirmation phrase.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExtendIncrement is added to the end instant and planned duration by Extend.
const ExtendIncrement = 5 * time.Minute

// DefaultConfirmationPhrase must be typed exactly to end a session early.
const DefaultConfirmationPhrase = "I choose to break my focus"

var (
	ErrNotStarted      = errors.New("session not started")
	ErrAlreadyStarted  = errors.New("session already started")
	ErrSessionEnded    = errors.New("session already ended")
	ErrInvalidDuration = errors.New("invalid session duration")
	// ErrNotConfirmed means the confirmation phrase did not match; the session keeps running.
	ErrNotConfirmed = errors.New("confirmation phrase did not match")
)

// State is the lifecycle state of a session.
type State int

const (
	NotStarted State = iota
	Running
	Ended
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Running:
		return "running"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// Clock supplies the wall-clock time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Timer holds the session window. End only ever moves forward.
type Timer struct {
	Start   time.Time     `json:"start"`
	End     time.Time     `json:"end"`
	Planned time.Duration `json:"planned"`
}

// Expired reports whether now is at or past the end instant.
func (t Timer) Expired(now time.Time) bool {
	return !now.Before(t.End)
}

// Remaining returns the time left before the end instant, never negative.
func (t Timer) Remaining(now time.Time) time.Duration {
	return max(t.End.Sub(now), 0)
}

// Result describes a finished session. It is created exactly once.
type Result struct {
	ID            string        `json:"id"`
	Task          string        `json:"task"`
	Planned       time.Duration `json:"planned"`
	Actual        time.Duration `json:"actual"`
	Completed     bool          `json:"completed"`
	StartedAt     time.Time     `json:"started_at"`
	EndedAt       time.Time     `json:"ended_at"`
	Interventions int           `json:"interventions"`
}

// Status is a point-in-time view of a session for display.
type Status struct {
	ID            string        `json:"id"`
	Task          string        `json:"task"`
	State         string        `json:"state"`
	Timer         Timer         `json:"timer"`
	Remaining     time.Duration `json:"remaining"`
	Interventions int           `json:"interventions"`
}

// Options configure a new session.
type Options struct {
	Task     string
	Duration time.Duration
	// Phrase overrides DefaultConfirmationPhrase when non-empty.
	Phrase string
	// Clock defaults to the system clock.
	Clock Clock
}

// Session is safe for concurrent use; End collapses concurrent callers onto one Result.
type Session struct {
	mu sync.Mutex

	id       string
	task     string
	duration time.Duration
	phrase   string
	clock    Clock

	state         State
	timer         Timer
	interventions int
	result        Result
}

// New creates a session in the NotStarted state.
func New(opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}

	if opts.Phrase == "" {
		opts.Phrase = DefaultConfirmationPhrase
	}

	return &Session{
		id:       uuid.NewString(),
		task:     opts.Task,
		duration: opts.Duration,
		phrase:   opts.Phrase,
		clock:    opts.Clock,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Phrase returns the confirmation phrase required by RequestEnd.
func (s *Session) Phrase() string { return s.phrase }

// Start begins the session at the current time.
func (s *Session) Start() (Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Running:
		return s.timer, ErrAlreadyStarted
	case Ended:
		return s.timer, ErrSessionEnded
	}

	if s.duration <= 0 {
		return Timer{}, fmt.Errorf("%w %s", ErrInvalidDuration, s.duration)
	}

	now := s.clock.Now()
	s.timer = Timer{Start: now, End: now.Add(s.duration), Planned: s.duration}
	s.state = Running

	return s.timer, nil
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Timer returns a copy of the session window.
func (s *Session) Timer() Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer
}

// Expired reports whether the planned duration has elapsed.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Running && s.timer.Expired(s.clock.Now())
}

// Extend adds ExtendIncrement to the end instant and the planned duration.
func (s *Session) Extend() (Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.runningLocked(); err != nil {
		return s.timer, err
	}

	s.timer.End = s.timer.End.Add(ExtendIncrement)
	s.timer.Planned += ExtendIncrement

	return s.timer, nil
}

// RecordIntervention counts one blocked process, domain or window.
func (s *Session) RecordIntervention() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Running {
		s.interventions++
	}
}

// RequestEnd ends the session early if confirm matches the phrase exactly.
// Once the planned duration has elapsed it ends the session as completed
// without checking confirm.
func (s *Session) RequestEnd(confirm string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.runningLocked(); err != nil {
		return s.result, err
	}

	if s.timer.Expired(s.clock.Now()) {
		return s.endLocked(true), nil
	}

	if confirm != s.phrase {
		return Result{}, ErrNotConfirmed
	}

	return s.endLocked(false), nil
}

// End finishes the session. Only the first call produces a Result; later
// calls return that same Result and false.
func (s *Session) End(completed bool) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return s.result, false
	}

	return s.endLocked(completed), true
}

// Tick ends the session as completed once it has expired. It reports whether
// this call ended it.
func (s *Session) Tick() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running || !s.timer.Expired(s.clock.Now()) {
		return Result{}, false
	}

	return s.endLocked(true), true
}

// Result returns the final result once the session has ended.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.state == Ended
}

// Status returns a snapshot for display.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		ID:            s.id,
		Task:          s.task,
		State:         s.state.String(),
		Timer:         s.timer,
		Interventions: s.interventions,
	}

	if s.state == Running {
		st.Remaining = s.timer.Remaining(s.clock.Now())
	}

	return st
}

func (s *Session) runningLocked() error {
	switch s.state {
	case NotStarted:
		return ErrNotStarted
	case Ended:
		return ErrSessionEnded
	default:
		return nil
	}
}

func (s *Session) endLocked(completed bool) Result {
	now := s.clock.Now()

	s.result = Result{
		ID:            s.id,
		Task:          s.task,
		Planned:       s.timer.Planned,
		Actual:        now.Sub(s.timer.Start),
		Completed:     completed,
		StartedAt:     s.timer.Start,
		EndedAt:       now,
		Interventions: s.interventions,
	}
	s.state = Ended

	return s.result
}
