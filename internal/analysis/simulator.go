// Package analysis simulates the analysis of staged files: a pending phase
// with a rotating status message, followed by a fixed result after a
// configured delay.
package analysis

import (
	"errors"
	"sync"
	"time"

	"github.com/quick-analysis/backend/internal/clock"
	"github.com/quick-analysis/backend/internal/models"
)

const (
	// DefaultCompletionDelay is how long the pending phase lasts.
	DefaultCompletionDelay = 5 * time.Second
	// DefaultRotationInterval is how often the status message advances.
	DefaultRotationInterval = 5 * time.Second
	// DefaultMessageCount is the number of rotating status messages.
	DefaultMessageCount = 6
	// FixedConfidence is the confidence of every simulated result.
	FixedConfidence = 85
	// CancelledReason is recorded when a pending run is torn down.
	CancelledReason = "analysis cancelled"
)

var (
	ErrAnalysisPending = errors.New("analysis already pending")
	ErrAlreadyFinished = errors.New("analysis already finished")
	ErrClosed          = errors.New("analysis simulator closed")
)

// Config controls the simulated timeline.
type Config struct {
	CompletionDelay  time.Duration
	RotationInterval time.Duration
	MessageCount     int
}

// DefaultConfig returns the standard timeline.
func DefaultConfig() Config {
	return Config{
		CompletionDelay:  DefaultCompletionDelay,
		RotationInterval: DefaultRotationInterval,
		MessageCount:     DefaultMessageCount,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.CompletionDelay <= 0 {
		c.CompletionDelay = d.CompletionDelay
	}
	if c.RotationInterval <= 0 {
		c.RotationInterval = d.RotationInterval
	}
	if c.MessageCount <= 0 {
		c.MessageCount = d.MessageCount
	}
	return c
}

// FixedResult builds the canned outcome from localized strings.
func FixedResult(title, recommendation string) models.AnalysisResult {
	return models.AnalysisResult{
		Title:             title,
		ConfidencePercent: FixedConfidence,
		Recommendation:    recommendation,
	}
}

// Simulator owns one analysis timeline and its two timers.
//
// Every timer callback carries the generation it was scheduled under; a
// callback whose generation is no longer current does nothing, so a retired
// timer can never mutate state.
type Simulator struct {
	mu         sync.Mutex
	clock      clock.Clock
	cfg        Config
	state      models.AnalysisState
	result     models.AnalysisResult
	generation uint64
	rotate     clock.Timer
	complete   clock.Timer
	closed     bool
	onChange   func(models.AnalysisState)
}

// New creates an idle simulator. onChange, if set, is called after every
// timer-driven state change, outside the simulator's lock. Transitions made
// by Start, Cancel and Reset are not reported; their caller already knows.
func New(clk clock.Clock, cfg Config, onChange func(models.AnalysisState)) *Simulator {
	if clk == nil {
		clk = clock.System{}
	}
	return &Simulator{
		clock:    clk,
		cfg:      cfg.normalized(),
		state:    models.IdleState(),
		onChange: onChange,
	}
}

// Config returns the timeline in force.
func (s *Simulator) Config() Config {
	return s.cfg
}

// State returns a copy of the current state.
func (s *Simulator) State() models.AnalysisState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyStateLocked()
}

// Start moves Idle to Pending(0) and schedules completion and rotation.
// It is rejected while pending, so timers never stack.
func (s *Simulator) Start(result models.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	switch s.state.Phase {
	case models.PhasePending:
		return ErrAnalysisPending
	case models.PhaseComplete, models.PhaseFailed:
		return ErrAlreadyFinished
	}

	s.generation++
	gen := s.generation
	s.result = result
	s.state = models.AnalysisState{
		Phase:     models.PhasePending,
		StartedAt: s.clock.Now().UnixMilli(),
	}
	s.complete = s.clock.AfterFunc(s.cfg.CompletionDelay, func() { s.finish(gen) })
	s.scheduleRotationLocked(gen)
	return nil
}

// Cancel fails a pending run with reason. It reports whether anything changed.
func (s *Simulator) Cancel(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase != models.PhasePending {
		return false
	}
	s.retireLocked()
	s.state = models.AnalysisState{
		Phase:       models.PhaseFailed,
		Reason:      reason,
		StartedAt:   s.state.StartedAt,
		CompletedAt: s.clock.Now().UnixMilli(),
	}
	return true
}

// Reset returns a finished simulator to Idle.
func (s *Simulator) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	switch s.state.Phase {
	case models.PhaseIdle:
		return nil
	case models.PhasePending:
		return ErrAnalysisPending
	}
	s.retireLocked()
	s.state = models.IdleState()
	s.result = models.AnalysisResult{}
	return nil
}

// Close tears the simulator down. A pending run is cancelled without
// notification and no timer fires afterwards.
func (s *Simulator) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.state.Phase == models.PhasePending {
		s.state = models.AnalysisState{
			Phase:       models.PhaseFailed,
			Reason:      CancelledReason,
			StartedAt:   s.state.StartedAt,
			CompletedAt: s.clock.Now().UnixMilli(),
		}
	}
	s.retireLocked()
}

func (s *Simulator) scheduleRotationLocked(gen uint64) {
	s.rotate = s.clock.AfterFunc(s.cfg.RotationInterval, func() { s.advance(gen) })
}

func (s *Simulator) advance(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.state.Phase != models.PhasePending {
		s.mu.Unlock()
		return
	}
	s.state.MessageIndex = (s.state.MessageIndex + 1) % s.cfg.MessageCount
	s.scheduleRotationLocked(gen)
	st := s.copyStateLocked()
	s.mu.Unlock()

	s.notify(st)
}

func (s *Simulator) finish(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.state.Phase != models.PhasePending {
		s.mu.Unlock()
		return
	}
	s.retireLocked()
	result := s.result
	s.state = models.AnalysisState{
		Phase:       models.PhaseComplete,
		Result:      &result,
		StartedAt:   s.state.StartedAt,
		CompletedAt: s.clock.Now().UnixMilli(),
	}
	st := s.copyStateLocked()
	s.mu.Unlock()

	s.notify(st)
}

// retireLocked stops both timers and invalidates their callbacks.
func (s *Simulator) retireLocked() {
	s.generation++
	if s.rotate != nil {
		s.rotate.Stop()
		s.rotate = nil
	}
	if s.complete != nil {
		s.complete.Stop()
		s.complete = nil
	}
}

func (s *Simulator) copyStateLocked() models.AnalysisState {
	st := s.state
	if st.Result != nil {
		r := *st.Result
		st.Result = &r
	}
	return st
}

func (s *Simulator) notify(st models.AnalysisState) {
	if s.onChange != nil {
		s.onChange(st)
	}
}
