package internal

import (
	"context"
	"sync"
	"time"
)

// Phase is the lifecycle state of a sync scheduler
type Phase int

const (
	// PhaseLoading holds until the first load completes. Nothing is synced.
	PhaseLoading Phase = iota
	// PhaseReady accepts scheduled changes.
	PhaseReady
	// PhaseSyncing means a send or a bulk operation is in flight.
	PhaseSyncing
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseSyncing:
		return "syncing"
	default:
		return "unknown"
	}
}

const (
	DefaultSyncDelay   = 500 * time.Millisecond
	DefaultSyncTimeout = 10 * time.Second
)

// SyncFunc pushes one value to the backend
type SyncFunc[T any] func(ctx context.Context, value T) error

// SchedulerOptions configures a Scheduler
type SchedulerOptions struct {
	Name    string        // used in log lines
	Delay   time.Duration // debounce window, DefaultSyncDelay when zero
	Timeout time.Duration // per-send timeout, DefaultSyncTimeout when zero
}

// Scheduler mirrors a value to the backend in the background.
//
// At most one debounced send is pending at any time; scheduling again
// replaces it. Changes arriving while the scheduler is loading or syncing
// are dropped, and the next change after that carries the current state.
type Scheduler[T any] struct {
	name    string
	send    SyncFunc[T]
	delay   time.Duration
	timeout time.Duration

	mu         sync.Mutex
	ready      bool
	closed     bool
	busy       int // in-flight sends plus active holds
	timer      *time.Timer
	pending    T
	hasPending bool
	gen        uint64
	seq        uint64

	// sendMu orders sends; sentSeq is the newest send that succeeded
	sendMu  sync.Mutex
	sentSeq uint64

	wg sync.WaitGroup
}

// NewScheduler creates a scheduler in PhaseLoading
func NewScheduler[T any](send SyncFunc[T], opts SchedulerOptions) *Scheduler[T] {
	if opts.Delay <= 0 {
		opts.Delay = DefaultSyncDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSyncTimeout
	}
	if opts.Name == "" {
		opts.Name = "state"
	}
	return &Scheduler[T]{
		name:    opts.Name,
		send:    send,
		delay:   opts.Delay,
		timeout: opts.Timeout,
	}
}

// Phase returns the current phase
func (s *Scheduler[T]) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phaseLocked()
}

func (s *Scheduler[T]) phaseLocked() Phase {
	switch {
	case !s.ready:
		return PhaseLoading
	case s.busy > 0:
		return PhaseSyncing
	default:
		return PhaseReady
	}
}

// MarkReady ends the loading phase
func (s *Scheduler[T]) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
}

// Schedule arms a debounced send of value. It reports whether the change
// was accepted.
func (s *Scheduler[T]) Schedule(value T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if phase := s.phaseLocked(); phase != PhaseReady {
		LogDebug("%s sync: change ignored while %s", s.name, phase)
		return false
	}

	s.cancelLocked()
	gen := s.gen
	s.pending = value
	s.hasPending = true
	s.timer = time.AfterFunc(s.delay, func() { s.fire(gen) })
	return true
}

// Pending reports whether a debounced send is armed
func (s *Scheduler[T]) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasPending
}

func (s *Scheduler[T]) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	var zero T
	s.pending = zero
	s.hasPending = false
	s.gen++
}

func (s *Scheduler[T]) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.hasPending {
		s.mu.Unlock()
		return
	}
	value := s.pending
	s.cancelLocked()
	if phase := s.phaseLocked(); s.closed || phase != PhaseReady {
		s.mu.Unlock()
		LogDebug("%s sync: skipped tick while %s", s.name, phase)
		return
	}
	seq := s.beginLocked()
	s.mu.Unlock()

	defer s.end()
	if err := s.run(context.Background(), seq, value); err != nil {
		LogWarn("background %s sync failed: %v", s.name, err)
		return
	}
	LogDebug("%s synced", s.name)
}

func (s *Scheduler[T]) beginLocked() uint64 {
	s.busy++
	s.wg.Add(1)
	s.seq++
	return s.seq
}

func (s *Scheduler[T]) end() {
	s.mu.Lock()
	s.busy--
	s.mu.Unlock()
	s.wg.Done()
}

// run sends value once every earlier send has finished. A value older than
// one already delivered is dropped so the backend never goes back in time.
func (s *Scheduler[T]) run(ctx context.Context, seq uint64, value T) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if seq < s.sentSeq {
		LogDebug("%s sync: dropped a value superseded by a newer send", s.name)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.send(ctx, value); err != nil {
		return err
	}
	s.sentSeq = seq
	return nil
}

// SyncNow cancels any pending send and pushes value synchronously
func (s *Scheduler[T]) SyncNow(ctx context.Context, value T) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	s.cancelLocked()
	seq := s.beginLocked()
	s.mu.Unlock()

	defer s.end()
	return s.run(ctx, seq, value)
}

// Kick cancels any pending send and pushes value in the background
// without waiting for the debounce window.
func (s *Scheduler[T]) Kick(value T) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.cancelLocked()
	seq := s.beginLocked()
	s.mu.Unlock()

	go func() {
		defer s.end()
		if err := s.run(context.Background(), seq, value); err != nil {
			LogWarn("background %s sync failed: %v", s.name, err)
		}
	}()
}

// Hold cancels any pending send and keeps the scheduler in PhaseSyncing
// until the returned release func is called. Release is idempotent.
func (s *Scheduler[T]) Hold() (release func()) {
	s.mu.Lock()
	s.cancelLocked()
	s.busy++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.busy--
			s.mu.Unlock()
		})
	}
}

// Flush sends the pending value right away, if there is one
func (s *Scheduler[T]) Flush(ctx context.Context) error {
	s.mu.Lock()
	if !s.hasPending {
		s.mu.Unlock()
		return nil
	}
	value := s.pending
	s.cancelLocked()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	seq := s.beginLocked()
	s.mu.Unlock()

	defer s.end()
	return s.run(ctx, seq, value)
}

// Close drops any pending send and waits for in-flight sends to finish
func (s *Scheduler[T]) Close() {
	s.mu.Lock()
	s.closed = true
	s.cancelLocked()
	s.mu.Unlock()
	s.wg.Wait()
}
