package exam

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pavelanni/questionai/internal/model"
)

// ErrSessionClosed is returned for operations on an abandoned or pruned session.
var ErrSessionClosed = errors.New("attempt session closed")

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock provides the time source and scheduler for countdowns.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemClock is the wall-clock implementation of Clock.
var SystemClock Clock = systemClock{}

// Session runs one Attempt on its own goroutine. Countdown ticks and caller
// operations are queued on a single channel and applied in order.
type Session struct {
	id            string
	sc            SessionContext
	attempt       *Attempt
	clock         Clock
	submitTimeout time.Duration

	events chan func()
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once

	// Owned by the run loop.
	timer      Timer
	timerGen   uint64
	startedAt  time.Time
	lastActive time.Time
}

func newSession(id string, a *Attempt, clock Clock, submitTimeout time.Duration) *Session {
	s := &Session{
		id:            id,
		sc:            a.sc,
		attempt:       a,
		clock:         clock,
		submitTimeout: submitTimeout,
		events:        make(chan func()),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		lastActive:    clock.Now(),
	}
	a.now = clock.Now
	go s.run()
	return s
}

// ID returns the attempt identifier.
func (s *Session) ID() string { return s.id }

// Context returns the identity the session was created for.
func (s *Session) Context() SessionContext { return s.sc }

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case fn := <-s.events:
			fn()
		case <-s.stop:
			s.disarm()
			return
		}
	}
}

// do runs fn on the loop goroutine and waits for it to finish.
func (s *Session) do(fn func()) error {
	ran := make(chan struct{})
	select {
	case s.events <- func() { fn(); close(ran) }:
	case <-s.done:
		return ErrSessionClosed
	}
	<-ran
	return nil
}

// arm schedules the next tick for the moment the next whole second since
// start elapses, so a slow tick does not push later ones back.
func (s *Session) arm() {
	s.timerGen++
	gen := s.timerGen
	elapsed := s.attempt.budget - s.attempt.remaining
	due := s.startedAt.Add(time.Duration(elapsed+1) * time.Second)
	d := max(due.Sub(s.clock.Now()), 0)
	s.timer = s.clock.AfterFunc(d, func() {
		select {
		case s.events <- func() { s.tick(gen) }:
		case <-s.done:
		}
	})
}

func (s *Session) disarm() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

func (s *Session) tick(gen uint64) {
	if gen != s.timerGen {
		return
	}
	s.timer = nil

	ctx, cancel := context.WithTimeout(context.Background(), s.submitTimeout)
	defer cancel()
	if err := s.attempt.Tick(ctx); err != nil {
		slog.Error("timed-out attempt could not be saved", "attempt_id", s.id, "error", err)
	}

	switch s.attempt.Status() {
	case StatusInProgress:
		s.arm()
	case StatusSubmitted:
		s.lastActive = s.clock.Now()
		slog.Info("attempt submitted on timeout", "attempt_id", s.id, "user_id", s.sc.UserID)
	case StatusSubmitFailed:
		s.lastActive = s.clock.Now()
	}
}

// Start begins the attempt for studentName and starts the countdown.
func (s *Session) Start(studentName string) error {
	var err error
	if derr := s.do(func() {
		s.lastActive = s.clock.Now()
		if err = s.attempt.Start(studentName); err == nil {
			s.startedAt = s.lastActive
			s.arm()
		}
	}); derr != nil {
		return derr
	}
	return err
}

// Navigate selects the question at index, clamped to the set's range.
func (s *Session) Navigate(index int) (int, error) {
	var (
		got int
		err error
	)
	if derr := s.do(func() {
		s.lastActive = s.clock.Now()
		got, err = s.attempt.Navigate(index)
	}); derr != nil {
		return 0, derr
	}
	return got, err
}

// Answer records text for the current question.
func (s *Session) Answer(text string) error {
	var err error
	if derr := s.do(func() {
		s.lastActive = s.clock.Now()
		err = s.attempt.Answer(text)
	}); derr != nil {
		return derr
	}
	return err
}

// Submit grades and saves the attempt. See Attempt.Submit for retry and
// idempotency rules.
func (s *Session) Submit(ctx context.Context) (*model.ExamResult, error) {
	var (
		res *model.ExamResult
		err error
	)
	if derr := s.do(func() {
		s.lastActive = s.clock.Now()
		res, err = s.attempt.Submit(ctx)
		if s.attempt.Status() != StatusInProgress {
			s.disarm()
		}
	}); derr != nil {
		return nil, derr
	}
	return res, err
}

// Snapshot returns the attempt's current state.
func (s *Session) Snapshot() (Snapshot, error) {
	var snap Snapshot
	if err := s.do(func() { snap = s.attempt.Snapshot() }); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// idleSince reports the status and the time of the last state change.
func (s *Session) idleSince() (Status, time.Time, error) {
	var (
		st Status
		at time.Time
	)
	err := s.do(func() { st, at = s.attempt.Status(), s.lastActive })
	return st, at, err
}

// Close stops the countdown and discards the attempt. Nothing is persisted.
func (s *Session) Close() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}
