package exam

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

// fakeClock hands out timers that only fire when the test says so.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// pending returns the number of armed timers.
func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// lastDelay returns the delay requested for the most recent timer.
func (c *fakeClock) lastDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return -1
	}
	return c.timers[len(c.timers)-1].d
}

// fireNext runs the oldest armed timer and reports whether there was one.
func (c *fakeClock) fireNext() bool {
	c.mu.Lock()
	var next *fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			next = t
			break
		}
	}
	if next != nil {
		next.fired = true
		c.now = c.now.Add(time.Second)
	}
	c.mu.Unlock()
	if next == nil {
		return false
	}
	next.f()
	return true
}

// elapse fires n one-second ticks, waiting for each to be applied.
func elapse(t *testing.T, c *fakeClock, s *Session, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if !c.fireNext() {
			return
		}
		// Round-trip through the queue so the tick has been applied.
		if _, err := s.Snapshot(); err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
	}
}

func newTestManager(t *testing.T, saver ResultSaver, budget time.Duration) (*Manager, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	m := NewManager(saver, ManagerConfig{Budget: budget, SubmitTimeout: time.Second, Clock: clock})
	t.Cleanup(m.Close)
	return m, clock
}

func TestSessionCountdownStartsOnStart(t *testing.T) {
	m, clock := newTestManager(t, &recordingSaver{}, 0)
	s, err := m.Create(SessionContext{UserID: 1, QuestionSetID: 2}, sampleQuestions())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if clock.pending() != 0 {
		t.Fatal("countdown must not run before the attempt starts")
	}
	if err := s.Start(""); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("Start(empty) = %v, want ErrEmptyName", err)
	}
	if clock.pending() != 0 {
		t.Fatal("rejected start must not arm the countdown")
	}
	if err := s.Start("Ada"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if clock.pending() != 1 {
		t.Fatalf("pending timers = %d, want 1", clock.pending())
	}

	elapse(t, clock, s, 5)
	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.TimeRemaining != DefaultBudget-5 {
		t.Errorf("TimeRemaining = %d, want %d", snap.TimeRemaining, DefaultBudget-5)
	}
	if clock.pending() != 1 {
		t.Errorf("pending timers = %d, want exactly 1 re-armed timer", clock.pending())
	}
}

func TestSessionAutoSubmitsAtZero(t *testing.T) {
	saver := &recordingSaver{}
	m, clock := newTestManager(t, saver, DefaultBudget*time.Second)
	s, err := m.Create(SessionContext{UserID: 1, QuestionSetID: 2}, sampleQuestions())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Start("Ada"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Answer("Paris"); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	elapse(t, clock, s, DefaultBudget+10)

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.TimeRemaining != 0 {
		t.Errorf("TimeRemaining = %d, want 0", snap.TimeRemaining)
	}
	if snap.Status != StatusSubmitted {
		t.Fatalf("status = %q, want submitted", snap.Status)
	}
	if clock.pending() != 0 {
		t.Errorf("countdown still armed after submission")
	}
	saved := saver.saved()
	if len(saved) != 1 {
		t.Fatalf("saved %d results, want 1", len(saved))
	}
	if saved[0].MarksObtained != 2 || saved[0].TimeTaken != DefaultBudget {
		t.Errorf("saved result = %+v", saved[0])
	}

	// Explicit submit after the forced one changes nothing.
	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(saver.saved()) != 1 {
		t.Errorf("explicit submit after timeout saved again")
	}
}

func TestSessionSubmitStopsCountdown(t *testing.T) {
	saver := &recordingSaver{}
	m, clock := newTestManager(t, saver, 0)
	s, _ := m.Create(SessionContext{UserID: 1, QuestionSetID: 2}, sampleQuestions())
	_ = s.Start("Ada")
	elapse(t, clock, s, 3)

	res, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.TimeTaken != 3 {
		t.Errorf("TimeTaken = %d, want 3", res.TimeTaken)
	}
	if clock.pending() != 0 {
		t.Error("countdown still armed after submit")
	}
	if !res.ExamDate.Equal(clock.Now()) {
		t.Errorf("ExamDate = %v, want %v", res.ExamDate, clock.Now())
	}
}

func TestSessionSubmitFailureStopsCountdown(t *testing.T) {
	saver := &recordingSaver{}
	saver.fail(errors.New("unavailable"))
	m, clock := newTestManager(t, saver, 0)
	s, _ := m.Create(SessionContext{UserID: 1, QuestionSetID: 2}, sampleQuestions())
	_ = s.Start("Ada")

	if _, err := s.Submit(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	snap, _ := s.Snapshot()
	if snap.Status != StatusSubmitFailed {
		t.Fatalf("status = %q, want submit_failed", snap.Status)
	}
	if clock.pending() != 0 {
		t.Error("countdown still armed after failed submit")
	}

	saver.fail(nil)
	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(saver.saved()) != 1 {
		t.Errorf("saved %d results, want 1", len(saver.saved()))
	}
}

func TestSessionClose(t *testing.T) {
	saver := &recordingSaver{}
	m, clock := newTestManager(t, saver, 0)
	s, _ := m.Create(SessionContext{UserID: 1, QuestionSetID: 2}, sampleQuestions())
	_ = s.Start("Ada")

	s.Close()
	s.Close()

	if clock.pending() != 0 {
		t.Error("countdown still armed after close")
	}
	if err := s.Answer("x"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Answer after close = %v, want ErrSessionClosed", err)
	}
	if _, err := s.Snapshot(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Snapshot after close = %v, want ErrSessionClosed", err)
	}
	if len(saver.saved()) != 0 {
		t.Error("closing an attempt must not persist anything")
	}
}

func TestSessionConcurrentUse(t *testing.T) {
	m, clock := newTestManager(t, &recordingSaver{}, 0)
	s, _ := m.Create(SessionContext{UserID: 1, QuestionSetID: 2}, sampleQuestions())
	_ = s.Start("Ada")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = s.Navigate(i + j)
				_ = s.Answer("x")
			}
		}(i)
	}
	elapse(t, clock, s, 20)
	wg.Wait()

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	for k := range snap.Answers {
		if k < 0 || k >= snap.QuestionCount {
			t.Errorf("answer key %d out of range", k)
		}
	}
	if snap.TimeRemaining != DefaultBudget-20 {
		t.Errorf("TimeRemaining = %d, want %d", snap.TimeRemaining, DefaultBudget-20)
	}
}

func TestSessionTicksFollowStartTime(t *testing.T) {
	m, clock := newTestManager(t, &recordingSaver{}, time.Minute)
	s, err := m.Create(SessionContext{UserID: 1}, sampleQuestions())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Start("Ada"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if d := clock.lastDelay(); d != time.Second {
		t.Fatalf("first delay = %v, want 1s", d)
	}

	tests := []struct {
		name string
		late time.Duration
		want time.Duration
	}{
		{"late tick shortens the next delay", 300 * time.Millisecond, 700 * time.Millisecond},
		{"on-time tick keeps the offset", 0, 700 * time.Millisecond},
		{"tick later than a second fires at once", 1500 * time.Millisecond, 0},
	}
	for i, tt := range tests {
		clock.advance(tt.late)
		elapse(t, clock, s, 1)
		if d := clock.lastDelay(); d != tt.want {
			t.Errorf("%s: delay = %v, want %v", tt.name, d, tt.want)
		}
		snap, err := s.Snapshot()
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if want := 60 - (i + 1); snap.TimeRemaining != want {
			t.Errorf("%s: remaining = %d, want %d", tt.name, snap.TimeRemaining, want)
		}
	}
}
