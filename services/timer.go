package services

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Clock abstracts wall time so tests can drive the countdown without waiting
// on real seconds.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{ticker: time.NewTicker(d)}
}

type realTicker struct {
	ticker *time.Ticker
}

func (t *realTicker) C() <-chan time.Time { return t.ticker.C }
func (t *realTicker) Stop()               { t.ticker.Stop() }

// NewRealClock returns a Clock backed by the system clock.
func NewRealClock() Clock { return realClock{} }

// QuestionTimer counts a single question's budget down one second at a time.
// The expiry callback fires at most once per Start; starting a new duration
// cancels any prior run so a late tick can never double-submit an answer.
type QuestionTimer struct {
	mu        sync.Mutex
	clock     Clock
	onTick    func(remaining int)
	onExpire  func()
	initial   int
	remaining int
	active    bool
	gen       uint64
	stop      chan struct{}
}

func NewQuestionTimer(clock Clock, onTick func(remaining int), onExpire func()) *QuestionTimer {
	if clock == nil {
		clock = realClock{}
	}
	return &QuestionTimer{
		clock:    clock,
		onTick:   onTick,
		onExpire: onExpire,
	}
}

// Start resets the countdown to durationSeconds and begins ticking. Any prior
// run, including its pending expiry, is cancelled first.
func (t *QuestionTimer) Start(durationSeconds int) error {
	if durationSeconds <= 0 {
		return fmt.Errorf("timer duration must be positive, got %d", durationSeconds)
	}

	t.mu.Lock()
	t.stopLocked()
	t.initial = durationSeconds
	t.remaining = durationSeconds
	t.active = true
	t.gen++
	gen := t.gen
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	go t.run(gen, stop)

	slog.Debug("Question timer started", "duration_seconds", durationSeconds)
	return nil
}

// Stop marks the timer inactive and suppresses further ticks; idempotent.
func (t *QuestionTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *QuestionTimer) stopLocked() {
	t.active = false
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

func (t *QuestionTimer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *QuestionTimer) TimeRemaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

func (t *QuestionTimer) InitialTime() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initial
}

// TimeSpent is the number of seconds consumed from the current budget.
func (t *QuestionTimer) TimeSpent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initial - t.remaining
}

func (t *QuestionTimer) run(gen uint64, stop chan struct{}) {
	ticker := t.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if t.tick(gen) {
				return
			}
		}
	}
}

// tick decrements the countdown by one second. It reports true when the run
// is finished, either because the budget expired or a newer Start superseded
// this run.
func (t *QuestionTimer) tick(gen uint64) bool {
	t.mu.Lock()
	if t.gen != gen || !t.active {
		t.mu.Unlock()
		return true
	}

	t.remaining--
	if t.remaining <= 0 {
		t.remaining = 0
		t.active = false
		t.stop = nil
		expire := t.onExpire
		tick := t.onTick
		t.mu.Unlock()

		if tick != nil {
			tick(0)
		}
		if expire != nil {
			expire()
		}
		return true
	}

	remaining := t.remaining
	tick := t.onTick
	t.mu.Unlock()

	if tick != nil {
		tick(remaining)
	}
	return false
}
