package game

import (
	"sync"
	"time"

	"clicky-game/internal/model"
)

// Presentation is how the click control is drawn. It is one of Single,
// Splitting or TwoButtons.
type Presentation interface {
	presentation()
}

// Single is the ordinary one-button control.
type Single struct{}

// Splitting is the timed animation between one and two buttons. Merge is set
// when the halves are joining back into one.
type Splitting struct {
	Merge bool
}

// TwoButtons is the split control. ThemeChoicePending is set when clicking a
// half also picks the fire or ice theme.
type TwoButtons struct {
	ThemeChoicePending bool
}

func (Single) presentation()     {}
func (Splitting) presentation()  {}
func (TwoButtons) presentation() {}

// Side names a half of the split control.
type Side int

// Left is the fire half, Right the ice half.
const (
	Left Side = iota
	Right
)

// DefaultSplitDelay is how long each split or merge animation stage lasts.
const DefaultSplitDelay = 500 * time.Millisecond

// ButtonMachine drives the click control between its presentations.
//
// Methods other than the timer callbacks expect the caller to hold the lock
// passed to NewButtonMachine; timer callbacks take it themselves.
type ButtonMachine struct {
	lock     sync.Locker
	sched    Scheduler
	delay    time.Duration
	onChange func(Presentation)

	state         Presentation
	choicePending bool
	timer         Timer
	gen           uint64
	closed        bool
}

// NewButtonMachine creates a machine in the Single state. onChange, if set, is
// called without the lock held after every timer-driven transition.
func NewButtonMachine(lock sync.Locker, sched Scheduler, delay time.Duration, onChange func(Presentation)) *ButtonMachine {
	if sched == nil {
		sched = RealScheduler
	}
	if delay <= 0 {
		delay = DefaultSplitDelay
	}
	return &ButtonMachine{
		lock:     lock,
		sched:    sched,
		delay:    delay,
		onChange: onChange,
		state:    Single{},
	}
}

// State returns the current presentation.
func (m *ButtonMachine) State() Presentation {
	return m.state
}

// ScoreChanged starts the split sequence when the score lands exactly on the
// fire/ice threshold, the feature is unlocked, no fire/ice theme has been
// chosen yet and splitting is enabled. It fires once: scores past the
// threshold never start it again.
func (m *ButtonMachine) ScoreChanged(score int64, features model.UnlockedFeatures, hasSelected, splitEnabled bool) bool {
	if m.closed || score != FireIceThreshold {
		return false
	}
	if !features.FireIceTheme || hasSelected || !splitEnabled {
		return false
	}
	if _, ok := m.state.(Single); !ok {
		return false
	}

	m.choicePending = true
	m.state = Splitting{}
	m.schedule(TwoButtons{})
	return true
}

// ClickHalf merges the split control back into one. It reports whether the
// click also settles a pending theme choice.
func (m *ButtonMachine) ClickHalf() (bool, error) {
	two, ok := m.state.(TwoButtons)
	if !ok {
		return false, ErrNotSplit
	}

	m.choicePending = false
	m.state = Splitting{Merge: true}
	m.schedule(Single{})
	return two.ThemeChoicePending, nil
}

// ResolveChoice marks the theme choice as made elsewhere, e.g. from settings.
func (m *ButtonMachine) ResolveChoice() {
	m.choicePending = false
	if _, ok := m.state.(TwoButtons); ok {
		m.state = TwoButtons{}
	}
}

// ForceSingle cancels any animation and returns to Single.
func (m *ButtonMachine) ForceSingle() bool {
	m.cancel()
	m.choicePending = false
	if _, ok := m.state.(Single); ok {
		return false
	}
	m.state = Single{}
	return true
}

// Close cancels pending timers; no further transitions are scheduled.
func (m *ButtonMachine) Close() {
	m.cancel()
	m.closed = true
}

// schedule moves to target after the animation delay.
func (m *ButtonMachine) schedule(target Presentation) {
	m.cancel()
	gen := m.gen
	m.timer = m.sched.AfterFunc(m.delay, func() {
		m.lock.Lock()
		if m.closed || m.gen != gen {
			m.lock.Unlock()
			return
		}
		if _, ok := target.(TwoButtons); ok {
			target = TwoButtons{ThemeChoicePending: m.choicePending}
		}
		m.state = target
		m.timer = nil
		notify := m.onChange
		m.lock.Unlock()

		if notify != nil {
			notify(target)
		}
	})
}

// cancel stops the pending timer and invalidates callbacks already in flight.
func (m *ButtonMachine) cancel() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
