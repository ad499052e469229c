package game

import "time"

// Timer is a pending scheduled callback.
type Timer interface {
	// Stop cancels the callback. It reports false if the callback already ran
	// or was stopped.
	Stop() bool
}

// Scheduler runs callbacks after a delay. Callbacks run on their own goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// RealScheduler schedules with time.AfterFunc.
var RealScheduler Scheduler = realScheduler{}
