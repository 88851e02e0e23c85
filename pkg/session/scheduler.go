package session

import "time"

// Timer is a pending deferred action.
type Timer interface {
	Stop() bool
}

// Scheduler runs deferred actions, such as the reset that follows closing a host.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// TimerScheduler schedules on the runtime timer.
type TimerScheduler struct{}

func (TimerScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
