package autosave

import "time"

type ITimer interface {
	Stop() bool
}

type IClock interface {
	AfterFunc(d time.Duration, f func()) ITimer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) ITimer {
	return time.AfterFunc(d, f)
}
