package services

import (
	"time"

	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type systemClock struct{}

// SystemClock returns the wall clock backed by time.AfterFunc.
func SystemClock() ports.Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) ports.Timer {
	return time.AfterFunc(d, f)
}
