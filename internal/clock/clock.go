package clock

import (
	"time"

	"go.uber.org/fx"
)

var Module = fx.Module("clock", fx.Provide(New))

// Clock is the time source for anything that stamps rows or compares dates.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func New() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
