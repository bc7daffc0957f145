package core

import "time"

// Clock supplies the current instant to anything that computes elapsed
// time for open records. Injecting it keeps aggregation deterministic
// under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by the wall clock.
func SystemClock() Clock { return systemClock{} }
