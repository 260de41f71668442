package server

import "time"

// SetNow replaces the clock used for the Date header until the returned
// function is called.
func SetNow(f func() time.Time) (restore func()) {
	prev := now
	now = f
	return func() { now = prev }
}
