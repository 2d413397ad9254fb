package vfs

import "time"

// Instant is a point in time as seconds since the Unix epoch plus
// sub-second microseconds. Seconds may be negative for pre-epoch times.
type Instant struct {
	Secs   int64
	Micros uint32
}

// Time converts the instant to a time.Time.
func (i Instant) Time() time.Time {
	return time.Unix(i.Secs, int64(i.Micros)*1000)
}

// InstantFrom converts a time.Time to an Instant.
func InstantFrom(t time.Time) Instant {
	micros := t.UnixMicro()
	secs := micros / 1_000_000
	rem := micros % 1_000_000
	if rem < 0 {
		secs--
		rem += 1_000_000
	}
	return Instant{Secs: secs, Micros: uint32(rem)}
}

// Clock abstracts time so hosts can layer timeouts or use a fake clock in
// tests.
type Clock interface {
	Now() Instant
}

// SystemClock is the wall-clock implementation of Clock.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() Instant {
	return InstantFrom(time.Now())
}
