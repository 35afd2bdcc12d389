package model

import (
	"fmt"
	"time"
)

// TimeStep is a discrete simulation tick at a fixed resolution.
type TimeStep int

// AddSteps returns the tick n steps after t.
func (t TimeStep) AddSteps(n int) TimeStep { return t + TimeStep(n) }

// Before reports whether t is earlier than o.
func (t TimeStep) Before(o TimeStep) bool { return t < o }

// After reports whether t is later than o.
func (t TimeStep) After(o TimeStep) bool { return t > o }

// Index returns the zero-based tick number.
func (t TimeStep) Index() int { return int(t) }

func (t TimeStep) String() string { return fmt.Sprintf("t%d", int(t)) }

// Clock maps ticks to wall time. Start is the time of tick 0.
type Clock struct {
	Start      time.Time
	Resolution time.Duration
}

// NewClock returns a Clock. A non-positive resolution defaults to one minute.
func NewClock(start time.Time, resolution time.Duration) Clock {
	if resolution <= 0 {
		resolution = time.Minute
	}
	return Clock{Start: start, Resolution: resolution}
}

// Time returns the wall time at which t begins.
func (c Clock) Time(t TimeStep) time.Time {
	return c.Start.Add(time.Duration(t) * c.Resolution)
}

// StepsFor converts a duration into ticks, rounding up.
func (c Clock) StepsFor(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	n := d / c.Resolution
	if d%c.Resolution != 0 {
		n++
	}
	return int(n)
}
