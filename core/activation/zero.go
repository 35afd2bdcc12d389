package activation

import (
	"fmt"

	"github.com/kilianp07/lpgsim/core/model"
)

// ZeroEntry suppresses the output of one column key in [Start, End).
type ZeroEntry struct {
	Start model.TimeStep
	End   model.TimeStep
	Key   model.ColumnKey
}

// Covers reports whether t lies inside the window.
func (z ZeroEntry) Covers(t model.TimeStep) bool {
	return t >= z.Start && t < z.End
}

// ZeroLedger holds the override windows of automatic devices that are
// substituted by another device.
type ZeroLedger struct {
	byKey map[model.ColumnKey][]ZeroEntry
	count int
}

// NewZeroLedger returns an empty ledger.
func NewZeroLedger() *ZeroLedger {
	return &ZeroLedger{byKey: make(map[model.ColumnKey][]ZeroEntry)}
}

// Add appends the window [start, start+duration).
func (l *ZeroLedger) Add(key model.ColumnKey, start model.TimeStep, duration int) error {
	if duration < 0 {
		return fmt.Errorf("%w: negative override duration %d", ErrInvalidStateMachine, duration)
	}
	l.byKey[key] = append(l.byKey[key], ZeroEntry{Start: start, End: start.AddSteps(duration), Key: key})
	l.count++
	return nil
}

// Covers reports whether any window of key contains t.
func (l *ZeroLedger) Covers(key model.ColumnKey, t model.TimeStep) bool {
	for _, e := range l.byKey[key] {
		if e.Covers(t) {
			return true
		}
	}
	return false
}

// Prune drops the windows that ended before the tick following t.
func (l *ZeroLedger) Prune(t model.TimeStep) {
	next := t.AddSteps(1)
	for key, entries := range l.byKey {
		kept := entries[:0]
		for _, e := range entries {
			if e.End < next {
				l.count--
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(l.byKey, key)
			continue
		}
		l.byKey[key] = kept
	}
}

// Len returns the number of live windows.
func (l *ZeroLedger) Len() int { return l.count }
