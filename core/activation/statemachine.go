// Package activation turns device activations into per-tick energy rows.
package activation

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/lpgsim/core/model"
)

// ErrInvalidStateMachine reports out-of-range construction arguments.
var ErrInvalidStateMachine = errors.New("invalid state machine")

// StateMachine is one activation of a device. It never changes after
// construction; its output is a pure function of the queried tick.
type StateMachine struct {
	start      model.TimeStep
	profile    model.Profile
	column     int
	key        model.ColumnKey
	loadType   model.LoadType
	deviceName string
	affordance string
}

// NewStateMachine validates the arguments and builds a StateMachine.
func NewStateMachine(start model.TimeStep, lt model.LoadType, deviceName string, key model.ColumnKey,
	affordance string, profile model.Profile, column int) (*StateMachine, error) {
	if start < 0 {
		return nil, fmt.Errorf("%w: negative start %d for %s", ErrInvalidStateMachine, start, deviceName)
	}
	if column < 0 {
		return nil, fmt.Errorf("%w: negative column %d for %s", ErrInvalidStateMachine, column, deviceName)
	}
	return &StateMachine{
		start:      start,
		profile:    profile.Clone(),
		column:     column,
		key:        key,
		loadType:   lt,
		deviceName: deviceName,
		affordance: affordance,
	}, nil
}

// EnergyValueForTick returns the contribution at t. Ticks covered by a zero
// override for this machine's key contribute nothing.
func (m *StateMachine) EnergyValueForTick(t model.TimeStep, overrides *ZeroLedger) float64 {
	if overrides != nil && overrides.Covers(m.key, t) {
		return 0
	}
	offset := int(t - m.start)
	if offset < 0 || offset >= len(m.profile.Values) {
		return 0
	}
	return m.profile.Values[offset]
}

// IsExpired reports whether t is at or past the end of the profile.
func (m *StateMachine) IsExpired(t model.TimeStep) bool {
	return t >= m.start.AddSteps(len(m.profile.Values))
}

// TotalEnergyUse is the sum of the profile converted with the load type factor.
func (m *StateMachine) TotalEnergyUse() float64 {
	return floats.Sum(m.profile.Values) * m.loadType.ConversionFactor
}

func (m *StateMachine) Start() model.TimeStep    { return m.start }
func (m *StateMachine) Column() int              { return m.column }
func (m *StateMachine) Key() model.ColumnKey     { return m.key }
func (m *StateMachine) LoadType() model.LoadType { return m.loadType }
func (m *StateMachine) DeviceName() string       { return m.deviceName }
func (m *StateMachine) Affordance() string       { return m.affordance }
func (m *StateMachine) Len() int                 { return len(m.profile.Values) }
