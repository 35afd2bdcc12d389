package logging

import (
	"context"
)

// ActivationRecord captures one device activation and the energy it will use.
type ActivationRecord struct {
	RunID          string  `json:"run_id,omitempty"`
	StartTick      int     `json:"start_tick"`
	HouseholdKey   string  `json:"household_key"`
	DeviceName     string  `json:"device_name"`
	DeviceGUID     string  `json:"device_guid"`
	AffordanceName string  `json:"affordance_name"`
	ActivatorName  string  `json:"activator_name"`
	LoadTypeName   string  `json:"load_type_name"`
	LoadTypeGUID   string  `json:"load_type_guid"`
	TotalEnergy    float64 `json:"total_energy"`
	StepCount      int     `json:"step_count"`
}

// DeviceArchive is the descriptive record of a device, stored once per run.
type DeviceArchive struct {
	DeviceGUID   string `json:"device_guid"`
	DeviceName   string `json:"device_name"`
	HouseholdKey string `json:"household_key"`
	DeviceType   string `json:"device_type"`
	Category     string `json:"category"`
	LocationName string `json:"location_name"`
}

// ProfileActivation counts how often a profile was activated on a device.
type ProfileActivation struct {
	DeviceName      string `json:"device_name"`
	ProfileName     string `json:"profile_name"`
	ProfileSource   string `json:"profile_source"`
	LoadTypeName    string `json:"load_type_name"`
	ActivationCount int    `json:"activation_count"`
}

// Query defines filters for retrieving activation records. A negative ToTick
// leaves the range open.
type Query struct {
	DeviceGUID   string
	LoadTypeName string
	FromTick     int
	ToTick       int
}

func (q Query) matches(r ActivationRecord) bool {
	if q.DeviceGUID != "" && r.DeviceGUID != q.DeviceGUID {
		return false
	}
	if q.LoadTypeName != "" && r.LoadTypeName != q.LoadTypeName {
		return false
	}
	if r.StartTick < q.FromTick {
		return false
	}
	if q.ToTick >= 0 && r.StartTick > q.ToTick {
		return false
	}
	return true
}

// LogStore persists activation records, device archives and the profile
// activation report.
type LogStore interface {
	AppendActivation(ctx context.Context, rec ActivationRecord) error
	AppendArchive(ctx context.Context, a DeviceArchive) error
	AppendProfileActivations(ctx context.Context, entries []ProfileActivation) error
	Query(ctx context.Context, q Query) ([]ActivationRecord, error)
	Close() error
}

// NopStore discards everything.
type NopStore struct{}

func (NopStore) AppendActivation(context.Context, ActivationRecord) error           { return nil }
func (NopStore) AppendArchive(context.Context, DeviceArchive) error                 { return nil }
func (NopStore) AppendProfileActivations(context.Context, []ProfileActivation) error { return nil }
func (NopStore) Query(context.Context, Query) ([]ActivationRecord, error)           { return nil, nil }
func (NopStore) Close() error                                                       { return nil }
