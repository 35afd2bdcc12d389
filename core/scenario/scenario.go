// Package scenario reads a household description and turns it into the model
// objects driven by the engine.
package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a scenario file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported scenario format: %s", filepath.Ext(path))
	}
}

// Scenario is the on-disk description of one household.
type Scenario struct {
	Household   HouseholdSpec    `yaml:"household" json:"household" toml:"household"`
	LoadTypes   []LoadTypeSpec   `yaml:"load_types" json:"load_types" toml:"load_types"`
	Locations   []LocationSpec   `yaml:"locations" json:"locations" toml:"locations"`
	Profiles    []ProfileSpec    `yaml:"profiles" json:"profiles" toml:"profiles"`
	Devices     []DeviceSpec     `yaml:"devices" json:"devices" toml:"devices"`
	Activations []ActivationSpec `yaml:"activations" json:"activations" toml:"activations"`
	Overrides   []OverrideSpec   `yaml:"zero_overrides" json:"zero_overrides" toml:"zero_overrides"`
	Persons     []PersonSpec     `yaml:"persons" json:"persons" toml:"persons"`
	Transport   TransportSpec    `yaml:"transport" json:"transport" toml:"transport"`
	Trips       []TripSpec       `yaml:"trips" json:"trips" toml:"trips"`
}

type HouseholdSpec struct {
	Key  string `yaml:"key" json:"key" toml:"key"`
	Name string `yaml:"name" json:"name" toml:"name"`
}

type LoadTypeSpec struct {
	GUID             string  `yaml:"guid" json:"guid" toml:"guid"`
	Name             string  `yaml:"name" json:"name" toml:"name"`
	UnitOfPower      string  `yaml:"unit_of_power" json:"unit_of_power" toml:"unit_of_power"`
	UnitOfSum        string  `yaml:"unit_of_sum" json:"unit_of_sum" toml:"unit_of_sum"`
	ConversionFactor float64 `yaml:"conversion_factor" json:"conversion_factor" toml:"conversion_factor"`
}

type LocationSpec struct {
	GUID string `yaml:"guid" json:"guid" toml:"guid"`
	Name string `yaml:"name" json:"name" toml:"name"`
}

type ProfileSpec struct {
	Name       string    `yaml:"name" json:"name" toml:"name"`
	DataSource string    `yaml:"data_source" json:"data_source" toml:"data_source"`
	Values     []float64 `yaml:"values" json:"values" toml:"values"`
}

// DeviceSpec is a device and the load types it draws.
type DeviceSpec struct {
	Name         string   `yaml:"name" json:"name" toml:"name"`
	GUID         string   `yaml:"guid" json:"guid" toml:"guid"`
	Type         string   `yaml:"type" json:"type" toml:"type"`
	CategoryGUID string   `yaml:"category_guid" json:"category_guid" toml:"category_guid"`
	CategoryName string   `yaml:"category" json:"category" toml:"category"`
	Location     string   `yaml:"location" json:"location" toml:"location"`
	LoadTypes    []string `yaml:"load_types" json:"load_types" toml:"load_types"`
}

// ActivationSpec starts a profile on a device at a tick.
type ActivationSpec struct {
	Device     string `yaml:"device" json:"device" toml:"device"`
	LoadType   string `yaml:"load_type" json:"load_type" toml:"load_type"`
	Profile    string `yaml:"profile" json:"profile" toml:"profile"`
	Start      int    `yaml:"start" json:"start" toml:"start"`
	Affordance string `yaml:"affordance" json:"affordance" toml:"affordance"`
	Activator  string `yaml:"activator" json:"activator" toml:"activator"`
}

// OverrideSpec silences an automatic device for a window.
type OverrideSpec struct {
	Device   string `yaml:"device" json:"device" toml:"device"`
	LoadType string `yaml:"load_type" json:"load_type" toml:"load_type"`
	Start    int    `yaml:"start" json:"start" toml:"start"`
	Duration int    `yaml:"duration" json:"duration" toml:"duration"`
}

type PersonSpec struct {
	ID     string `yaml:"id" json:"id" toml:"id"`
	Name   string `yaml:"name" json:"name" toml:"name"`
	Gender string `yaml:"gender" json:"gender" toml:"gender"`
	Age    int    `yaml:"age" json:"age" toml:"age"`
}

type TransportSpec struct {
	Sites       []SiteSpec       `yaml:"sites" json:"sites" toml:"sites"`
	Categories  []CategorySpec   `yaml:"categories" json:"categories" toml:"categories"`
	Devices     []VehicleSpec    `yaml:"devices" json:"devices" toml:"devices"`
	TaggingSets []TaggingSetSpec `yaml:"tagging_sets" json:"tagging_sets" toml:"tagging_sets"`
	Routes      []RouteSpec      `yaml:"routes" json:"routes" toml:"routes"`
}

type SiteSpec struct {
	GUID                string   `yaml:"guid" json:"guid" toml:"guid"`
	Name                string   `yaml:"name" json:"name" toml:"name"`
	Locations           []string `yaml:"locations" json:"locations" toml:"locations"`
	DeviceChangeAllowed bool     `yaml:"device_change_allowed" json:"device_change_allowed" toml:"device_change_allowed"`
}

type CategorySpec struct {
	GUID                      string  `yaml:"guid" json:"guid" toml:"guid"`
	Name                      string  `yaml:"name" json:"name" toml:"name"`
	IsLimitedToSingleLocation bool    `yaml:"limited_to_single_location" json:"limited_to_single_location" toml:"limited_to_single_location"`
	DefaultSpeed              float64 `yaml:"default_speed" json:"default_speed" toml:"default_speed"`
}

// VehicleSpec is a shared transportation device.
type VehicleSpec struct {
	GUID     string  `yaml:"guid" json:"guid" toml:"guid"`
	Name     string  `yaml:"name" json:"name" toml:"name"`
	Category string  `yaml:"category" json:"category" toml:"category"`
	Speed    float64 `yaml:"speed" json:"speed" toml:"speed"`
	Site     string  `yaml:"site" json:"site" toml:"site"`
}

type TaggingSetSpec struct {
	GUID string            `yaml:"guid" json:"guid" toml:"guid"`
	Name string            `yaml:"name" json:"name" toml:"name"`
	Tags map[string]string `yaml:"tags" json:"tags" toml:"tags"`
}

type RouteSpec struct {
	GUID       string     `yaml:"guid" json:"guid" toml:"guid"`
	Name       string     `yaml:"name" json:"name" toml:"name"`
	From       string     `yaml:"from" json:"from" toml:"from"`
	To         string     `yaml:"to" json:"to" toml:"to"`
	Weight     float64    `yaml:"weight" json:"weight" toml:"weight"`
	Person     string     `yaml:"person" json:"person" toml:"person"`
	Gender     string     `yaml:"gender" json:"gender" toml:"gender"`
	MinAge     int        `yaml:"min_age" json:"min_age" toml:"min_age"`
	MaxAge     int        `yaml:"max_age" json:"max_age" toml:"max_age"`
	TaggingSet string     `yaml:"tagging_set" json:"tagging_set" toml:"tagging_set"`
	Tag        string     `yaml:"tag" json:"tag" toml:"tag"`
	Steps      []StepSpec `yaml:"steps" json:"steps" toml:"steps"`
}

type StepSpec struct {
	Name     string  `yaml:"name" json:"name" toml:"name"`
	Category string  `yaml:"category" json:"category" toml:"category"`
	Distance float64 `yaml:"distance" json:"distance" toml:"distance"`
}

// TripSpec asks a person to travel at a tick.
type TripSpec struct {
	Person     string `yaml:"person" json:"person" toml:"person"`
	From       string `yaml:"from" json:"from" toml:"from"`
	To         string `yaml:"to" json:"to" toml:"to"`
	Tick       int    `yaml:"tick" json:"tick" toml:"tick"`
	Affordance string `yaml:"affordance" json:"affordance" toml:"affordance"`
}

// Load reads the scenario at path.
func Load(path string) (*Scenario, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	return Decode(f, format)
}

// Decode reads a scenario encoded in format from r.
func Decode(r io.Reader, format Format) (*Scenario, error) {
	var sc Scenario
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&sc); err != nil {
			return nil, fmt.Errorf("decode yaml scenario: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&sc); err != nil {
			return nil, fmt.Errorf("decode json scenario: %w", err)
		}
	case FormatTOML:
		if _, err := toml.NewDecoder(r).Decode(&sc); err != nil {
			return nil, fmt.Errorf("decode toml scenario: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported scenario format: %s", format)
	}
	return &sc, nil
}
