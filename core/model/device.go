package model

// DeviceType distinguishes the kinds of devices that own output columns.
type DeviceType int

const (
	DeviceTypeDevice DeviceType = iota
	DeviceTypeAutoDevice
	DeviceTypeTransportation
	DeviceTypeCharging
)

// String returns a human-readable representation of the device type.
func (t DeviceType) String() string {
	switch t {
	case DeviceTypeDevice:
		return "device"
	case DeviceTypeAutoDevice:
		return "autodevice"
	case DeviceTypeTransportation:
		return "transportation"
	case DeviceTypeCharging:
		return "charging"
	default:
		return "unknown"
	}
}

// Device is a physical appliance or vehicle instance in a household.
type Device struct {
	Name         string
	InstanceGUID string
	HouseholdKey string
	Type         DeviceType
	CategoryGUID string
	CategoryName string
	LocationGUID string
	LocationName string
}
