package model

// WildcardLoadTypeGUID is accepted in place of a concrete load type guid when
// a column key is checked against its load type.
const WildcardLoadTypeGUID = "-1"

// ColumnKey identifies the output column of one device for one load type.
// Keys are comparable and may be used as map keys.
type ColumnKey struct {
	HouseholdKey       string
	DeviceType         DeviceType
	DeviceCategory     string
	DeviceInstanceGUID string
	LocationGUID       string
	LoadTypeGUID       string
}

// NewColumnKey builds the key of d for the given load type guid.
func NewColumnKey(d Device, loadTypeGUID string) ColumnKey {
	return ColumnKey{
		HouseholdKey:       d.HouseholdKey,
		DeviceType:         d.Type,
		DeviceCategory:     d.CategoryGUID,
		DeviceInstanceGUID: d.InstanceGUID,
		LocationGUID:       d.LocationGUID,
		LoadTypeGUID:       loadTypeGUID,
	}
}

// MatchesLoadType reports whether the key was built for lt.
func (k ColumnKey) MatchesLoadType(lt LoadType) bool {
	return k.LoadTypeGUID == lt.GUID || k.LoadTypeGUID == WildcardLoadTypeGUID
}
