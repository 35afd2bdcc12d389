package model

// LoadType identifies a commodity such as electricity or warm water.
type LoadType struct {
	GUID        string
	Name        string
	UnitOfPower string
	UnitOfSum   string
	// ConversionFactor converts a power sample into energy for one tick.
	ConversionFactor float64
}

func (l LoadType) String() string { return l.Name }
