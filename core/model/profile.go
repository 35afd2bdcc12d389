package model

// Profile is a named sequence of power samples, one per tick.
type Profile struct {
	Name       string
	DataSource string
	Values     []float64
}

// Len returns the number of ticks covered by the profile.
func (p Profile) Len() int { return len(p.Values) }

// Clone returns a copy whose values do not alias p.
func (p Profile) Clone() Profile {
	cp := p
	cp.Values = append([]float64(nil), p.Values...)
	return cp
}
