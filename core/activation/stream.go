package activation

import (
	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/lpgsim/core/model"
)

// StreamKind selects the layout of a binary output stream.
type StreamKind int

const (
	// StreamDetailed holds one value per column and tick.
	StreamDetailed StreamKind = iota
	// StreamSum holds the row total per tick.
	StreamSum
)

// StreamSpec describes a stream the processor asks its factory to open.
type StreamSpec struct {
	FileName    string
	Description string
	Kind        StreamKind
	LoadType    model.LoadType
}

// RowStream receives emitted rows.
type RowStream interface {
	WriteRow(t model.TimeStep, values []float64) error
	Close() error
}

// StreamFactory opens output streams. Failing to open a stream is fatal.
type StreamFactory interface {
	Open(spec StreamSpec) (RowStream, error)
}

// Row is the aggregated output of one load type at one tick.
type Row struct {
	Tick     model.TimeStep
	LoadType model.LoadType
	Values   []float64
}

// Sum returns the total of all columns.
func (r Row) Sum() float64 {
	return floats.Sum(r.Values)
}
