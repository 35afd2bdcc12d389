package engine

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	coremetrics "github.com/kilianp07/lpgsim/core/metrics"
	"github.com/kilianp07/lpgsim/core/model"
)

func summarize(lt model.LoadType, sums []float64) coremetrics.LoadTypeSummary {
	s := coremetrics.LoadTypeSummary{Name: lt.Name}
	if len(sums) == 0 {
		return s
	}
	s.Total = floats.Sum(sums)
	s.Mean = stat.Mean(sums, nil)
	s.Peak = floats.Max(sums)
	s.Energy = s.Total * lt.ConversionFactor
	return s
}
