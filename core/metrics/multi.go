package metrics

// MultiSink fans out events to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRows forwards rows to all sinks, returning the first error encountered.
func (m *MultiSink) RecordRows(rows []RowEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordRows(rows); err != nil {
			return err
		}
	}
	return nil
}

// RecordActivation forwards activation events.
func (m *MultiSink) RecordActivation(ev ActivationEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ActivationRecorder); ok {
			if err := rec.RecordActivation(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordRoute forwards route events.
func (m *MultiSink) RecordRoute(ev RouteEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(RouteRecorder); ok {
			if err := rec.RecordRoute(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSummary forwards the run summary.
func (m *MultiSink) RecordSummary(sum RunSummary) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(SummaryRecorder); ok {
			if err := rec.RecordSummary(sum); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes the sinks that hold resources.
func (m *MultiSink) Close() error {
	var first error
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
