package metrics

import (
	coremetrics "github.com/kilianp07/lpgsim/core/metrics"
)

// RowPublisher publishes rows to a message broker.
type RowPublisher interface {
	PublishRow(ev coremetrics.RowEvent) error
	Disconnect()
}

// MQTTSink streams every emitted row to a broker.
type MQTTSink struct {
	pub RowPublisher
}

// NewMQTTSink wraps pub.
func NewMQTTSink(pub RowPublisher) *MQTTSink { return &MQTTSink{pub: pub} }

// RecordRows publishes each row; the first failure stops the batch.
func (s *MQTTSink) RecordRows(rows []coremetrics.RowEvent) error {
	for _, r := range rows {
		if err := s.pub.PublishRow(r); err != nil {
			return err
		}
	}
	return nil
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() error {
	s.pub.Disconnect()
	return nil
}
