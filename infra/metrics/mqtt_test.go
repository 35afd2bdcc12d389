package metrics

import (
	"errors"
	"testing"

	coremetrics "github.com/kilianp07/lpgsim/core/metrics"
)

type fakePublisher struct {
	rows         []coremetrics.RowEvent
	failAfter    int
	disconnected bool
}

func (f *fakePublisher) PublishRow(ev coremetrics.RowEvent) error {
	if f.failAfter >= 0 && len(f.rows) >= f.failAfter {
		return errors.New("broker down")
	}
	f.rows = append(f.rows, ev)
	return nil
}

func (f *fakePublisher) Disconnect() { f.disconnected = true }

func TestMQTTSinkPublishesRows(t *testing.T) {
	pub := &fakePublisher{failAfter: -1}
	s := NewMQTTSink(pub)
	if err := s.RecordRows([]coremetrics.RowEvent{{Tick: 1}, {Tick: 2}}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(pub.rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(pub.rows))
	}
	if err := s.Close(); err != nil || !pub.disconnected {
		t.Fatalf("close: %v", err)
	}
}

func TestMQTTSinkStopsOnError(t *testing.T) {
	pub := &fakePublisher{failAfter: 1}
	s := NewMQTTSink(pub)
	if err := s.RecordRows([]coremetrics.RowEvent{{Tick: 1}, {Tick: 2}, {Tick: 3}}); err == nil {
		t.Fatalf("expected error")
	}
	if len(pub.rows) != 1 {
		t.Fatalf("expected 1 row before failure, got %d", len(pub.rows))
	}
}
