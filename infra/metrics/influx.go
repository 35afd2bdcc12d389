package metrics

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/lpgsim/core/metrics"
	"github.com/kilianp07/lpgsim/infra/logger"
)

// InfluxSink writes simulation rows and events to an InfluxDB instance using
// the official client. Points are stamped with the simulated wall time.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRows writes one load_profile point per row. Column values become
// fields named after the column labels.
func (s *InfluxSink) RecordRows(rows []coremetrics.RowEvent) error {
	if len(rows) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(rows))
	for _, r := range rows {
		p := write.NewPointWithMeasurement("load_profile").
			AddTag("household", r.HouseholdKey).
			AddTag("load_type", r.LoadType.Name).
			AddTag("run_id", r.RunID).
			AddField("tick", r.Tick.Index()).
			AddField("sum", round3(r.Sum))
		for i, v := range r.Values {
			p.AddField(columnField(r.Columns, i), round3(v))
		}
		points = append(points, p.SetTime(r.Time))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

func columnField(cols []string, i int) string {
	if i < len(cols) && cols[i] != "" {
		return cols[i]
	}
	return "col_" + strconv.Itoa(i)
}

// RecordActivation persists a started device activation.
func (s *InfluxSink) RecordActivation(ev coremetrics.ActivationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("device_activation").
		AddTag("device", ev.Device).
		AddTag("load_type", ev.LoadType).
		AddTag("affordance", ev.Affordance).
		AddField("activator", ev.Activator).
		AddField("total_energy", round3(ev.TotalEnergy)).
		AddField("steps", ev.Steps).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRoute persists a trip resolution.
func (s *InfluxSink) RecordRoute(ev coremetrics.RouteEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("trip_resolution").
		AddTag("person", ev.Person).
		AddTag("outcome", ev.Outcome)
	if ev.Route != "" {
		p = p.AddTag("route", ev.Route)
	}
	p = p.AddField("duration_ticks", ev.Duration).
		AddField("attempt", ev.Attempt).
		AddField("devices", strings.Join(ev.Devices, ",")).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSummary writes one run_summary point per load type.
func (s *InfluxSink) RecordSummary(sum coremetrics.RunSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	now := time.Now()
	for _, lt := range sum.LoadTypes {
		p := write.NewPointWithMeasurement("run_summary").
			AddTag("run_id", sum.RunID).
			AddTag("household", sum.HouseholdKey).
			AddTag("load_type", lt.Name).
			AddField("total", round3(lt.Total)).
			AddField("mean", round3(lt.Mean)).
			AddField("peak", round3(lt.Peak)).
			AddField("energy", round3(lt.Energy)).
			AddField("steps", sum.Steps).
			SetTime(now)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return fmt.Errorf("write summary for %s: %w", lt.Name, err)
		}
	}
	return nil
}

// Close releases the client resources.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
