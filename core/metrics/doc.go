// Package metrics defines the sinks that observe a simulation run. Every sink
// receives the emitted rows; optional recorder interfaces cover activations,
// route resolutions and the run summary. Sinks are built by name from
// configuration and combined with NewMultiSink when several are configured.
package metrics
