// Package infra holds the adapters of the simulator: zerolog logging, the
// binary .dat writer, Prometheus, InfluxDB, MQTT and SQLite sinks, and the
// Sentry monitor. Each depends only on interfaces from core.
package infra
