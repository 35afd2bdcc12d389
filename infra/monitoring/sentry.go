// Package monitoring reports fatal simulation errors to Sentry.
package monitoring

import (
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/lpgsim/config"
	coremon "github.com/kilianp07/lpgsim/core/monitoring"
)

// NewSentryMonitor initializes Sentry using the provided configuration. An
// empty DSN yields a NopMonitor.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, err
	}
	return &SentryMonitor{tags: map[string]string{}}, nil
}

// SentryMonitor captures errors with the run tags merged into every event.
type SentryMonitor struct {
	mu   sync.RWMutex
	tags map[string]string
}

// SetTags adds tags, such as the run id and household key, to later events.
func (s *SentryMonitor) SetTags(tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range tags {
		s.tags[k] = v
	}
}

func (s *SentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range s.tags {
			scope.SetTag(k, v)
		}
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

func (s *SentryMonitor) Recover() {
	if r := recover(); r != nil {
		sentry.CurrentHub().Recover(r)
		sentry.Flush(2 * time.Second)
		panic(r)
	}
}

func (s *SentryMonitor) Flush(timeout time.Duration) { sentry.Flush(timeout) }
