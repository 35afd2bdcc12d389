// Package monitoring forwards fatal run errors to an error tracker. The
// tracker is process-wide and defaults to a no-op.
package monitoring

import (
	"errors"
	"sync"
	"time"

	"github.com/kilianp07/lpgsim/core/model"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init sets the global monitor implementation. nil is ignored.
func Init(m Monitor) {
	if m == nil {
		return
	}
	mu.Lock()
	current = m
	mu.Unlock()
}

func get() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	get().CaptureException(err, tags)
}

// CaptureFatal records an error that ends a run. Configuration integrity
// failures are tagged kind=integrity, everything else kind=runtime.
func CaptureFatal(module string, err error, tags map[string]string) {
	if err == nil {
		return
	}
	all := map[string]string{"module": module, "kind": "runtime"}
	if errors.Is(err, model.ErrConfigIntegrity) {
		all["kind"] = "integrity"
	}
	for k, v := range tags {
		all[k] = v
	}
	get().CaptureException(err, all)
}

// Recover captures panics in goroutines.
func Recover() {
	get().Recover()
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	get().Flush(d)
}
