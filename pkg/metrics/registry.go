// Package metrics exposes the observability interfaces of DriftFS. Every
// interface is optional: a nil value disables collection with zero overhead.
// The Prometheus implementations live in pkg/metrics/prometheus.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registryMu sync.RWMutex
	registry   *prometheus.Registry
)

// InitRegistry creates the process-wide Prometheus registry with the
// standard Go and process collectors. Metrics constructors return nil until
// this has been called.
func InitRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	if registry != nil {
		return
	}
	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry != nil
}

// GetRegistry returns the process-wide registry, or nil when metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry
}
