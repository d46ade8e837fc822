// Package metrics provides the Prometheus registry and the collector sets
// for the gateway, registry API, and worker pool. Collectors are gated on
// Init: when metrics are disabled every constructor returns nil and all
// record methods on a nil receiver are no-ops, so call sites never branch.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// Init creates the process-wide metrics registry with the standard Go and
// process collectors. Calling it more than once is a no-op.
func Init() {
	mu.Lock()
	defer mu.Unlock()
	if registry != nil {
		return
	}
	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IsEnabled reports whether Init has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the process registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Handler returns the /metrics HTTP handler. When metrics are disabled it
// serves 404 so probes fail loudly instead of scraping an empty page.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// resetForTesting drops the registry so tests can exercise both gates.
func resetForTesting() {
	mu.Lock()
	defer mu.Unlock()
	registry = nil
}
