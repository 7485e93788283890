// Package metrics defines the optional observability surface of the FTP
// server. The server records against the FTPMetrics interface; pass nil to
// disable collection with zero overhead. The prometheus subpackage provides
// the production implementation.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// FTPMetrics observes connection lifecycle and transfer outcomes.
//
// All methods must be safe for concurrent use. Implementations should treat
// a nil receiver as a no-op so callers never need nil checks at call sites.
type FTPMetrics interface {
	// RecordClientConnected increments the accepted-connection counter.
	RecordClientConnected()

	// RecordClientDisconnected increments the closed-connection counter.
	RecordClientDisconnected()

	// SetActiveClients updates the active-session gauge.
	SetActiveClients(count int32)

	// RecordFileSent records a completed RETR; ok is false on 4xx paths.
	RecordFileSent(ok bool, bytes int64)

	// RecordFileReceived records a completed STOR; ok is false on 4xx paths.
	RecordFileReceived(ok bool, bytes int64)

	// RecordCommand records one dispatched command verb.
	RecordCommand(verb string)
}

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the process-wide Prometheus registry. Call once at
// startup, before constructing any metrics implementation. Until it is
// called, IsEnabled reports false and constructors return nil recorders.
func InitRegistry() {
	mu.Lock()
	defer mu.Unlock()
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
}

// IsEnabled reports whether metrics collection is active.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the process-wide registry, or nil when disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}
