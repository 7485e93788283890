// Package prometheus implements the metrics interfaces on top of the
// Prometheus client library.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kuba23c/ftp-server/pkg/metrics"
)

// ftpMetrics is the Prometheus implementation of metrics.FTPMetrics.
type ftpMetrics struct {
	clientsConnected    prometheus.Counter
	clientsDisconnected prometheus.Counter
	clientsActive       prometheus.Gauge
	filesSent           *prometheus.CounterVec
	filesReceived       *prometheus.CounterVec
	bytesSent           prometheus.Counter
	bytesReceived       prometheus.Counter
	commands            *prometheus.CounterVec
}

// NewFTPMetrics creates a new Prometheus-backed FTPMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called); the
// server treats a nil recorder as a no-op.
func NewFTPMetrics() metrics.FTPMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &ftpMetrics{
		clientsConnected: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ftpd_clients_connected_total",
			Help: "Total number of accepted control connections",
		}),
		clientsDisconnected: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ftpd_clients_disconnected_total",
			Help: "Total number of closed control connections",
		}),
		clientsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ftpd_clients_active",
			Help: "Number of sessions currently being served",
		}),
		filesSent: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ftpd_files_sent_total",
			Help: "Completed RETR transfers by outcome",
		}, []string{"outcome"}), // "ok", "fail"
		filesReceived: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ftpd_files_received_total",
			Help: "Completed STOR transfers by outcome",
		}, []string{"outcome"}), // "ok", "fail"
		bytesSent: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ftpd_data_bytes_sent_total",
			Help: "Bytes delivered over data channels by RETR",
		}),
		bytesReceived: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ftpd_data_bytes_received_total",
			Help: "Bytes accepted over data channels by STOR",
		}),
		commands: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ftpd_commands_total",
			Help: "Dispatched control commands by verb",
		}, []string{"verb"}),
	}
}

func (m *ftpMetrics) RecordClientConnected() {
	if m == nil {
		return
	}
	m.clientsConnected.Inc()
}

func (m *ftpMetrics) RecordClientDisconnected() {
	if m == nil {
		return
	}
	m.clientsDisconnected.Inc()
}

func (m *ftpMetrics) SetActiveClients(count int32) {
	if m == nil {
		return
	}
	m.clientsActive.Set(float64(count))
}

func (m *ftpMetrics) RecordFileSent(ok bool, bytes int64) {
	if m == nil {
		return
	}
	m.filesSent.WithLabelValues(outcome(ok)).Inc()
	if bytes > 0 {
		m.bytesSent.Add(float64(bytes))
	}
}

func (m *ftpMetrics) RecordFileReceived(ok bool, bytes int64) {
	if m == nil {
		return
	}
	m.filesReceived.WithLabelValues(outcome(ok)).Inc()
	if bytes > 0 {
		m.bytesReceived.Add(float64(bytes))
	}
}

func (m *ftpMetrics) RecordCommand(verb string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(verb).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "fail"
}
