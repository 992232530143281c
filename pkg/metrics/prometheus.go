// Package metrics wires the lockstep server's runtime into Prometheus.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LockstepMetrics holds the counters and gauges the turn manager and
// connection registry update as they run.
type LockstepMetrics struct {
	BuildInfo *prometheus.GaugeVec
	StartTime prometheus.Gauge

	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	ConnectionsRejected *prometheus.CounterVec

	TurnsFinalized    prometheus.Counter
	TurnLoopDuration  prometheus.Histogram
	TurnStalls        prometheus.Counter

	BroadcastsSent    prometheus.Counter
	GapFillRequests   prometheus.Counter

	ReconnectsSucceeded prometheus.Counter
	ReconnectsRejected  prometheus.Counter

	SessionState *prometheus.GaugeVec
}

// NewLockstepMetrics creates and registers the lockstep server's
// collectors under the given namespace.
func NewLockstepMetrics(namespace string) *LockstepMetrics {
	return &LockstepMetrics{
		BuildInfo: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		}, []string{"version", "commit", "build_time"}),
		StartTime: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help:      "Unix timestamp of service start time",
		}),

		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "active",
			Help:      "Number of currently connected clients",
		}),
		ConnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "accepted_total",
			Help:      "Total number of accepted client connections",
		}),
		ConnectionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "rejected_total",
			Help:      "Total number of rejected connection attempts by reason",
		}, []string{"reason"}),

		TurnsFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "turn",
			Name:      "finalized_total",
			Help:      "Total number of turns finalized and broadcast",
		}),
		TurnLoopDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "turn",
			Name:      "loop_duration_seconds",
			Help:      "Wall-clock duration of one turn-manager loop iteration",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		TurnStalls: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "turn",
			Name:      "stalls_total",
			Help:      "Total number of turn-loop polls that found more than one turn boundary elapsed since the last finalized turn",
		}),

		BroadcastsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "sent_total",
			Help:      "Total number of input_frame broadcasts sent to clients",
		}),
		GapFillRequests: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "gap_fill_requests_total",
			Help:      "Total number of request_frames messages received",
		}),

		ReconnectsSucceeded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconnect",
			Name:      "succeeded_total",
			Help:      "Total number of successful reconnect-token redemptions",
		}),
		ReconnectsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconnect",
			Name:      "rejected_total",
			Help:      "Total number of rejected or expired reconnect-token redemptions",
		}),

		SessionState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "1 if the session is currently in the named state, else 0",
		}, []string{"state"}),
	}
}

// Registry owns the lockstep metrics collectors and the HTTP server that
// exposes them.
type Registry struct {
	serviceName string
	logger      *slog.Logger

	Lockstep *LockstepMetrics

	server *http.Server
}

// NewRegistry creates a new metrics registry for the given service.
func NewRegistry(serviceName, version, buildTime, gitCommit string, logger *slog.Logger) *Registry {
	reg := &Registry{
		serviceName: serviceName,
		logger:      logger,
		Lockstep:    NewLockstepMetrics("lockstep"),
	}

	reg.Lockstep.BuildInfo.WithLabelValues(version, gitCommit, buildTime).Set(1)
	reg.Lockstep.StartTime.SetToCurrentTime()

	return reg
}

// StartMetricsServer starts the HTTP server exposing /metrics and /health.
func (r *Registry) StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"` + r.serviceName + `"}`))
	})

	r.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	r.logger.Info("starting metrics server", "port", port)
	return r.server.ListenAndServe()
}

// StopMetricsServer gracefully shuts down the metrics HTTP server.
func (r *Registry) StopMetricsServer(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	r.logger.Info("stopping metrics server")
	return r.server.Shutdown(ctx)
}
