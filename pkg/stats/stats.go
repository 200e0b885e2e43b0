// Package stats provides prometheus metrics and the server that exposes
// them.
package stats

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/514-labs/cla-bot-sub001/pkg/config"
)

var (
	webhookCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cla_bot",
		Subsystem: "webhook",
		Name:      "deliveries_total",
		Help:      "Webhook deliveries received, by event type",
	}, []string{"event"})

	webhookDuplicateCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cla_bot",
		Subsystem: "webhook",
		Name:      "duplicates_total",
		Help:      "Webhook deliveries ignored as duplicates",
	}, []string{"event"})

	webhookBadSignatureCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cla_bot",
		Subsystem: "webhook",
		Name:      "bad_signatures_total",
		Help:      "Webhook deliveries rejected for a bad HMAC signature",
	})

	decisionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cla_bot",
		Subsystem: "engine",
		Name:      "decisions_total",
		Help:      "Compliance decisions applied to pull requests, by kind",
	}, []string{"decision"})

	gatewayErrorCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cla_bot",
		Subsystem: "github",
		Name:      "gateway_errors_total",
		Help:      "GitHub API call failures, by method",
	}, []string{"method"})

	recheckCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cla_bot",
		Subsystem: "engine",
		Name:      "rechecks_total",
		Help:      "Bulk recheck runs, by trigger",
	}, []string{"trigger"})
)

// WebhookReceived counts one inbound webhook delivery.
func WebhookReceived(event string) {
	webhookCounter.WithLabelValues(event).Inc()
}

// WebhookDuplicate counts one delivery ignored as a retry.
func WebhookDuplicate(event string) {
	webhookDuplicateCounter.WithLabelValues(event).Inc()
}

// WebhookBadSignature counts one delivery rejected for a bad signature.
func WebhookBadSignature() {
	webhookBadSignatureCounter.Inc()
}

// DecisionApplied counts one applied compliance decision.
func DecisionApplied(decision string) {
	decisionCounter.WithLabelValues(decision).Inc()
}

// GatewayError counts one failed GitHub API call.
func GatewayError(method string) {
	gatewayErrorCounter.WithLabelValues(method).Inc()
}

// RecheckStarted counts one bulk recheck run.
func RecheckStarted(trigger string) {
	recheckCounter.WithLabelValues(trigger).Inc()
}

// StatsServer is a server for collecting and reporting statistics.
type StatsServer struct { //nolint:revive
	ctx    context.Context
	cfg    *config.Config
	server *http.Server
}

// NewStatsServer returns a new StatsServer.
func NewStatsServer(ctx context.Context) (*StatsServer, error) {
	cfg := config.FromContext(ctx)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &StatsServer{
		ctx: ctx,
		cfg: cfg,
		server: &http.Server{
			Addr:              cfg.Stats.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: time.Second * 10,
			ReadTimeout:       time.Second * 10,
			WriteTimeout:      time.Second * 10,
			MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
		},
	}, nil
}

// ListenAndServe starts the StatsServer.
func (s *StatsServer) ListenAndServe() error {
	return s.server.ListenAndServe() //nolint:wrapcheck
}

// Shutdown gracefully shuts down the StatsServer.
func (s *StatsServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx) //nolint:wrapcheck
}

// Close closes the StatsServer.
func (s *StatsServer) Close() error {
	return s.server.Close() //nolint:wrapcheck
}
