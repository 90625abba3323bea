package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ryandielhenn/glomers/pkg/node"
	"github.com/ryandielhenn/glomers/pkg/proto"
)

var (
	Registry = prometheus.NewRegistry()

	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glomers",
			Name:      "messages_total",
			Help:      "Messages handled (in) and emitted (out), by payload type.",
		},
		[]string{"direction", "type"},
	)

	HandlerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glomers",
			Name:      "handler_errors_total",
			Help:      "Handler failures by payload type.",
		},
		[]string{"type"},
	)

	HandleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "glomers",
			Name:      "handle_duration_seconds",
			Help:      "Time spent in Handler.Handle.",
			// 10µs .. ~160ms
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15),
		},
		[]string{"type"},
	)

	accepted   atomic.Pointer[func() int]
	acceptedFn = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "glomers",
			Name:      "accepted_values",
			Help:      "Size of the node's accepted value set.",
		},
		func() float64 {
			if f := accepted.Load(); f != nil {
				return float64((*f)())
			}
			return 0
		},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "glomers",
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by node kind and version).",
		},
		[]string{"kind", "version"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "glomers",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(MessagesTotal, HandlerErrors, HandleDuration, acceptedFn, buildInfo, uptime)
}

// MetricsHandler exposes the registry in the prometheus text format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup.
func SetBuildInfo(kind, version string) {
	buildInfo.WithLabelValues(kind, version).Set(1)
}

// TrackAccepted makes the accepted_values gauge report f.
// f is called from the scrape goroutine and must be safe for that.
func TrackAccepted(f func() int) {
	accepted.Store(&f)
}

// Instrument wraps a Handler to count messages in and out and time each call.
func Instrument[P proto.Payload](next node.Handler[P]) node.Handler[P] {
	return node.HandlerFunc[P](func(msg proto.Message[P]) ([]proto.Message[P], error) {
		typ := msg.Body.Payload.Type()
		start := time.Now()

		MessagesTotal.WithLabelValues("in", typ).Inc()
		out, err := next.Handle(msg)
		HandleDuration.WithLabelValues(typ).Observe(time.Since(start).Seconds())

		if err != nil {
			HandlerErrors.WithLabelValues(typ).Inc()
			return out, err
		}
		for _, m := range out {
			MessagesTotal.WithLabelValues("out", m.Body.Payload.Type()).Inc()
		}
		return out, nil
	})
}

// Serve exposes /metrics on addr in the background. It returns a shutdown
// function; the listener is bound before Serve returns.
func Serve(addr string, log *zap.Logger) (func(context.Context) error, net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	log.Info("metrics listening", zap.String("addr", ln.Addr().String()))
	return srv.Shutdown, ln.Addr(), nil
}
