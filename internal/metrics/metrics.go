package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/innernet/server/internal/net/packet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector counts dispatcher traffic. It implements game.Metrics.
type Collector struct {
	subMessages *prometheus.CounterVec
	anomalies   *prometheus.CounterVec
	gatherer    prometheus.Gatherer
}

// New registers the collector's metrics with reg.
func New(reg *prometheus.Registry) *Collector {
	c := &Collector{
		subMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "innernet",
				Subsystem: "gamedata",
				Name:      "messages_total",
				Help:      "Game data sub-messages dispatched, by tag.",
			},
			[]string{"tag"},
		),
		anomalies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "innernet",
				Subsystem: "gamedata",
				Name:      "anomalies_total",
				Help:      "Game data sub-messages skipped or partially applied, by reason.",
			},
			[]string{"reason"},
		),
		gatherer: reg,
	}
	reg.MustRegister(c.subMessages, c.anomalies)
	return c
}

// RegisterGauge exposes a value sampled at scrape time, such as the live
// game count.
func RegisterGauge(reg prometheus.Registerer, name, help string, fn func() float64) {
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "innernet",
			Name:      name,
			Help:      help,
		},
		fn,
	))
}

func (c *Collector) SubMessage(tag packet.GameDataTag) {
	c.subMessages.WithLabelValues(tag.String()).Inc()
}

func (c *Collector) Anomaly(reason string) {
	c.anomalies.WithLabelValues(reason).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
