package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	stepsTotal     *prometheus.CounterVec
	tokensTotal    *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec
	toolCallsTotal *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
	turnsTotal     *prometheus.CounterVec
	turnDuration   prometheus.Histogram
}

// NewPrometheusRecorder registers kodit's collectors with reg. A nil reg
// uses the default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		stepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kodit_model_steps_total",
				Help: "Model calls made by the tool loop, by model and finish reason",
			},
			[]string{"model", "finish_reason"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kodit_tokens_total",
				Help: "Estimated tokens exchanged with the model",
			},
			[]string{"model", "type"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kodit_model_step_duration_seconds",
				Help:    "Duration of a single model call",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model"},
		),
		toolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kodit_tool_calls_total",
				Help: "Tool executions by tool name and outcome",
			},
			[]string{"tool", "status"},
		),
		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kodit_tool_call_duration_seconds",
				Help:    "Duration of tool executions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		turnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kodit_turns_total",
				Help: "Agent turns by outcome",
			},
			[]string{"status"},
		),
		turnDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kodit_turn_duration_seconds",
				Help:    "Duration of a whole agent turn",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
	}
}

func (p *PrometheusRecorder) ObserveStep(model, finishReason string, inputTokens, outputTokens int, duration time.Duration) {
	p.stepsTotal.WithLabelValues(model, finishReason).Inc()
	p.tokensTotal.WithLabelValues(model, "input").Add(float64(inputTokens))
	p.tokensTotal.WithLabelValues(model, "output").Add(float64(outputTokens))
	p.stepDuration.WithLabelValues(model).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) ObserveToolCall(tool, status string, duration time.Duration) {
	p.toolCallsTotal.WithLabelValues(tool, status).Inc()
	p.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) ObserveTurn(status string, duration time.Duration) {
	p.turnsTotal.WithLabelValues(status).Inc()
	p.turnDuration.Observe(duration.Seconds())
}

// Serve exposes gatherer on addr at /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
