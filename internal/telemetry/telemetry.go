// Package telemetry wraps service operations with a tracing span, Prometheus
// metrics and a log line, so every service reports the same way.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sakif/prediction-league/internal/apperror"
)

const namespace = "predictionleague"

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected" // a domain precondition failed
	OutcomeError    = "error"
)

// Metrics holds the Prometheus collectors for the engine.
type Metrics struct {
	Operations        *prometheus.CounterVec
	Duration          *prometheus.HistogramVec
	PredictionsScored prometheus.Counter
	PredictionsLocked prometheus.Counter
	Recalculations    prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Service operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		PredictionsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_scored_total",
			Help:      "Predictions scored by fixture completions and corrections.",
		}),
		PredictionsLocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_locked_total",
			Help:      "Predictions locked because their fixture started or completed.",
		}),
		Recalculations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leaderboard_recalculations_total",
			Help:      "Group leaderboards recalculated.",
		}),
	}
	reg.MustRegister(m.Operations, m.Duration, m.PredictionsScored, m.PredictionsLocked, m.Recalculations)
	return m
}

// Observer instruments service operations.
type Observer struct {
	tracer  trace.Tracer
	metrics *Metrics
	logger  *slog.Logger
}

func NewObserver(tracer trace.Tracer, metrics *Metrics, logger *slog.Logger) *Observer {
	return &Observer{tracer: tracer, metrics: metrics, logger: logger}
}

// Metrics returns the collectors, for counters a service bumps directly.
func (o *Observer) Metrics() *Metrics {
	return o.metrics
}

// Observe runs fn inside a span named op and records its outcome. Domain
// errors (*apperror.AppError) count as rejections and are logged at debug;
// anything else is an error.
func (o *Observer) Observe(ctx context.Context, op string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) (err error) {
	ctx, span := o.tracer.Start(ctx, op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", op, r)
		}

		outcome := classify(err)
		o.metrics.Operations.WithLabelValues(op, outcome).Inc()
		o.metrics.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())

		switch outcome {
		case OutcomeOK:
			span.SetStatus(codes.Ok, "")
		case OutcomeRejected:
			span.SetAttributes(attribute.String("rejection", err.Error()))
			o.logger.DebugContext(ctx, "operation rejected",
				slog.String("operation", op),
				slog.String("reason", err.Error()),
			)
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.logger.ErrorContext(ctx, "operation failed",
				slog.String("operation", op),
				slog.String("error", err.Error()),
			)
		}
	}()

	return fn(ctx)
}

func classify(err error) string {
	if err == nil {
		return OutcomeOK
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return OutcomeRejected
	}
	return OutcomeError
}
