package search

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const searchInstrumentationName = "github.com/fyrsmithlabs/contextd/internal/search"

// Metrics holds rolling search statistics: per-stage latency and per-mode
// result counts, as called for by the search algorithm's design notes.
type Metrics struct {
	meter         metric.Meter
	logger        *zap.Logger
	stageDuration metric.Float64Histogram
	resultCount   metric.Int64Histogram
	partialTotal  metric.Int64Counter
}

// NewMetrics creates a Metrics instance for the search package.
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(searchInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.stageDuration, err = m.meter.Float64Histogram(
		"docusearchd.search.stage_duration_seconds",
		metric.WithDescription("Duration of each search stage, labeled by stage"),
		metric.WithUnit("s"),
	)
	if err != nil {
		m.logger.Warn("failed to create stage duration histogram", zap.Error(err))
	}

	m.resultCount, err = m.meter.Int64Histogram(
		"docusearchd.search.result_count",
		metric.WithDescription("Number of results returned, labeled by mode"),
		metric.WithUnit("{result}"),
	)
	if err != nil {
		m.logger.Warn("failed to create result count histogram", zap.Error(err))
	}

	m.partialTotal, err = m.meter.Int64Counter(
		"docusearchd.search.partial_results_total",
		metric.WithDescription("Total searches returning a partial ranking due to the deadline"),
		metric.WithUnit("{search}"),
	)
	if err != nil {
		m.logger.Warn("failed to create partial results counter", zap.Error(err))
	}
}

// RecordStage records one stage's duration.
func (m *Metrics) RecordStage(ctx context.Context, stage string, start time.Time) {
	if m.stageDuration == nil {
		return
	}
	m.stageDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordResult records the final result count and partial-ranking outcome
// for one Search call.
func (m *Metrics) RecordResult(ctx context.Context, mode Mode, count int, partial bool) {
	attrs := metric.WithAttributes(attribute.String("mode", string(mode)))
	if m.resultCount != nil {
		m.resultCount.Record(ctx, int64(count), attrs)
	}
	if partial && m.partialTotal != nil {
		m.partialTotal.Add(ctx, 1, attrs)
	}
}
