// Package observability provides OTel metric instruments and the Prometheus
// scrape endpoint for the pgmedian CLI.
package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricValuesTotal   = "pgmedian.values.total"
	metricNullsTotal    = "pgmedian.nulls.total"
	metricGrowthsTotal  = "pgmedian.buffer.growths.total"
	metricMedianReads   = "pgmedian.median.reads.total"
	metricSnapshotBytes = "pgmedian.snapshot.bytes"

	attrOp    = "op"
	attrClass = "class"

	opInsert = "insert"
	opRemove = "remove"
)

// snapshotBucketBoundaries covers snapshot sizes from a fresh 64-slot state
// to multi-megabyte text accumulations.
var snapshotBucketBoundaries = []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304}

// StreamMetrics holds the OTel instruments for accumulator stream activity.
type StreamMetrics struct {
	valuesTotal   metric.Int64Counter
	nullsTotal    metric.Int64Counter
	growthsTotal  metric.Int64Counter
	medianReads   metric.Int64Counter
	snapshotBytes metric.Int64Histogram
}

// NewStreamMetrics creates the stream metric instruments from the given meter.
func NewStreamMetrics(mt metric.Meter) (*StreamMetrics, error) {
	b := newMetricBuilder(mt)

	sm := &StreamMetrics{
		valuesTotal:   b.counter(metricValuesTotal, "Total number of values accumulated or removed", "{value}"),
		nullsTotal:    b.counter(metricNullsTotal, "Total number of null inputs discarded", "{value}"),
		growthsTotal:  b.counter(metricGrowthsTotal, "Total number of buffer capacity growths", "{growth}"),
		medianReads:   b.counter(metricMedianReads, "Total number of median read-outs", "{read}"),
		snapshotBytes: b.histogram(metricSnapshotBytes, "Size of written state snapshots in bytes", "By", snapshotBucketBoundaries...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return sm, nil
}

// RecordInsert records one accumulated value of the given class.
func (sm *StreamMetrics) RecordInsert(ctx context.Context, class string) {
	sm.valuesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOp, opInsert),
		attribute.String(attrClass, class),
	))
}

// RecordRemove records one value leaving a sliding window.
func (sm *StreamMetrics) RecordRemove(ctx context.Context, class string) {
	sm.valuesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOp, opRemove),
		attribute.String(attrClass, class),
	))
}

// RecordNull records a discarded null input.
func (sm *StreamMetrics) RecordNull(ctx context.Context) {
	sm.nullsTotal.Add(ctx, 1)
}

// RecordGrowth records a buffer capacity growth.
func (sm *StreamMetrics) RecordGrowth(ctx context.Context) {
	sm.growthsTotal.Add(ctx, 1)
}

// RecordMedianRead records a finalize call.
func (sm *StreamMetrics) RecordMedianRead(ctx context.Context) {
	sm.medianReads.Add(ctx, 1)
}

// RecordSnapshotSize records the byte size of a written state snapshot.
func (sm *StreamMetrics) RecordSnapshotSize(ctx context.Context, size int64) {
	sm.snapshotBytes.Record(ctx, size)
}
