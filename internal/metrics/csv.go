// Package metrics aggregates PAG edges into the per-epoch activity summary
// the original implementation exposes as a CSV report, grounded on
// original_source/st2/src/commands/metrics.rs.
package metrics

import (
	"encoding/csv"
	"fmt"
	"io"

	"snailtrail.dev/st2/internal/assembler"
	"snailtrail.dev/st2/internal/logformat"
	"snailtrail.dev/st2/internal/pag"
)

// csvHeader matches original_source/st2/src/commands/metrics.rs exactly.
var csvHeader = []string{
	"epoch", "from_worker", "to_worker", "activity_type",
	"#(activities)", "t(activities)", "#(records)",
}

type bucketKey struct {
	epoch        uint64
	fromWorker   logformat.WorkerID
	toWorker     logformat.WorkerID
	activityType logformat.ActivityType
}

type bucket struct {
	count    uint64
	duration int64 // nanoseconds, summed
	records  uint64
}

// CSVWriter aggregates PAG tuples into epoch buckets and writes them as CSV
// on WriteTo. Aggregation keys on (epoch+1, from_worker, to_worker,
// activity_type); the +1 retiming mirrors the original's delay_batch, kept
// here as an explicit consumer-side shift rather than a core pipeline step
// (spec §9).
type CSVWriter struct {
	buckets map[bucketKey]*bucket
}

// NewCSVWriter returns an empty CSVWriter.
func NewCSVWriter() *CSVWriter {
	return &CSVWriter{buckets: make(map[bucketKey]*bucket)}
}

// Feed folds one PAG tuple into its epoch bucket.
func (w *CSVWriter) Feed(t assembler.Tuple) {
	k := bucketKey{
		epoch:        t.Edge.Source.Epoch + 1,
		fromWorker:   t.Edge.Source.WorkerID,
		toWorker:     t.Edge.Destination.WorkerID,
		activityType: t.Edge.EdgeType,
	}
	b, ok := w.buckets[k]
	if !ok {
		b = &bucket{}
		w.buckets[k] = b
	}
	b.count++
	b.duration += int64(t.Edge.Duration())
	b.records += 2 // source + destination LogRecord
}

// WriteTo flushes the current aggregation as CSV to w, in ascending
// (epoch, from_worker, to_worker, activity_type) order.
func (w *CSVWriter) WriteTo(out io.Writer) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	keys := make([]bucketKey, 0, len(w.buckets))
	for k := range w.buckets {
		keys = append(keys, k)
	}
	sortBucketKeys(keys)

	for _, k := range keys {
		b := w.buckets[k]
		row := []string{
			fmt.Sprintf("%d", k.epoch),
			fmt.Sprintf("%d", k.fromWorker),
			fmt.Sprintf("%d", k.toWorker),
			k.activityType.String(),
			fmt.Sprintf("%d", b.count),
			fmt.Sprintf("%d", b.duration),
			fmt.Sprintf("%d", b.records),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// AggregateRow is one aggregated (epoch, from_worker, to_worker,
// activity_type) bucket - the dashboard's AGG/MET payload shape.
type AggregateRow struct {
	Epoch        uint64                  `json:"epoch"`
	FromWorker   logformat.WorkerID      `json:"from_worker"`
	ToWorker     logformat.WorkerID      `json:"to_worker"`
	ActivityType logformat.ActivityType  `json:"activity_type"`
	Activities   uint64                  `json:"activities"`
	DurationNs   int64                   `json:"duration_ns"`
	Records      uint64                  `json:"records"`
}

// AggregateEdges buckets a point-in-time snapshot of PAG edges the same way
// CSVWriter does, for callers (the dashboard's AGG/MET requests) that need an
// aggregation without a streaming Feed/WriteTo pair.
func AggregateEdges(edges []pag.Edge) []AggregateRow {
	w := NewCSVWriter()
	for _, e := range edges {
		w.Feed(assembler.Tuple{Edge: e})
	}

	keys := make([]bucketKey, 0, len(w.buckets))
	for k := range w.buckets {
		keys = append(keys, k)
	}
	sortBucketKeys(keys)

	rows := make([]AggregateRow, 0, len(keys))
	for _, k := range keys {
		b := w.buckets[k]
		rows = append(rows, AggregateRow{
			Epoch: k.epoch, FromWorker: k.fromWorker, ToWorker: k.toWorker, ActivityType: k.activityType,
			Activities: b.count, DurationNs: b.duration, Records: b.records,
		})
	}
	return rows
}

func sortBucketKeys(keys []bucketKey) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && bucketKeyLess(keys[j], keys[j-1]); j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
}

func bucketKeyLess(a, b bucketKey) bool {
	if a.epoch != b.epoch {
		return a.epoch < b.epoch
	}
	if a.fromWorker != b.fromWorker {
		return a.fromWorker < b.fromWorker
	}
	if a.toWorker != b.toWorker {
		return a.toWorker < b.toWorker
	}
	return a.activityType < b.activityType
}
