// Package wire implements the concrete framing this analyzer uses over the
// otherwise-opaque byte-framing layer (spec §1 treats framing as an external
// collaborator interface, not a specified format): one JSON object per line,
// each decoding to a Batch. File- and TCP-backed sources, and the Kafka
// source, all delegate to Reader.ReadBatch so that exactly one implementation knows
// the wire shape.
package wire

import (
	"bufio"
	"encoding/json"
	"io"
	"time"

	"snailtrail.dev/st2/internal/logformat"
	"snailtrail.dev/st2/internal/source"
	"snailtrail.dev/st2/internal/stError"
)

// wireBatch mirrors source.Batch with exported JSON-friendly field names.
type wireBatch struct {
	IsProgress     bool                    `json:"is_progress,omitempty"`
	ProgressDeltas []wireProgressDelta     `json:"progress,omitempty"`
	Epoch          uint64                  `json:"epoch"`
	Duration       int64                   `json:"duration_ns"`
	Events         []logformat.RawEvent    `json:"events,omitempty"`
}

type wireProgressDelta struct {
	Epoch    uint64 `json:"epoch"`
	Duration int64  `json:"duration_ns"`
	Delta    int64  `json:"delta"`
}

// Reader decodes a sequence of Batches from a line-delimited JSON stream.
type Reader struct {
	scanner *bufio.Scanner
	name    string
}

// NewReader wraps r, attributing decode errors to name.
func NewReader(name string, r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Reader{scanner: sc, name: name}
}

// ReadBatch returns the next decoded Batch. ok is false with a nil error at
// end of stream.
func (r *Reader) ReadBatch() (source.Batch, bool, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return source.Batch{}, false, stError.Wrap(stError.IoError, "read "+r.name, err)
		}
		return source.Batch{}, false, nil
	}

	line := r.scanner.Bytes()
	if len(line) == 0 {
		return r.ReadBatch()
	}

	var wb wireBatch
	if err := json.Unmarshal(line, &wb); err != nil {
		return source.Batch{}, false, stError.Wrap(stError.DecodeError, "decode "+r.name, err)
	}

	b := source.Batch{
		IsProgress: wb.IsProgress,
		Time:       logformat.LogicalTime{Epoch: wb.Epoch, Duration: time.Duration(wb.Duration)},
		Events:     wb.Events,
	}
	for _, pd := range wb.ProgressDeltas {
		b.ProgressDeltas = append(b.ProgressDeltas, source.ProgressDelta{
			Time:  logformat.LogicalTime{Epoch: pd.Epoch, Duration: time.Duration(pd.Duration)},
			Delta: pd.Delta,
		})
	}
	return b, true, nil
}
