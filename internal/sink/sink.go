// Package sink defines the output side of the pipeline: consumers of
// finished PAG edges (spec §5).
package sink

import (
	"context"

	"snailtrail.dev/st2/internal/assembler"
)

// PagSink receives PAG tuples as they're assembled. Implementations must be
// safe for concurrent use by multiple analysis workers.
type PagSink interface {
	Name() string
	Start(ctx context.Context) error
	Write(ctx context.Context, t assembler.Tuple) error
	Flush(ctx context.Context) error
	Stop(ctx context.Context) error
}
