package csv

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snailtrail.dev/st2/internal/assembler"
	"snailtrail.dev/st2/internal/logformat"
	"snailtrail.dev/st2/internal/pag"
)

func TestFlushWritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	s := New(path)

	ctx := context.Background()
	require.NoError(t, s.Write(ctx, assembler.Tuple{
		Edge: pag.Edge{
			Source:      pag.Node{WorkerID: 0, Epoch: 1, Timestamp: 0},
			Destination: pag.Node{WorkerID: 1, Epoch: 1, Timestamp: time.Microsecond},
			EdgeType:    logformat.DataMessage,
		},
	}))
	require.NoError(t, s.Flush(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "epoch,from_worker,to_worker,activity_type")
	assert.Contains(t, string(data), "DataMessage")
}
