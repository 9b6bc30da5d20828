package console

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snailtrail.dev/st2/internal/assembler"
	"snailtrail.dev/st2/internal/logformat"
	"snailtrail.dev/st2/internal/pag"
)

func TestWriteTextAndJSONDoNotError(t *testing.T) {
	s := New(FormatText)
	err := s.Write(context.Background(), assembler.Tuple{
		Edge: pag.Edge{
			Source:      pag.Node{WorkerID: 0, Epoch: 1},
			Destination: pag.Node{WorkerID: 1, Epoch: 1},
			EdgeType:    logformat.DataMessage,
		},
	})
	require.NoError(t, err)

	s2 := New(FormatJSON)
	err = s2.Write(context.Background(), assembler.Tuple{})
	require.NoError(t, err)
}

func TestDefaultFormatIsText(t *testing.T) {
	s := New("").(*Sink)
	assert.Equal(t, FormatText, s.format)
}
