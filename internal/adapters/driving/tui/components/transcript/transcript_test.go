package transcript

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestTranscript_Empty(t *testing.T) {
	tr := New(nil)

	assert.Contains(t, tr.Render(), "Ask a question")
	assert.Empty(t, tr.Exchanges())
}

func TestTranscript_Pending(t *testing.T) {
	tr := New(nil)

	tr.Ask("where is the office?")

	out := tr.Render()
	assert.Contains(t, out, "where is the office?")
	assert.Contains(t, out, "...")
}

func TestTranscript_AppendRendersSources(t *testing.T) {
	tr := New(nil)
	tr.SetDimensions(100, 20)

	tr.Ask("q")
	tr.Append(Exchange{
		Question: "q",
		Answer:   "The office is in Lisbon.",
		Sources: []domain.Source{
			{DocumentID: "offices", ChunkID: "offices:2", Filename: "offices.md", Score: 0.83},
			{DocumentID: "travel", ChunkID: "travel:0", Score: 0.61},
		},
	})

	out := tr.Render()
	assert.Contains(t, out, "The office is in Lisbon.")
	assert.Contains(t, out, "[1] offices.md (offices:2)")
	assert.Contains(t, out, "0.83")
	assert.Contains(t, out, "[2] travel (travel:0)")
	assert.NotContains(t, out, "...")
	assert.Len(t, tr.Exchanges(), 1)
}

func TestTranscript_AppendError(t *testing.T) {
	tr := New(nil)

	tr.Append(Exchange{Question: "q", Err: fmt.Errorf("%w: timeout", domain.ErrUpstreamUnavailable)})

	assert.Contains(t, tr.Render(), "error [upstream_unavailable]")
}

func TestTranscript_Clear(t *testing.T) {
	tr := New(nil)
	tr.Append(Exchange{Question: "q", Answer: "a"})

	tr.Clear()

	assert.Empty(t, tr.Exchanges())
	assert.Contains(t, tr.Render(), "Ask a question")
}
