package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/seedloop/internal/corpus"
	"github.com/ppiankov/seedloop/internal/knowledge"
	"github.com/ppiankov/seedloop/internal/model"
)

func aliceSegment() *corpus.Segment {
	return &corpus.Segment{
		ID:     "doc#0",
		Tokens: []string{"Alice", "Smith", "works", "at", "Acme", "."},
		Occurrences: []corpus.Occurrence{
			{Entity: model.Entity{Kind: "person", Key: "alice"}, Start: 0, End: 2},
			{Entity: model.Entity{Kind: "org", Key: "acme"}, Start: 4, End: 5},
		},
	}
}

func aliceEvidence() model.Evidence {
	f := model.Fact{
		E1:       model.Entity{Kind: "person", Key: "alice"},
		Relation: "works_at",
		E2:       model.Entity{Kind: "org", Key: "acme"},
	}
	return model.NewEvidence(f, "doc#0", 0, 1)
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		in   string
		want reply
	}{
		{"y", replyYes},
		{" YES ", replyYes},
		{"n", replyNo},
		{"", replySkip},
		{"s", replySkip},
		{"r", replyProcess},
		{"q", replyQuit},
		{"exit", replyQuit},
	}
	for _, tt := range tests {
		got, ok := parseReply(tt.in)
		assert.True(t, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}

	_, ok := parseReply("maybe")
	assert.False(t, ok)
}

func TestHighlight(t *testing.T) {
	assert.Equal(t, "[Alice Smith] works at [Acme] .", highlight(aliceSegment(), 0, 1))
	assert.Equal(t, "Alice Smith works at Acme .", highlight(aliceSegment(), 7, -1))
}

func TestPrompter_Ask(t *testing.T) {
	mem := corpus.NewMemoryCorpus()
	mem.AddSegment(aliceSegment())

	var out bytes.Buffer
	p := newPrompter(strings.NewReader("what\nn\n"), &out, mem)
	q := knowledge.Item{Evidence: aliceEvidence(), Score: model.Probability(0.75)}

	r, err := p.ask(context.Background(), 1, 3, q)
	require.NoError(t, err)
	assert.Equal(t, replyNo, r)

	text := out.String()
	assert.Contains(t, text, "[1/3] (person:alice, works_at, org:acme)  (score 0.75)")
	assert.Contains(t, text, "[Alice Smith] works at [Acme] .")
	assert.Contains(t, text, "Please answer y, n, s, r or q.")
}

func TestPrompter_EndOfInputQuits(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader(""), &out, corpus.NewMemoryCorpus())
	q := knowledge.Item{Evidence: aliceEvidence(), Score: model.Probability(0.5)}

	r, err := p.ask(context.Background(), 1, 1, q)
	require.NoError(t, err)
	assert.Equal(t, replyQuit, r)
	assert.Contains(t, out.String(), "(segment missing from corpus)")
}
