package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/seedloop/internal/corpus"
	"github.com/ppiankov/seedloop/internal/knowledge"
	"github.com/ppiankov/seedloop/internal/model"
)

// Renderer turns known facts and round reports into JSON or Markdown
type Renderer struct {
	segments corpus.SegmentLookup // Optional; fills in segment text
}

// NewRenderer creates a renderer. segments may be nil.
func NewRenderer(segments corpus.SegmentLookup) *Renderer {
	return &Renderer{segments: segments}
}

// Records converts knowledge into fact records, highest score first
func (r *Renderer) Records(ctx context.Context, k *knowledge.Knowledge) ([]model.FactRecord, error) {
	items := k.ByScore(true)
	out := make([]model.FactRecord, 0, len(items))
	for _, it := range items {
		rec := model.FactRecord{Evidence: it.Evidence, Score: it.Score.Value()}
		if r.segments != nil && it.Evidence.Grounded() {
			seg, err := r.segments.Segment(ctx, it.Evidence.Segment)
			if err != nil && !errors.Is(err, corpus.ErrSegmentNotFound) {
				return nil, err
			}
			if seg != nil {
				rec.Text = seg.Text()
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// RenderJSON writes the export as indented JSON
func (r *Renderer) RenderJSON(w io.Writer, export *model.FactsExport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(export), "encode facts")
}

// RenderMarkdown writes the export as a Markdown document
func (r *Renderer) RenderMarkdown(w io.Writer, export *model.FactsExport) error {
	var b strings.Builder

	b.WriteString("# Known Facts\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", export.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	if len(export.Facts) == 0 {
		b.WriteString("_No facts known yet._\n\n")
	} else {
		b.WriteString("| Score | Fact | Segment | Text |\n")
		b.WriteString("|------:|------|---------|------|\n")
		for _, f := range export.Facts {
			segment := "seed"
			if f.Evidence.Grounded() {
				segment = string(f.Evidence.Segment)
			}
			fmt.Fprintf(&b, "| %.2f | %s | %s | %s |\n",
				f.Score, escapeCell(f.Evidence.Fact.String()), escapeCell(segment), escapeCell(f.Text))
		}
		b.WriteString("\n")
	}

	if len(export.Reports) > 0 {
		b.WriteString("## Rounds\n\n")
		b.WriteString("| Round | Questions | Answers | Labeled | Known | Precision | Recall |\n")
		b.WriteString("|------:|----------:|--------:|--------:|------:|----------:|-------:|\n")
		for _, rep := range export.Reports {
			precision, recall := "-", "-"
			if rep.Metrics != nil {
				precision = fmt.Sprintf("%.2f", rep.Metrics.Precision)
				recall = fmt.Sprintf("%.2f", rep.Metrics.Recall)
			}
			fmt.Fprintf(&b, "| %d | %d | %d | %d | %d | %s | %s |\n",
				rep.Round, rep.Questions, rep.Answers, rep.LabeledEvidence, rep.KnownFacts, precision, recall)
		}
		b.WriteString("\n")

		last := export.Reports[len(export.Reports)-1]
		if len(last.Signals) > 0 {
			b.WriteString("## Signals\n\n")
			for _, s := range last.Signals {
				fmt.Fprintf(&b, "- **%s** (%s): %s\n", s.Type, s.Severity, s.Description)
			}
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "write markdown")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
