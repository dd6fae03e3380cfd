package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ppiankov/seedloop/internal/corpus"
	"github.com/ppiankov/seedloop/internal/logger"
	"github.com/ppiankov/seedloop/internal/model"
	"github.com/ppiankov/seedloop/internal/pipeline"
)

var (
	factsFormat string
	factsOut    string
	minScore    float64
)

// factsCmd represents the facts command
var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Export known facts and round reports",
	Long: `Facts prints the evidence accepted so far, highest score first, together
with the report of every finished round.

Example:
  seedloop facts
  seedloop facts --format md --out facts.md
  seedloop facts --min-score 0.8`,
	RunE: runFacts,
}

func init() {
	rootCmd.AddCommand(factsCmd)

	factsCmd.Flags().StringVar(&factsFormat, "format", "json", "output format (json, md)")
	factsCmd.Flags().StringVar(&factsOut, "out", "", "output path (default: stdout)")
	factsCmd.Flags().Float64Var(&minScore, "min-score", 0, "only export facts scoring at least this")
}

func runFacts(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	store, err := corpus.Open(cfg.Corpus.Path, logger.ComponentLogger("corpus"))
	if err != nil {
		return err
	}
	defer store.Close()

	export, err := buildExport(ctx, store, minScore)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if factsOut != "" {
		f, err := os.Create(factsOut)
		if err != nil {
			return errors.Wrap(err, "create output file")
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = errors.Wrap(closeErr, "close output file")
			}
		}()
		w = f
	}

	renderer := pipeline.NewRenderer(store)
	switch factsFormat {
	case "json":
		return renderer.RenderJSON(w, export)
	case "md", "markdown":
		return renderer.RenderMarkdown(w, export)
	default:
		return errors.Newf("unknown format %q (supported: json, md)", factsFormat)
	}
}

func buildExport(ctx context.Context, store *corpus.Store, threshold float64) (*model.FactsExport, error) {
	known, err := store.LoadKnowledge(ctx)
	if err != nil {
		return nil, err
	}
	records, err := pipeline.NewRenderer(store).Records(ctx, known)
	if err != nil {
		return nil, err
	}
	kept := records[:0]
	for _, r := range records {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}

	reports, err := store.LoadReports(ctx)
	if err != nil {
		return nil, err
	}
	return &model.FactsExport{
		GeneratedAt: time.Now(),
		Facts:       kept,
		Reports:     reports,
	}, nil
}
