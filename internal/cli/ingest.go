package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ppiankov/seedloop/internal/corpus"
	"github.com/ppiankov/seedloop/internal/ingest"
	"github.com/ppiankov/seedloop/internal/logger"
	"github.com/ppiankov/seedloop/internal/worker"
)

var (
	ingestList    string
	ingestWorkers int
	ingestTimeout time.Duration
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest [file|url]...",
	Short: "Add annotated HTML documents to the corpus",
	Long: `Ingest parses annotated HTML into corpus segments.

Every <p> element, or any element carrying data-segment, becomes a segment.
Entity mentions are marked with spans:

  <p><span data-kind="person" data-key="alice">Alice</span> works at
     <span data-kind="org" data-key="acme">Acme</span>.</p>

Targets are local paths or http(s) URLs. URLs are fetched politely: robots.txt
is honored and requests are rate limited per host.

Example:
  seedloop ingest docs/*.html
  seedloop ingest https://example.com/annotated.html
  seedloop ingest --list targets.txt --workers 8`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestList, "list", "", "file with one target per line")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "concurrent ingestion workers (default: concurrency.workers)")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 30*time.Minute, "total ingestion timeout")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	targets := append([]string(nil), args...)
	if ingestList != "" {
		listed, err := worker.ReadTargetsFromFile(ingestList)
		if err != nil {
			return err
		}
		targets = append(targets, listed...)
	}
	if len(targets) == 0 {
		return errors.WithHint(errors.New("nothing to ingest"), "pass files or URLs, or --list")
	}

	workers := ingestWorkers
	if workers <= 0 {
		workers = cfg.Concurrency.Workers
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	store, err := corpus.Open(cfg.Corpus.Path, logger.ComponentLogger("corpus"))
	if err != nil {
		return err
	}
	defer store.Close()

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	fetcher := ingest.NewFetcher(cfg.HTTP, limiter)
	ingester := ingest.NewIngester(store, fetcher, logger.ComponentLogger("ingest"))

	fmt.Fprintf(os.Stderr, "⚙️  Ingesting %d targets with %d workers...\n", len(targets), workers)
	results := ingester.IngestAll(ctx, targets, workers)

	var ok, failed, segments int
	for _, r := range results {
		if r.Error != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.Target, r.Error)
			continue
		}
		ok++
		segments += r.Segments
		fmt.Fprintf(os.Stderr, "✓ %s (%d segments)\n", r.Target, r.Segments)
	}

	total, err := store.CountSegments(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "\n  Ingested: %d/%d targets, %d segments (corpus now holds %d)\n",
		ok, len(targets), segments, total)

	if failed > 0 && ok == 0 {
		return errors.Newf("all %d targets failed", failed)
	}
	return nil
}
