package ingest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ppiankov/seedloop/internal/corpus"
	"github.com/ppiankov/seedloop/internal/logger"
	"github.com/ppiankov/seedloop/internal/worker"
)

// Ingester parses local files and remote documents into a corpus
type Ingester struct {
	parser  *Parser
	fetcher *Fetcher
	sink    corpus.Writer
	log     *zap.SugaredLogger
}

// NewIngester creates an ingester. A nil fetcher rejects URL targets.
func NewIngester(sink corpus.Writer, fetcher *Fetcher, log *zap.SugaredLogger) *Ingester {
	if log == nil {
		log = logger.Logger
	}
	return &Ingester{
		parser:  NewParser(),
		fetcher: fetcher,
		sink:    sink,
		log:     log,
	}
}

// Process ingests one target, a path or an http(s) URL, and returns the
// number of segments stored
func (i *Ingester) Process(ctx context.Context, target string) (int, error) {
	var (
		content  []byte
		document string
	)

	if isURL(target) {
		if i.fetcher == nil {
			return 0, errors.Newf("cannot fetch %s: no fetcher configured", target)
		}
		res, err := i.fetcher.FetchWithRetry(ctx, target)
		if err != nil {
			return 0, errors.Wrapf(err, "fetch %s", target)
		}
		content, document = res.Body, DocumentID(res.FinalURL)
	} else {
		data, err := os.ReadFile(target)
		if err != nil {
			return 0, errors.Wrapf(err, "read %s", target)
		}
		content, document = data, filepath.ToSlash(filepath.Clean(target))
	}

	segments, err := i.parser.Parse(bytes.NewReader(content), document)
	if err != nil {
		return 0, err
	}

	for _, seg := range segments {
		if err := i.sink.AddSegment(ctx, seg); err != nil {
			return 0, errors.Wrapf(err, "store %s", seg.ID)
		}
	}

	i.log.Debugw("Ingested document", logger.FieldPath, document, logger.FieldCount, len(segments))
	return len(segments), nil
}

// IngestAll ingests targets concurrently and returns per-target results in
// input order
func (i *Ingester) IngestAll(ctx context.Context, targets []string, workers int) []*worker.TargetResult {
	results := worker.NewBatchProcessor(i, workers).ProcessTargets(ctx, targets)

	var segments, failed int
	for _, r := range results {
		if r.Error != nil {
			failed++
			i.log.Warnw("Ingestion failed", logger.FieldPath, r.Target, logger.FieldError, r.Error)
			continue
		}
		segments += r.Segments
	}
	i.log.Infow("Ingestion finished",
		logger.FieldTotal, len(targets),
		logger.FieldCount, segments,
		"failed", failed)
	return results
}

func isURL(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}
