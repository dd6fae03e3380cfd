package worker

import (
	"bufio"
	"context"
	"os"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// Processor ingests one target, a file path or URL, and reports how many
// segments it produced
type Processor interface {
	Process(ctx context.Context, target string) (int, error)
}

// TargetJob processes a single target
type TargetJob struct {
	Index     int
	Target    string
	Processor Processor
}

// Execute runs the processor for the job's target
func (j *TargetJob) Execute(ctx context.Context) Result {
	n, err := j.Processor.Process(ctx, j.Target)
	return &TargetResult{Index: j.Index, Target: j.Target, Segments: n, Error: err}
}

// TargetResult is the outcome of one target
type TargetResult struct {
	Index    int
	Target   string
	Segments int
	Error    error
}

// Err returns the processing error
func (r *TargetResult) Err() error {
	return r.Error
}

// BatchProcessor processes many targets concurrently
type BatchProcessor struct {
	processor   Processor
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(processor Processor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
	}
}

// ProcessTargets processes targets and returns results in input order
func (b *BatchProcessor) ProcessTargets(ctx context.Context, targets []string) []*TargetResult {
	if len(targets) == 0 {
		return []*TargetResult{}
	}

	jobs := make([]Job, len(targets))
	for i, target := range targets {
		jobs[i] = &TargetJob{Index: i, Target: target, Processor: b.processor}
	}

	results := Run(ctx, b.concurrency, jobs)

	out := make([]*TargetResult, 0, len(results))
	for _, r := range results {
		out = append(out, r.(*TargetResult))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// ProcessFile reads targets from a list file and processes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, listPath string) ([]*TargetResult, error) {
	targets, err := ReadTargetsFromFile(listPath)
	if err != nil {
		return nil, errors.Wrap(err, "read targets")
	}
	return b.ProcessTargets(ctx, targets), nil
}

// ReadTargetsFromFile reads one target per line. Blank lines and lines
// starting with # are skipped and duplicates are dropped.
func ReadTargetsFromFile(listPath string) ([]string, error) {
	file, err := os.Open(listPath)
	if err != nil {
		return nil, errors.Wrap(err, "open file")
	}
	defer func() { _ = file.Close() }()

	var targets []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			targets = append(targets, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan file")
	}

	return targets, nil
}
