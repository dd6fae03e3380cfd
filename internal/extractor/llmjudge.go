package extractor

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ppiankov/seedloop/internal/cache"
	"github.com/ppiankov/seedloop/internal/corpus"
	"github.com/ppiankov/seedloop/internal/llm"
	"github.com/ppiankov/seedloop/internal/logger"
	"github.com/ppiankov/seedloop/internal/model"
	"github.com/ppiankov/seedloop/internal/worker"
)

// LLMClassifier asks a language model to judge each evidence, showing it a
// few labeled examples of the same relation
type LLMClassifier struct {
	provider llm.Provider
	model    string
	segments corpus.SegmentLookup
	relation string
	examples []llm.Example
	digest   string
	cache    cache.Cache
	ttl      time.Duration
	limiter  *worker.Limiter
	workers  int
	log      *zap.SugaredLogger
}

// PredictProba implements Classifier. Judgments run concurrently and are
// cached by prompt content.
func (c *LLMClassifier) PredictProba(ctx context.Context, evidence []model.Evidence) ([]float64, error) {
	jobs := make([]worker.Job, len(evidence))
	for i, e := range evidence {
		jobs[i] = &judgeJob{index: i, evidence: e, classifier: c}
	}

	results := worker.Run(ctx, c.workers, jobs)
	if err := worker.FirstError(results); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]float64, len(evidence))
	for _, r := range results {
		jr := r.(*judgeResult)
		out[jr.index] = jr.probability
	}
	return out, nil
}

// Predict implements Classifier
func (c *LLMClassifier) Predict(ctx context.Context, evidence []model.Evidence) ([]bool, error) {
	ps, err := c.PredictProba(ctx, evidence)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(ps))
	for i, p := range ps {
		out[i] = p > 0.5
	}
	return out, nil
}

func (c *LLMClassifier) judge(ctx context.Context, e model.Evidence) (float64, error) {
	if !e.Grounded() {
		return model.Neutral, nil
	}

	text, e1, e2, err := surface(ctx, c.segments, e)
	if err != nil {
		return 0, err
	}

	key := cache.CacheKey("judge", c.provider.Name(), c.model, c.relation, c.digest, text, e1, e2)
	var p float64
	if c.cache != nil && cache.GetJSON(c.cache, key, &p) {
		return p, nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.provider.Name()); err != nil {
			return 0, errors.Wrap(err, "rate limit")
		}
	}

	resp, err := c.provider.Judge(ctx, llm.JudgeRequest{
		Relation: c.relation,
		Text:     text,
		E1:       e1,
		E2:       e2,
		Examples: c.examples,
		Model:    c.model,
	})
	if err != nil {
		return 0, errors.Wrapf(err, "judge %s", e)
	}

	if c.cache != nil {
		if err := cache.SetJSON(c.cache, key, resp.Probability, c.ttl); err != nil {
			c.log.Debugw("Cache write failed", logger.FieldError, err)
		}
	}
	return resp.Probability, nil
}

type judgeJob struct {
	index      int
	evidence   model.Evidence
	classifier *LLMClassifier
}

func (j *judgeJob) Execute(ctx context.Context) worker.Result {
	p, err := j.classifier.judge(ctx, j.evidence)
	return &judgeResult{index: j.index, probability: p, err: err}
}

type judgeResult struct {
	index       int
	probability float64
	err         error
}

func (r *judgeResult) Err() error { return r.err }

// surface returns the segment text and the surface forms of both
// occurrences of e
func surface(ctx context.Context, segments corpus.SegmentLookup, e model.Evidence) (text, e1, e2 string, err error) {
	seg, err := segments.Segment(ctx, e.Segment)
	if err != nil {
		return "", "", "", err
	}
	n := len(seg.Occurrences)
	if e.O1 < 0 || e.O2 < 0 || e.O1 >= n || e.O2 >= n {
		return "", "", "", errors.Wrapf(ErrMalformedData, "%s: occurrence out of range", e)
	}
	span := func(o corpus.Occurrence) string {
		return strings.Join(seg.Tokens[o.Start:o.End], " ")
	}
	return seg.Text(), span(seg.Occurrences[e.O1]), span(seg.Occurrences[e.O2]), nil
}

// fewShot picks up to n examples alternating positive and negative labels,
// in training order
func fewShot(ctx context.Context, segments corpus.SegmentLookup, labeled []example, n int) ([]llm.Example, error) {
	var pos, neg []example
	for _, ex := range labeled {
		if !ex.evidence.Grounded() {
			continue
		}
		if ex.positive {
			pos = append(pos, ex)
		} else {
			neg = append(neg, ex)
		}
	}

	var picked []example
	for i := 0; len(picked) < n && (i < len(pos) || i < len(neg)); i++ {
		if i < len(pos) {
			picked = append(picked, pos[i])
		}
		if i < len(neg) && len(picked) < n {
			picked = append(picked, neg[i])
		}
	}

	out := make([]llm.Example, 0, len(picked))
	for _, ex := range picked {
		text, e1, e2, err := surface(ctx, segments, ex.evidence)
		if err != nil {
			return nil, err
		}
		out = append(out, llm.Example{Text: text, E1: e1, E2: e2, Positive: ex.positive})
	}
	return out, nil
}

func examplesDigest(examples []llm.Example) string {
	parts := make([]string, 0, len(examples)*4)
	for _, ex := range examples {
		label := "0"
		if ex.Positive {
			label = "1"
		}
		parts = append(parts, ex.Text, ex.E1, ex.E2, label)
	}
	return cache.CacheKey(parts...)
}
