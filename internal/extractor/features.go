package extractor

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/seedloop/internal/corpus"
	"github.com/ppiankov/seedloop/internal/model"
)

// featurizer maps evidence to a bag of string features: the lowercased
// tokens between the two occurrences plus a window on each side, the order
// of the occurrences and a bucketed token distance
type featurizer struct {
	segments corpus.SegmentLookup
	window   int

	mu   sync.Mutex
	memo map[model.Evidence][]string
}

func newFeaturizer(segments corpus.SegmentLookup, window int) *featurizer {
	return &featurizer{
		segments: segments,
		window:   max(0, window),
		memo:     make(map[model.Evidence][]string),
	}
}

func (f *featurizer) features(ctx context.Context, e model.Evidence) ([]string, error) {
	if !e.Grounded() {
		return nil, nil
	}

	f.mu.Lock()
	feats, ok := f.memo[e]
	f.mu.Unlock()
	if ok {
		return feats, nil
	}

	seg, err := f.segments.Segment(ctx, e.Segment)
	if err != nil {
		return nil, err
	}
	if e.O1 < 0 || e.O2 < 0 || e.O1 >= len(seg.Occurrences) || e.O2 >= len(seg.Occurrences) {
		return nil, errors.Wrapf(ErrMalformedData, "%s: occurrence out of range", e)
	}

	for _, w := range seg.Between(e.O1, e.O2, f.window) {
		feats = append(feats, "w:"+strings.ToLower(w))
	}

	a, b := seg.Occurrences[e.O1], seg.Occurrences[e.O2]
	if a.Start <= b.Start {
		feats = append(feats, "dir:forward")
	} else {
		feats = append(feats, "dir:reverse")
		a, b = b, a
	}
	feats = append(feats, "gap:"+gapBucket(b.Start-a.End))

	f.mu.Lock()
	f.memo[e] = feats
	f.mu.Unlock()
	return feats, nil
}

func (f *featurizer) all(ctx context.Context, evidence []model.Evidence) ([][]string, error) {
	out := make([][]string, len(evidence))
	for i, e := range evidence {
		feats, err := f.features(ctx, e)
		if err != nil {
			return nil, err
		}
		out[i] = feats
	}
	return out, nil
}

func gapBucket(n int) string {
	switch {
	case n <= 0:
		return "0"
	case n <= 3:
		return "1-3"
	case n <= 7:
		return "4-7"
	default:
		return "8+"
	}
}
