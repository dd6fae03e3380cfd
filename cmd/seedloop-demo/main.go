// Demo program that runs a few bootstrap rounds over a built-in corpus.
// Questions are answered by a fixed list of true facts instead of a human.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/seedloop/internal/corpus"
	"github.com/ppiankov/seedloop/internal/extractor"
	"github.com/ppiankov/seedloop/internal/ingest"
	"github.com/ppiankov/seedloop/internal/model"
	"github.com/ppiankov/seedloop/internal/pipeline"
)

const document = `<html><body>
<p><span data-kind="person" data-key="alice">Alice</span> works at <span data-kind="org" data-key="acme">Acme</span> .</p>
<p><span data-kind="person" data-key="bob">Bob</span> works at <span data-kind="org" data-key="globex">Globex</span> .</p>
<p><span data-kind="person" data-key="carol">Carol</span> works at <span data-kind="org" data-key="initech">Initech</span> .</p>
<p><span data-kind="person" data-key="dave">Dave</span> visited <span data-kind="org" data-key="acme">Acme</span> once .</p>
<p><span data-kind="person" data-key="erin">Erin</span> sued <span data-kind="org" data-key="globex">Globex</span> last year .</p>
<p><span data-kind="person" data-key="frank">Frank</span> works at <span data-kind="org" data-key="hooli">Hooli</span> .</p>
</body></html>`

const rounds = 3

var truth = map[string]bool{
	"alice/acme":    true,
	"bob/globex":    true,
	"carol/initech": true,
	"frank/hooli":   true,
}

func worksAt(person, org string) model.Fact {
	return model.Fact{
		E1:       model.Entity{Kind: "person", Key: person},
		Relation: "works_at",
		E2:       model.Entity{Kind: "org", Key: org},
	}
}

func main() {
	fmt.Println("=== Bootstrap Demo ===")
	fmt.Println()

	ctx := context.Background()

	segments, err := ingest.NewParser().ParseString(document, "demo")
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse: %v\n", err)
		os.Exit(1)
	}
	mem := corpus.NewMemoryCorpus()
	for _, seg := range segments {
		mem.AddSegment(seg)
	}
	fmt.Printf("Corpus: %d segments\n", len(segments))

	p, err := pipeline.New(ctx, mem, extractor.NewFactory(mem),
		pipeline.WithSeeds(worksAt("alice", "acme")),
		pipeline.WithPrediction(extractor.Probabilistic, 0, 1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "pipeline: %v\n", err)
		os.Exit(1)
	}
	if err := p.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "start: %v\n", err)
		os.Exit(1)
	}

	for round := 1; round <= rounds; round++ {
		fmt.Printf("\nRound %d\n", round)
		fmt.Println(strings.Repeat("-", 60))

		questions := p.QuestionsAvailable()
		if len(questions) > 2 {
			questions = questions[:2]
		}
		for _, q := range questions {
			f := q.Evidence.Fact
			positive := truth[f.E1.Key+"/"+f.E2.Key]
			p.AddAnswer(q.Evidence, positive)
			mark := "✗"
			if positive {
				mark = "✓"
			}
			fmt.Printf("  %s %s (score %.2f)\n", mark, f, q.Score.Value())
		}

		if err := p.ForceProcess(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "round %d: %v\n", round, err)
			os.Exit(1)
		}
		reports := p.Reports()
		last := reports[len(reports)-1]
		fmt.Printf("  Known facts: %d, trained: %v, skipped: %v\n",
			last.KnownFacts, last.TrainedRelations, last.SkippedRelations)
	}

	fmt.Println("\nKnown facts:")
	for _, item := range p.KnownFacts().ByScore(true) {
		fmt.Printf("  %.2f  %s\n", item.Score.Value(), item.Evidence)
	}

	fmt.Println("\n=== Demo Complete ===")
}
