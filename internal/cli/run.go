package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ppiankov/seedloop/internal/cache"
	"github.com/ppiankov/seedloop/internal/corpus"
	"github.com/ppiankov/seedloop/internal/extractor"
	"github.com/ppiankov/seedloop/internal/knowledge"
	"github.com/ppiankov/seedloop/internal/llm"
	"github.com/ppiankov/seedloop/internal/logger"
	"github.com/ppiankov/seedloop/internal/model"
	"github.com/ppiankov/seedloop/internal/pipeline"
	"github.com/ppiankov/seedloop/internal/worker"
)

var (
	seedsPath         string
	goldPath          string
	questionsPerRound int
	maxRounds         int
	noPrompt          bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an interactive bootstrap session",
	Long: `Run starts the bootstrap loop over the corpus from a set of seed facts.

Each round shows the most promising candidate evidence and asks whether the
text states the fact. Answers are stored immediately, so a later run resumes
where this one stopped. Reply:

  y  the text states the fact
  n  it does not (the evidence is never accepted again)
  s  skip for now
  r  stop asking and run a round with the answers so far
  q  quit

Example:
  seedloop run --seeds seeds.yaml
  seedloop run --seeds seeds.yaml --gold gold.yaml --questions 5
  seedloop run --seeds seeds.yaml --no-prompt --rounds 3`,
	RunE: runSession,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&seedsPath, "seeds", "seeds.yaml", "YAML file with seed facts")
	runCmd.Flags().StringVar(&goldPath, "gold", "", "YAML file with labeled evidence for precision/recall")
	runCmd.Flags().IntVar(&questionsPerRound, "questions", 10, "questions asked per round")
	runCmd.Flags().IntVar(&maxRounds, "rounds", 0, "stop after this many rounds (0: until quit)")
	runCmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "process rounds without asking questions")
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seeds, err := loadSeeds(seedsPath)
	if err != nil {
		return err
	}

	store, err := corpus.Open(cfg.Corpus.Path, logger.ComponentLogger("corpus"))
	if err != nil {
		return err
	}
	defer store.Close()

	builder, err := newBuilder(cfg, store)
	if err != nil {
		return err
	}

	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	opts = append(opts,
		pipeline.WithSeeds(seeds...),
		pipeline.WithLogger(logger.ComponentLogger("pipeline")))

	if goldPath != "" {
		gold, err := loadGold(goldPath)
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithGoldStandard(gold))
	}

	prior, err := store.LoadKnowledge(ctx)
	if err != nil {
		return err
	}
	reports, err := store.LoadReports(ctx)
	if err != nil {
		return err
	}
	opts = append(opts, pipeline.WithKnowledge(prior), pipeline.WithRound(len(reports)))

	p, err := pipeline.New(ctx, store, builder, opts...)
	if err != nil {
		return err
	}

	answers, err := store.LoadAnswers(ctx)
	if err != nil {
		return err
	}
	for _, a := range answers {
		p.AddAnswer(a.Evidence, a.Positive)
	}
	if len(answers) > 0 || len(reports) > 0 {
		fmt.Fprintf(os.Stderr, "Resuming: %d answers, %d known facts, %d rounds so far\n",
			len(answers), prior.Len(), len(reports))
	}

	if err := p.Start(ctx); err != nil {
		return err
	}

	rounds := maxRounds
	if noPrompt && rounds == 0 {
		rounds = 1
	}
	s := &session{
		pipeline: p,
		store:    store,
		prompter: newPrompter(os.Stdin, os.Stdout, store),
		out:      os.Stdout,
		noPrompt: noPrompt,
		rounds:   rounds,
		perRound: questionsPerRound,
	}
	return s.loop(ctx)
}

// newBuilder wires the extractor factory. The llm algorithm also gets a
// provider, a prediction cache and a rate limiter.
func newBuilder(cfg *model.Config, segments corpus.SegmentLookup) (extractor.Builder, error) {
	ext, err := extractor.ConfigFromModel(cfg.Extractor)
	if err != nil {
		return nil, err
	}

	opts := []extractor.FactoryOption{
		extractor.WithWorkers(cfg.Concurrency.Workers),
		extractor.WithLogger(logger.ComponentLogger("extractor")),
	}

	if ext.Algorithm == extractor.LLMJudge {
		provider, err := llm.NewProvider(llm.ConfigFromModel(cfg))
		if err != nil {
			return nil, err
		}
		if provider == nil {
			return nil, errors.WithHint(
				errors.New("the llm extractor needs a provider"),
				"set llm.provider to openai, anthropic or ollama")
		}
		opts = append(opts,
			extractor.WithJudge(provider, cfg.LLM.Model),
			extractor.WithCache(cache.New(cfg.Cache, logger.ComponentLogger("cache")), cfg.Cache.TTL),
			extractor.WithLimiter(worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)))
	}

	return extractor.NewFactory(segments, opts...), nil
}

// sessionStore is the part of the corpus store a session writes to
type sessionStore interface {
	SaveAnswer(ctx context.Context, e model.Evidence, positive bool) error
	SaveKnowledge(ctx context.Context, k *knowledge.Knowledge) error
	SaveReport(ctx context.Context, r model.RoundReport) error
}

// session drives the question and answer rounds
type session struct {
	pipeline *pipeline.Pipeline
	store    sessionStore
	prompter *prompter
	out      io.Writer
	noPrompt bool
	rounds   int
	perRound int
}

func (s *session) loop(ctx context.Context) error {
	if s.perRound <= 0 {
		s.perRound = 10
	}
	for done := 0; s.rounds == 0 || done < s.rounds; done++ {
		quit := false
		if !s.noPrompt {
			var err error
			quit, err = s.askRound(ctx)
			if err != nil {
				return err
			}
		}
		if quit {
			break
		}

		fmt.Fprintln(s.out, "\n⚙️  Learning from answers...")
		if err := s.pipeline.ForceProcess(ctx); err != nil {
			return err
		}
		if err := s.persist(ctx); err != nil {
			return err
		}
	}
	s.summary()
	return nil
}

// askRound asks up to perRound questions and reports whether the human quit
func (s *session) askRound(ctx context.Context) (bool, error) {
	questions := s.pipeline.QuestionsAvailable()
	if len(questions) > s.perRound {
		questions = questions[:s.perRound]
	}
	if len(questions) == 0 {
		fmt.Fprintln(s.out, "No open questions.")
		return true, nil
	}

	for i, q := range questions {
		r, err := s.prompter.ask(ctx, i+1, len(questions), q)
		if err != nil {
			return true, err
		}
		switch r {
		case replyYes, replyNo:
			positive := r == replyYes
			s.pipeline.AddAnswer(q.Evidence, positive)
			if err := s.store.SaveAnswer(ctx, q.Evidence, positive); err != nil {
				return true, err
			}
		case replySkip:
		case replyProcess:
			return false, nil
		case replyQuit:
			return true, nil
		}
	}
	return false, nil
}

func (s *session) persist(ctx context.Context) error {
	if err := s.store.SaveKnowledge(ctx, s.pipeline.KnownFacts()); err != nil {
		return err
	}
	reports := s.pipeline.Reports()
	if len(reports) == 0 {
		return nil
	}
	last := reports[len(reports)-1]
	if err := s.store.SaveReport(ctx, last); err != nil {
		return err
	}

	fmt.Fprintf(s.out, "✓ Round %d: %d known facts, %d answers, trained %v\n",
		last.Round, last.KnownFacts, last.Answers, last.TrainedRelations)
	for _, sig := range last.Signals {
		fmt.Fprintf(s.out, "  • [%s] %s\n", sig.Severity, sig.Description)
	}
	return nil
}

func (s *session) summary() {
	fmt.Fprintf(s.out, "\nKnown facts: %d. Run 'seedloop facts' to export them.\n", s.pipeline.KnownFacts().Len())
}
