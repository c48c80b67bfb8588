// Package pipeline orchestrates a full assessment run: scenario resolution,
// transcript replay, pattern extraction, rule evaluation, judge assessment,
// memo assembly, and artifact persistence.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"dossier/internal/config"
	"dossier/internal/features"
	"dossier/internal/judge"
	"dossier/internal/logging"
	"dossier/internal/model"
	"dossier/internal/replay"
	"dossier/internal/report"
	"dossier/internal/rules"
	"dossier/internal/scenario"
	"dossier/internal/store"
	"dossier/internal/transcript"
)

// Runner holds the collaborators for one or more assessment runs. The model
// clients are injected so tests can substitute scripted backends.
type Runner struct {
	cfg      *config.Config
	target   model.Client
	judgeLLM model.Client
	writer   *store.Writer
	archive  *store.Archive
}

// Result is the in-memory outcome of a finished run. All artifacts are also
// persisted under ArtifactDir.
type Result struct {
	RunID       string
	ArtifactDir string
	Ledger      *transcript.Ledger
	Features    map[string]features.FeatureResult
	Rule        rules.RuleOutput
	Verdict     judge.Output
	Memo        report.Memo
}

// New wires a runner. The archive may be nil, in which case runs are not
// indexed.
func New(cfg *config.Config, target, judgeLLM model.Client, writer *store.Writer, archive *store.Archive) *Runner {
	return &Runner{
		cfg:      cfg,
		target:   target,
		judgeLLM: judgeLLM,
		writer:   writer,
		archive:  archive,
	}
}

// BuildClients constructs the target and judge model clients from config.
func BuildClients(ctx context.Context, cfg *config.Config) (target, judgeLLM model.Client, err error) {
	target, err = model.NewClient(ctx, &model.ProviderConfig{
		Provider:    model.Provider(cfg.Target.Provider),
		APIKey:      cfg.Target.APIKey(),
		Model:       cfg.Target.Model,
		Temperature: cfg.Target.Temperature,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("target client: %w", err)
	}
	judgeLLM, err = model.NewClient(ctx, &model.ProviderConfig{
		Provider:    model.Provider(cfg.Judge.Provider),
		APIKey:      cfg.Judge.APIKey(),
		Model:       cfg.Judge.Model,
		Temperature: cfg.Judge.Temperature,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("judge client: %w", err)
	}
	return target, judgeLLM, nil
}

// Run executes a single assessment run end to end. Scenario or configuration
// problems abort before any model call is made.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	log := logging.Get(logging.CategoryRun)

	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	tree, err := r.loadTree()
	if err != nil {
		return nil, err
	}
	path, err := tree.Resolve(r.cfg.Run.BranchLabel)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	log.Infow("run starting", "run_id", runID, "branch", r.cfg.Run.BranchLabel, "turns", len(path))

	engine := replay.NewEngine(replay.NewModelGenerator(r.target))
	ledger, err := engine.Run(ctx, path)
	if err != nil {
		return nil, err
	}

	res := &Result{RunID: runID, Ledger: ledger}

	// The deterministic track and the judge call are independent once the
	// transcript is frozen.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		extractor := features.NewExtractor(features.DefaultPatterns())
		res.Features = extractor.Extract(ledger)
		res.Rule = rules.Evaluate(res.Features)
		return nil
	})
	g.Go(func() error {
		res.Verdict = judge.NewClient(r.judgeLLM).Assess(gctx, ledger.Records())
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Memo = report.Assemble(res.Rule, res.Verdict, ledger)

	if r.writer != nil {
		if err := r.writer.WriteAll(runID, ledger, res.Features, res.Rule, res.Verdict, res.Memo); err != nil {
			return nil, err
		}
		res.ArtifactDir = r.writer.RunDir(runID)
	}
	if r.archive != nil {
		summary := store.RunSummary{
			RunID:       runID,
			BranchLabel: r.cfg.Run.BranchLabel,
			RuleFlag:    res.Rule.Flag,
			JudgeScore:  string(res.Verdict.Score),
			ValidJSON:   res.Verdict.ValidJSON,
			ArtifactDir: res.ArtifactDir,
			CreatedAt:   time.Now(),
		}
		if err := r.archive.Record(summary); err != nil {
			return nil, err
		}
	}

	log.Infow("run finished",
		"run_id", runID,
		"rule_flag", res.Rule.Flag,
		"judge_score", res.Verdict.Score,
		"valid_json", res.Verdict.ValidJSON,
	)
	return res, nil
}

func (r *Runner) loadTree() (*scenario.Tree, error) {
	if r.cfg.Run.ScenarioPath != "" {
		return scenario.LoadFile(r.cfg.Run.ScenarioPath)
	}
	return scenario.Default()
}
