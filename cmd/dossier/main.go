package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dossier/internal/config"
	"dossier/internal/logging"
	"dossier/internal/pipeline"
	"dossier/internal/scenario"
	"dossier/internal/store"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Run flags
	scenarioPath string
	branchLabel  string
	outDir       string

	// Runs flags
	listLimit int
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dossier",
	Short: "dossier - scripted conversation replay and evidence assessment",
	Long: `dossier replays a scripted conversation tree against a target model,
extracts conversational patterns from the transcript, and produces two
independent assessments: a deterministic rule verdict and a model-judge
verdict. Results are assembled into a memo and archived per run.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Initialize(verbose); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

// runCmd executes a single assessment run
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay the scenario and assess the transcript",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if scenarioPath != "" {
			cfg.Run.ScenarioPath = scenarioPath
		}
		if branchLabel != "" {
			cfg.Run.BranchLabel = branchLabel
		}
		if outDir != "" {
			cfg.Storage.OutDir = outDir
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if cfg.Logging.Verbose && !verbose {
			if err := logging.Initialize(true); err != nil {
				return err
			}
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		target, judgeLLM, err := pipeline.BuildClients(ctx, cfg)
		if err != nil {
			return err
		}

		archive, err := store.OpenArchive(cfg.Storage.ArchivePath)
		if err != nil {
			return err
		}
		defer archive.Close()

		runner := pipeline.New(cfg, target, judgeLLM, store.NewWriter(cfg.Storage.OutDir), archive)
		res, err := runner.Run(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Run %s complete.\n", res.RunID)
		fmt.Printf("  Rule flag:   %v\n", res.Rule.Flag)
		fmt.Printf("  Judge score: %s (valid_json=%v)\n", res.Verdict.Score, res.Verdict.ValidJSON)
		fmt.Printf("  Artifacts:   %s\n", res.ArtifactDir)
		return nil
	},
}

// runsCmd lists archived runs
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		archive, err := store.OpenArchive(cfg.Storage.ArchivePath)
		if err != nil {
			return err
		}
		defer archive.Close()

		summaries, err := archive.List(listLimit)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No runs archived yet.")
			return nil
		}
		for _, s := range summaries {
			fmt.Printf("%s  %s  branch=%s  flag=%v  score=%s  valid_json=%v\n",
				s.CreatedAt.Format(time.RFC3339), s.RunID, s.BranchLabel,
				s.RuleFlag, s.JudgeScore, s.ValidJSON)
		}
		return nil
	},
}

// branchesCmd lists the branch labels a scenario offers
var branchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "List branch labels available in the scenario tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			tree *scenario.Tree
			err  error
		)
		if scenarioPath != "" {
			tree, err = scenario.LoadFile(scenarioPath)
		} else {
			tree, err = scenario.Default()
		}
		if err != nil {
			return err
		}
		for _, label := range tree.Labels() {
			fmt.Println(label)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario tree file (default: embedded tree)")
	runCmd.Flags().StringVar(&branchLabel, "branch", "", "Branch label to follow at decision points")
	runCmd.Flags().StringVar(&outDir, "out", "", "Artifact output directory")

	runsCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum number of runs to list")

	branchesCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario tree file (default: embedded tree)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(branchesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
