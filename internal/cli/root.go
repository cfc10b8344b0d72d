// Package cli provides the command-line interface for TrueScore.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lemon07r/truescore/internal/agent"
	"github.com/lemon07r/truescore/internal/analysis"
	"github.com/lemon07r/truescore/internal/config"
	"github.com/lemon07r/truescore/internal/llm"
	"github.com/lemon07r/truescore/internal/pipeline"
	"github.com/lemon07r/truescore/internal/problem"
	"github.com/lemon07r/truescore/internal/sandbox"
	"github.com/lemon07r/truescore/internal/testrun"
)

var (
	cfgFile     string
	problemsDir string
	verbose     bool
	cfg         *config.Config
	logger      *slog.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "truescore",
	Short: "Evidence-grounded grading harness for code submissions",
	Long: `TrueScore grades Python submissions against fixed test suites and an
explicit rubric, combining a deterministic scoring engine with a panel of
LLM judges whose claims are audited against the execution evidence.

Pipeline per submission:
  - Sandboxed execution of the problem's test suite
  - Static analysis (linter findings, structural metrics)
  - Deterministic rubric scores from the evidence bundle
  - Specialized LLM judges, merged by consensus
  - Hallucination audit of every LLM claim against the evidence
  - Weighted blend into one final score, with full provenance`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for help
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		// Setup logger
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))

		// Credentials may live in a local .env
		_ = godotenv.Load()

		// Load config
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg.Validate(logger)

		if problemsDir != "" {
			cfg.Harness.ProblemsDir = problemsDir
		}

		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./truescore.toml)")
	rootCmd.PersistentFlags().StringVar(&problemsDir, "problems-dir", "", "problems directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

// buildPipeline assembles the evaluation pipeline from the loaded config.
// withLLM=false forces deterministic-only regardless of config.
func buildPipeline(withLLM bool) *pipeline.Pipeline {
	executor := sandbox.NewExecutor(cfg.Sandbox.Python, cfg.Sandbox.SafeImports, logger)
	runner := testrun.NewRunner(executor,
		time.Duration(cfg.Sandbox.TimeoutSeconds)*time.Second,
		time.Duration(cfg.Sandbox.BudgetSeconds)*time.Second,
		logger)
	linter := analysis.NewLinter(cfg.Linter.Command, cfg.Linter.Args,
		time.Duration(cfg.Linter.TimeoutSeconds)*time.Second, logger)

	var judges []*agent.Judge
	if withLLM && cfg.LLM.Enabled {
		client := llm.NewClient(cfg.LLM.BaseURL, cfg.APIKey(),
			time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)
		router := llm.NewRouter(client, cfg.LLM.Models, cfg.LLM.Attempts,
			time.Duration(cfg.LLM.BackoffMillis)*time.Millisecond, logger)
		router.MaxTokens = cfg.LLM.MaxTokens
		router.Temperature = cfg.LLM.Temperature
		judges = []*agent.Judge{
			agent.NewTestDesigner(router, logger),
			agent.NewCodeReviewer(router, logger),
			agent.NewComplexityAnalyst(router, logger),
		}
	}

	return pipeline.New(cfg, runner, linter, judges, logger)
}

// loader returns the problem loader for the configured problems directory.
func loader() *problem.Loader {
	return problem.NewLoader(cfg.Harness.ProblemsDir)
}

// Version information (set by build flags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("truescore version %s\n", Version)
		fmt.Printf("  commit: %s\n", Commit)
		fmt.Printf("  built:  %s\n", BuildDate)
	},
}
