package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lemon07r/truescore/internal/pipeline"
)

var (
	watchNoLLM  bool
	watchOutput string
)

var watchCmd = &cobra.Command{
	Use:   "watch <problem>",
	Short: "Re-evaluate submissions on change",
	Long: `Watches a problem's submissions directory and re-runs the pipeline for
each submission as it changes. Useful as a feedback loop while iterating on
a solution.

Examples:
  truescore watch two-sum
  truescore watch two-sum --no-llm`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ldr := loader()
		p, err := ldr.Load(args[0])
		if err != nil {
			return err
		}

		pl := buildPipeline(!watchNoLLM)

		outputDir := watchOutput
		if outputDir == "" {
			outputDir = cfg.Harness.OutputDir
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			select {
			case <-sigCh:
				fmt.Fprintln(os.Stderr, "\nReceived interrupt, stopping...")
				cancel()
			case <-ctx.Done():
			}
		}()

		evaluate := func(submissionID string) {
			source, err := ldr.ReadSubmission(p, submissionID)
			if err != nil {
				logger.Warn("skipping submission", "submission", submissionID, "error", err)
				return
			}
			res, err := pl.Evaluate(ctx, p, submissionID, source)
			if err != nil {
				logger.Error("evaluation failed", "submission", submissionID, "error", err)
				return
			}
			if _, err := res.Save(outputDir); err != nil {
				logger.Error("saving result", "submission", submissionID, "error", err)
				return
			}
			renderResults([]*pipeline.Result{res}, outputDir)
		}

		// Evaluate everything once up front so the first change has a baseline.
		_, ids, err := ldr.Submissions(p)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if ctx.Err() != nil {
				break
			}
			evaluate(id)
		}

		subDir := filepath.Join(p.Dir, "submissions")
		fmt.Printf("\nWatching %s for changes (ctrl-c to stop)...\n", subDir)

		watcher := pipeline.NewWatcher(subDir, 500*time.Millisecond, evaluate, logger)
		if err := watcher.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchNoLLM, "no-llm", false, "deterministic scoring only, skip the judge panel")
	watchCmd.Flags().StringVar(&watchOutput, "output", "", "results directory (default from config)")
}
