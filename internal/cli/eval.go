package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lemon07r/truescore/internal/pipeline"
	"github.com/lemon07r/truescore/internal/problem"
)

var (
	evalNoLLM   bool
	evalWorkers int
	evalOutput  string
	evalJSON    bool
)

var evalCmd = &cobra.Command{
	Use:   "eval [problem [submission]]",
	Short: "Evaluate submissions against their problems",
	Long: `Evaluates submissions through the full grading pipeline and writes one
result file per evaluation to the output directory.

With no arguments, every submission of every problem is evaluated. A problem
id limits the run to that problem; a submission id limits it to one
submission.

Examples:
  truescore eval
  truescore eval two-sum
  truescore eval two-sum alice
  truescore eval --no-llm --workers 8`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		jobs, err := collectJobs(args)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			return fmt.Errorf("no submissions to evaluate")
		}

		pl := buildPipeline(!evalNoLLM)

		workers := evalWorkers
		if workers <= 0 {
			workers = cfg.Harness.Workers
		}

		outputDir := evalOutput
		if outputDir == "" {
			outputDir = cfg.Harness.OutputDir
		}

		outcomes := pl.EvaluateAll(ctx, jobs, workers)

		var failed int
		var results []*pipeline.Result
		for _, out := range outcomes {
			if out.Err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "FAILED %s/%s: %v\n", out.Job.Problem.ID, out.Job.SubmissionID, out.Err)
				continue
			}
			if _, err := out.Result.Save(outputDir); err != nil {
				return err
			}
			results = append(results, out.Result)
		}

		if evalJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return err
			}
		} else {
			renderResults(results, outputDir)
		}

		if failed > 0 {
			return fmt.Errorf("%d evaluation(s) failed", failed)
		}
		return nil
	},
}

func init() {
	evalCmd.Flags().BoolVar(&evalNoLLM, "no-llm", false, "deterministic scoring only, skip the judge panel")
	evalCmd.Flags().IntVar(&evalWorkers, "workers", 0, "concurrent evaluations (default from config)")
	evalCmd.Flags().StringVar(&evalOutput, "output", "", "results directory (default from config)")
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "output results as JSON")
}

// collectJobs resolves the positional filters into concrete evaluation jobs.
func collectJobs(args []string) ([]pipeline.Job, error) {
	ldr := loader()

	var problems []*problem.Problem
	if len(args) >= 1 {
		p, err := ldr.Load(args[0])
		if err != nil {
			return nil, err
		}
		problems = []*problem.Problem{p}
	} else {
		var err error
		problems, err = ldr.LoadAll()
		if err != nil {
			return nil, err
		}
	}

	var jobs []pipeline.Job
	for _, p := range problems {
		_, ids, err := ldr.Submissions(p)
		if err != nil {
			return nil, err
		}
		if len(args) == 2 {
			ids = []string{args[1]}
		}
		for _, id := range ids {
			source, err := ldr.ReadSubmission(p, id)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, pipeline.Job{Problem: p, SubmissionID: id, Source: source})
		}
	}

	return jobs, nil
}

// renderResults prints a summary table followed by detail blocks for any
// evaluation that carries flags or warnings.
func renderResults(results []*pipeline.Result, outputDir string) {
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROBLEM\tSUBMISSION\tTESTS\tDET\tLLM\tFINAL\tFLAGS")
	fmt.Fprintln(w, "-------\t----------\t-----\t---\t---\t-----\t-----")
	for _, r := range results {
		llmCol := "-"
		if r.LLMAvailable {
			llmCol = fmt.Sprintf("%.2f", r.LLMScore)
		}
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%.2f\t%s\t%.2f\t%d\n",
			r.ProblemID, r.SubmissionID,
			r.Suite.Passed, r.Suite.Total,
			r.DeterministicScore, llmCol, r.FinalScore, len(r.Flags))
	}
	_ = w.Flush()

	for _, r := range results {
		if len(r.Flags) == 0 && len(r.Warnings) == 0 && !r.Suite.TimedOut && !r.Suite.CapabilityViolation {
			continue
		}
		fmt.Printf("\n%s/%s:\n", r.ProblemID, r.SubmissionID)
		if r.Suite.TimedOut {
			fmt.Println("  verdict: timed out")
		}
		if r.Suite.CapabilityViolation {
			fmt.Printf("  verdict: capability violation (%s)\n", r.Suite.Capability)
		}
		for _, f := range r.Flags {
			fmt.Printf("  flag [%s]: %s\n", f.Rule, f.Reason)
		}
		for _, warning := range r.Warnings {
			fmt.Printf("  warning: %s\n", warning)
		}
		if r.BlendReason != "" {
			fmt.Printf("  blend: %s (det %.2f / llm %.2f)\n", r.BlendReason, r.DetWeight, r.LLMWeight)
		}
		if len(r.SubstitutedDims) > 0 {
			fmt.Printf("  substituted dims: %s\n", strings.Join(r.SubstitutedDims, ", "))
		}
	}

	fmt.Printf("\nResults saved to: %s\n", outputDir)
}
