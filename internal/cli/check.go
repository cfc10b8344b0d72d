package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lemon07r/truescore/internal/pipeline"
)

var (
	checkSample    int
	checkTolerance float64
	checkResults   string
	checkJSON      bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify stored results reproduce",
	Long: `Re-runs the deterministic path for a sample of stored results and checks
that the scores reproduce within tolerance. The LLM path is never re-run:
the stored LLM scores are recombined with the fresh deterministic scores
using the weights recorded in each result.

The sample is deterministic: results are sorted by problem and submission,
and the first N are checked.

Examples:
  truescore check
  truescore check --sample 10
  truescore check --results ./old-results`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resultsDir := checkResults
		if resultsDir == "" {
			resultsDir = cfg.Harness.OutputDir
		}

		results, err := pipeline.LoadResults(resultsDir)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return fmt.Errorf("no results under %s", resultsDir)
		}

		pl := buildPipeline(false)
		checker := pipeline.NewChecker(pl, loader(), checkTolerance, logger)

		report, err := checker.Check(context.Background(), results, checkSample)
		if err != nil {
			return err
		}

		if checkJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else {
			renderReport(report)
		}

		if !report.Pass {
			return fmt.Errorf("consistency check failed: %d/%d samples inconsistent",
				report.Checked-report.Passed, report.Checked)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().IntVar(&checkSample, "sample", 5, "number of results to re-check (0 = all)")
	checkCmd.Flags().Float64Var(&checkTolerance, "tolerance", 0, "allowed score drift (default 0.005)")
	checkCmd.Flags().StringVar(&checkResults, "results", "", "results directory (default from config)")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "output report as JSON")
}

func renderReport(report *pipeline.CheckReport) {
	for _, s := range report.Samples {
		status := "OK"
		if !s.Consistent {
			status = "INCONSISTENT"
		}
		fmt.Printf("%-12s %s/%s  det %.2f -> %.2f (diff %.4f)  final %.2f -> %.2f (diff %.4f)\n",
			status, s.ProblemID, s.SubmissionID,
			s.StoredDet, s.RecomputedDet, s.DetDiff,
			s.StoredFinal, s.RecomputedFinal, s.FinalDiff)
		if s.Error != "" {
			fmt.Printf("             error: %s\n", s.Error)
		}
		if !s.IntegrityOK {
			fmt.Println("             integrity hash mismatch")
		}
		if !s.FingerprintOK && s.Error == "" {
			fmt.Println("             evidence fingerprint changed")
		}
	}

	fmt.Printf("\n%d/%d samples consistent\n", report.Passed, report.Checked)
}
