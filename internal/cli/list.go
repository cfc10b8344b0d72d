package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available problems",
	Long:  `Lists every problem in the problems directory with its test suite size and submission count.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ldr := loader()
		problems, err := ldr.LoadAll()
		if err != nil {
			return err
		}

		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(problems)
		}

		if len(problems) == 0 {
			fmt.Println("No problems found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tENTRY POINT\tCOMPLEXITY\tCASES\tEDGE\tSUBMISSIONS")
		fmt.Fprintln(w, "--\t-----------\t----------\t-----\t----\t-----------")

		for _, p := range problems {
			_, ids, err := ldr.Submissions(p)
			if err != nil {
				return err
			}
			complexity := p.Complexity
			if complexity == "" {
				complexity = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
				p.ID, p.EntryPoint, complexity,
				len(p.Cases), len(p.EdgeCases()), len(ids))
		}

		return w.Flush()
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
}
