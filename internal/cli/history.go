package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/credit-monitor/pkg/model"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent balance checks",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "n", 20, "Number of checks to show")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	checks, err := store.ListChecks(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("list checks: %w", err)
	}

	if len(checks) == 0 {
		fmt.Println("No checks recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "WHEN\tTRIGGER\tBALANCE\tATTEMPTS\tNEXT\tALERT\tERROR\n")
	for _, c := range checks {
		balance := model.NotAvailable
		if c.Balance != nil {
			balance = model.FormatUSD(*c.Balance)
		}
		alert := ""
		if c.AlertFired {
			alert = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%dm\t%s\t%s\n",
			humanize.Time(c.Timestamp), c.Trigger, balance,
			c.Attempts, c.Interval, alert, c.Error,
		)
	}
	w.Flush()

	return nil
}
