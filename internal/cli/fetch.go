package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/credit-monitor/pkg/model"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one balance check now and print the result",
	RunE:  runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := initApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// One-shot: the check must not leave a timer behind.
	a.sched.Stop()

	rec, err := a.monitor.ManualFetch(cmd.Context())
	if err != nil {
		return err
	}

	if !rec.Success {
		return fmt.Errorf("check failed after %d attempts: %s", rec.Attempts, rec.Error)
	}

	fmt.Printf("Balance:        %s\n", model.FormatUSD(*rec.Balance))
	fmt.Printf("Attempts:       %d\n", rec.Attempts)
	fmt.Printf("Next interval:  %d minutes\n", rec.Interval)
	if rec.AlertFired {
		fmt.Printf("Alert sent:     yes\n")
	}
	return nil
}
