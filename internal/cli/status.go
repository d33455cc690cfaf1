package cli

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/credit-monitor/pkg/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest balance and the next scheduled check",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.GetStatus(cmd.Context())
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Println("No checks yet. Use 'ccm setup' and 'ccm serve' to start monitoring.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	view := rec.View()
	fmt.Printf("Remaining balance:  %s\n", view.RemainingBalance)
	if rec.LastFetchAt.IsZero() {
		fmt.Printf("Last check:         %s\n", view.LastFetch)
	} else {
		fmt.Printf("Last check:         %s (%s)\n", view.LastFetch, humanize.Time(rec.LastFetchAt))
	}
	fmt.Printf("Next check in:      %s\n", view.NextFetchCountdown)
	if !rec.NextFetchAt.IsZero() {
		fmt.Printf("Next check at:      %s (%s)\n", view.NextFetchAt, humanize.Time(rec.NextFetchAt))
	}
	if view.LastError != "" {
		fmt.Printf("Last error:         %s\n", view.LastError)
	}
	return nil
}
