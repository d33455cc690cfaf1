package cli

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/credit-monitor/pkg/model"
	"github.com/ogulcanaydogan/credit-monitor/pkg/storage"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the stored monitor configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored monitor configuration",
	RunE:  runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	monitorCfg, err := store.GetConfig(cmd.Context())
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Println("No configuration stored. Use 'ccm setup --file monitor.yaml' to create one.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get config: %w", err)
	}

	fmt.Printf("Alert channel:     %s\n", maskChannel(monitorCfg.AlertChannel))
	fmt.Printf("Default interval:  %d minutes\n", monitorCfg.DefaultInterval)
	fmt.Printf("Fetch snippet:     %d bytes\n", len(monitorCfg.FetchSnippet))
	if len(monitorCfg.Thresholds) == 0 {
		fmt.Printf("Thresholds:        none\n")
		return nil
	}
	fmt.Printf("Thresholds:\n")
	for _, th := range monitorCfg.Thresholds {
		fmt.Printf("  <= %-10s every %d minutes\n", model.FormatUSD(th.Limit), th.Interval)
	}
	return nil
}

// maskChannel hides the secret path of a webhook URL.
func maskChannel(channel string) string {
	u, err := url.Parse(channel)
	if err != nil || u.Host == "" {
		return "****"
	}
	if u.Path == "" || u.Path == "/" {
		return u.Scheme + "://" + u.Host
	}
	return u.Scheme + "://" + u.Host + "/****"
}
