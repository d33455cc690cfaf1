package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/credit-monitor/pkg/model"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Validate and store a monitor configuration from a YAML file",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)

	setupCmd.Flags().StringP("file", "f", "", "Monitor configuration file (YAML)")
	_ = setupCmd.MarkFlagRequired("file")
}

func runSetup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("file")
	monitorCfg, err := model.LoadYAMLFile(path)
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SaveConfig(cmd.Context(), monitorCfg); err != nil {
		return fmt.Errorf("save configuration: %w", err)
	}

	printSetup(cmd.OutOrStdout(), monitorCfg, cfg.Server.Listen)
	return nil
}

// printSetup summarizes a saved configuration. The database write alone does
// not wake a server that has no timer armed.
func printSetup(w io.Writer, cfg *model.Configuration, listen string) {
	fmt.Fprintf(w, "Configuration saved:\n")
	fmt.Fprintf(w, "  Default interval: %d minutes\n", cfg.DefaultInterval)
	for _, th := range cfg.Thresholds {
		fmt.Fprintf(w, "  Below %-10s every %d minutes\n", model.FormatUSD(th.Limit), th.Interval)
	}
	fmt.Fprintf(w, "A running `ccm serve` with a check scheduled reads it on that check.\n")
	if strings.HasPrefix(listen, ":") {
		listen = "localhost" + listen
	}
	fmt.Fprintf(w, "If it started without a configuration, POST the same settings to http://%s/setup\n", listen)
	fmt.Fprintf(w, "(or set monitor.file) so it starts checking now; otherwise restart it.\n")
}
