// Package cmd implements the assistantctl commands.
package cmd

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rowens2025/powervisualize/internal/infrastructure/config"
	"github.com/rowens2025/powervisualize/internal/infrastructure/logger"
)

// ConfigLoader returns the configuration the commands run with
type ConfigLoader func() (*config.Config, error)

type rootOptions struct {
	loadConfig ConfigLoader
	logLevel   string
	jsonOut    bool
}

// Execute runs assistantctl with the process arguments
func Execute() error {
	return NewRootCommand(config.Load).Execute()
}

// NewRootCommand builds the command tree. load is called lazily by the
// commands that need configuration.
func NewRootCommand(load ConfigLoader) *cobra.Command {
	opts := &rootOptions{loadConfig: load}

	root := &cobra.Command{
		Use:   "assistantctl",
		Short: "Operate the portfolio assistant from the command line",
		Long: `assistantctl runs the assistant pipeline locally.

Configuration is read the same way as the server: config.toml in the
working directory, overridden by PV_* environment variables.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "JSON output")

	root.AddCommand(
		newAskCommand(opts),
		newClassifyCommand(opts),
		newStoreCommand(opts),
		newGuardCommand(opts),
	)
	return root
}

// logger writes to stderr so stdout stays machine-readable
func (o *rootOptions) logger() (*zap.Logger, error) {
	return logger.New(&logger.Config{
		Level:  o.logLevel,
		Format: "console",
		Output: "stderr",
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
