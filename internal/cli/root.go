package cli

import (
	"github.com/park285/uci-puzzle-harness/internal/obslog"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	ConfigPath string
}

// NewRootCommand creates the root command for the puzzle harness CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "puzzle-harness",
		Short: "Test a UCI engine against rated tactical puzzles",
		Long: `Drives a UCI chess engine through a sample of puzzles from a Lichess-style
corpus and reports how many the engine solved move for move.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log every state transition")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML config file (default $HARNESS_CONFIG)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// logger installs the global logger from LOG_* env vars, forcing debug when verbose.
func (o *RootOptions) logger() (*zap.Logger, error) {
	lo := obslog.OptionsFromEnv()
	if o.Verbose {
		lo.Level = "debug"
	}
	return obslog.Init(lo)
}
