package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/park285/uci-puzzle-harness/internal/config"
	"github.com/park285/uci-puzzle-harness/internal/domain"
	"github.com/park285/uci-puzzle-harness/internal/harness"
	"github.com/park285/uci-puzzle-harness/internal/harnessbuilder"
	"github.com/park285/uci-puzzle-harness/internal/msgcat"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	EnginePath    string
	CorpusPath    string
	OutputPath    string
	MinPopularity int
	MinRating     int
	Seed          int64
	SearchTimeout time.Duration
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [count]",
		Short: "Play a seeded sample of puzzles against an engine",
		Long: `Loads the puzzle corpus, keeps puzzles at or above the popularity and rating
thresholds, samples count of them with a fixed seed and plays each one against
the engine. Results are written to a CSV table and a summary is printed.

Example:
  puzzle-harness run 50 --engine build/bin/main
  puzzle-harness run --engine ./engine --min-rating 2400 --seed 7`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.EnginePath, "engine", "", "path to the engine binary (default $ENGINE_PATH)")
	cmd.Flags().StringVar(&opts.CorpusPath, "corpus", "", "puzzle corpus CSV")
	cmd.Flags().StringVarP(&opts.OutputPath, "output", "o", "", "results CSV")
	cmd.Flags().IntVar(&opts.MinPopularity, "min-popularity", config.DefaultMinPopularity, "minimum puzzle popularity (inclusive)")
	cmd.Flags().IntVar(&opts.MinRating, "min-rating", config.DefaultMinRating, "minimum puzzle rating (inclusive)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", config.DefaultSeed, "sampling seed")
	cmd.Flags().DurationVar(&opts.SearchTimeout, "search-timeout", 0, "fail the run if one search takes longer (0 disables)")

	return cmd
}

// parseCount reads the positional count. ok is false when raw is not an integer.
func parseCount(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return config.DefaultPuzzleCount, false
	}
	return n, true
}

// applyFlags overrides cfg with every flag the user actually set.
func (o *RunOptions) applyFlags(cmd *cobra.Command, cfg *config.AppConfig) {
	f := cmd.Flags()
	if f.Changed("engine") {
		cfg.EnginePath = o.EnginePath
	}
	if f.Changed("corpus") {
		cfg.CorpusPath = o.CorpusPath
	}
	if f.Changed("output") {
		cfg.OutputPath = o.OutputPath
	}
	if f.Changed("min-popularity") {
		cfg.MinPopularity = o.MinPopularity
	}
	if f.Changed("min-rating") {
		cfg.MinRating = o.MinRating
	}
	if f.Changed("seed") {
		cfg.Seed = o.Seed
	}
	if f.Changed("search-timeout") {
		cfg.SearchTimeout = o.SearchTimeout
	}
}

func runBatch(cmd *cobra.Command, opts *RunOptions, args []string) error {
	logger, err := opts.logger()
	if err != nil {
		return WrapExitError(ExitCommandError, "init logger", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	opts.applyFlags(cmd, cfg)

	messages, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "load messages", err)
	}
	if len(args) == 1 {
		n, ok := parseCount(args[0])
		if !ok {
			warn, _ := messages.Render("warn.invalid_count", map[string]any{"Raw": args[0], "Default": n})
			fmt.Fprintln(cmd.ErrOrStderr(), warn)
		}
		cfg.PuzzleCount = n
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := harnessbuilder.New(ctx, cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "init stores", err)
	}
	defer func() {
		if cerr := deps.Close(); cerr != nil {
			logger.Warn("stores_close", zap.Error(cerr))
		}
	}()

	run, err := harness.RunBatch(ctx, harnessbuilder.BatchConfig(cfg), harnessbuilder.Launcher(cfg, logger), logger)
	if err != nil {
		code := domain.CodeOf(err)
		logger.Error("run_failed",
			zap.String("run_id", run.ID),
			zap.Int("played", run.Total),
			zap.String("code", code),
			zap.Error(err),
		)
		if code == domain.CodeCorpusMalformed {
			return WrapExitError(ExitCommandError, "puzzle corpus rejected", err)
		}
		return WrapExitError(ExitFailure, "puzzle run failed", err)
	}
	if err := deps.Publish(ctx, run); err != nil {
		return WrapExitError(ExitFailure, "publish results", err)
	}

	return printSummary(cmd, deps.Messages, run.Solved, run.Total, run.Percent())
}

func printSummary(cmd *cobra.Command, messages *msgcat.Catalog, solved, total int, percent float64) error {
	data := map[string]any{"Solved": solved, "Total": total, "Percent": percent}
	for _, key := range []string{"summary.solved", "summary.rate"} {
		line, err := messages.Render(key, data)
		if err != nil {
			return WrapExitError(ExitFailure, "render summary", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
