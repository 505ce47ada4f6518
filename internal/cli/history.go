package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/park285/uci-puzzle-harness/internal/config"
	"github.com/park285/uci-puzzle-harness/internal/domain"
	"github.com/park285/uci-puzzle-harness/internal/harnessbuilder"
	"github.com/park285/uci-puzzle-harness/internal/msgcat"
	"github.com/park285/uci-puzzle-harness/internal/store"
	"github.com/spf13/cobra"
)

type HistoryOptions struct {
	*RootOptions
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recent runs, or the results of one run",
		Long: `Without arguments, lists the most recent runs from the SQL repository
(DATABASE_URL) or, if none is configured, the Redis index (REDIS_URL).

With a run id, prints that run's results table from the repository, or the
puzzles it failed from the Redis index.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(cmd, opts, args)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 10, "number of runs to list")

	return cmd
}

func showHistory(cmd *cobra.Command, opts *HistoryOptions, args []string) error {
	logger, err := opts.logger()
	if err != nil {
		return WrapExitError(ExitCommandError, "init logger", err)
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	messages, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "load messages", err)
	}

	ctx := commandContext(cmd)
	deps, err := harnessbuilder.OpenStores(ctx, cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "open stores", err)
	}
	defer deps.Close()

	out := cmd.OutOrStdout()
	switch {
	case deps.Repo == nil && deps.Index == nil:
		return WrapExitError(ExitCommandError, "no run store configured", errors.New("set DATABASE_URL or REDIS_URL"))

	case len(args) == 1 && deps.Repo != nil:
		results, err := deps.Repo.Results(ctx, args[0])
		if err != nil {
			return WrapExitError(ExitFailure, "load run "+args[0], err)
		}
		return store.WriteResults(out, results)

	case len(args) == 1:
		failed, err := deps.Index.FailedPuzzles(ctx, args[0])
		if err != nil {
			return WrapExitError(ExitFailure, "load run "+args[0], err)
		}
		for _, id := range failed {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	var runs []domain.Run
	if deps.Repo != nil {
		runs, err = deps.Repo.RecentRuns(ctx, opts.Limit)
	} else {
		runs, err = deps.Index.RecentRuns(ctx, opts.Limit)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "list runs", err)
	}
	return printRuns(out, messages, runs)
}

func printRuns(w io.Writer, messages *msgcat.Catalog, runs []domain.Run) error {
	if len(runs) == 0 {
		line, err := messages.Render("history.empty", nil)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, line)
		return nil
	}
	header, err := messages.Render("history.header", nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, header)
	for _, run := range runs {
		line, err := messages.Render("history.row", map[string]any{
			"ID":        run.ID,
			"StartedAt": run.StartedAt.UTC().Format("2006-01-02 15:04:05"),
			"Solved":    run.Solved,
			"Total":     run.Total,
			"Percent":   run.Percent(),
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
