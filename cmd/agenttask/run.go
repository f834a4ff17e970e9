package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var (
		vars    []string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <id>",
		Short: "Run a stored task and print its result",
		Long: `Run executes every step of a stored task in order and prints the run
result as JSON. Values given with --var are decoded as JSON when they parse
(--var n=3 is a number, --var tags='["a"]' a list) and kept as strings
otherwise. Interrupting the command cancels the run between steps.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := parseVars(vars)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			a, err := newApp(ctx, flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			res, runErr := a.runner.Run(ctx, args[0], inputs)
			if res != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	cmd.Flags().StringArrayVar(&vars, "var", nil, "input variable as key=value (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the run after this long")
	return cmd
}
