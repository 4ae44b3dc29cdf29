// Command assistant runs the conversational weather assistant: an HTTP
// service, an interactive chat loop, and intent model tooling.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/weather-assistant/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// options are the flags shared by every subcommand.
type options struct {
	envFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "assistant",
		Short:         "Conversational weather assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := config.LoadDotEnv(opts.envFile); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			opts.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file seeding the environment")

	root.AddCommand(
		newServeCmd(opts),
		newChatCmd(opts),
		newEvalCmd(opts),
		newTrainCmd(opts),
	)
	return root
}
