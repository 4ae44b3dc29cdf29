package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/weather-assistant/internal/config"
	"github.com/couchcryptid/weather-assistant/internal/observability"
)

func newChatCmd(opts *options) *cobra.Command {
	var (
		verbose bool
		logged  bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in a terminal session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := observability.DiscardLogger()
			if verbose {
				logger = observability.NewLogger(opts.cfg.LogLevel, "text")
			}
			sinks := []string{config.SinkNone}
			if logged {
				sinks = nil
			}
			a, err := newApp(opts.cfg, sinks, logger, observability.NewMetrics())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			drained := a.runPipeline(ctx)
			defer func() {
				cancel()
				<-drained
			}()
			return chat(ctx, a, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "emit service logs")
	cmd.Flags().BoolVar(&logged, "log-interactions", false, "send turns to the configured interaction sinks")
	return cmd
}

// chat runs a read-reply loop over one session until EOF or "quit".
func chat(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	sessionID := uuid.NewString()
	fmt.Fprintf(out, "session %s. Ask about the weather, or type quit.\n", sessionID)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(text) {
		case "":
			continue
		case "quit", "exit":
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		res := a.service.Handle(ctx, sessionID, text)
		fmt.Fprintf(out, "  [%s %.2f] location=%q datetime=%q units=%q\n",
			res.Intent, res.Confidence, res.Entities.Location, res.Entities.DateTime, res.Entities.Units)
		fmt.Fprintf(out, "bot> %s\n", res.Reply)
	}
}
