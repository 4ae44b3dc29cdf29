package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/weather-assistant/internal/domain"
	"github.com/couchcryptid/weather-assistant/internal/nlu"
)

func newTrainCmd(opts *options) *cobra.Command {
	var dataPath string
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the intent classifier and report the training set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dataPath == "" {
				dataPath = opts.cfg.IntentDataPath
			}
			clf, examples, err := nlu.Train(dataPath, opts.cfg.IntentTemperature)
			if err != nil {
				return err
			}

			counts := make(map[domain.Intent]int)
			for _, ex := range examples {
				counts[ex.Intent]++
			}

			out := cmd.OutOrStdout()
			source := dataPath
			if source == "" {
				source = "embedded"
			}
			fmt.Fprintf(out, "trained on %d examples from %s (temperature %.2f)\n\n", len(examples), source, opts.cfg.IntentTemperature)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INTENT\tEXAMPLES")
			for _, intent := range clf.Classes() {
				fmt.Fprintf(tw, "%s\t%d\n", intent, counts[intent])
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&dataPath, "data", "", "YAML training file (default: INTENT_DATA_PATH or the embedded set)")
	return cmd
}
