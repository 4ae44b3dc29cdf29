package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/weather-assistant/internal/nlu"
)

func newEvalCmd(opts *options) *cobra.Command {
	var (
		dataPath    string
		asJSON      bool
		minAccuracy float64
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score the intent classifier on a labeled example set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			clf, _, err := nlu.Train(opts.cfg.IntentDataPath, opts.cfg.IntentTemperature)
			if err != nil {
				return err
			}

			var examples []nlu.Example
			if dataPath == "" {
				examples, err = nlu.DefaultEvalExamples()
			} else {
				examples, err = nlu.LoadEvalExamplesFile(dataPath)
			}
			if err != nil {
				return fmt.Errorf("load evaluation set: %w", err)
			}

			report, err := nlu.Evaluate(clf, examples)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else if err := printReport(out, report); err != nil {
				return err
			}

			if report.Accuracy < minAccuracy {
				return fmt.Errorf("accuracy %.3f is below the required %.3f", report.Accuracy, minAccuracy)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dataPath, "data", "", "YAML file of {text, intent} examples (default: embedded held-out set)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	cmd.Flags().Float64Var(&minAccuracy, "min-accuracy", 0, "exit non-zero when accuracy falls below this value")
	return cmd
}

func printReport(w io.Writer, r nlu.Report) error {
	fmt.Fprintf(w, "examples: %d\naccuracy: %.3f\n\n", r.Total, r.Accuracy)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INTENT\tPRECISION\tRECALL\tF1\tSUPPORT")
	for _, s := range r.PerIntent {
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\t%d\n", s.Intent, s.Precision, s.Recall, s.F1, s.Support)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if misses := r.Misses(); len(misses) > 0 {
		fmt.Fprintf(w, "\nmisclassified (%d):\n", len(misses))
		for _, m := range misses {
			fmt.Fprintf(w, "  %q: expected %s, got %s (%.2f)\n", m.Text, m.Expected, m.Predicted, m.Confidence)
		}
	}
	return nil
}
