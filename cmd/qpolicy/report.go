package main

import (
	"fmt"
	"os"
	"time"

	"github.com/qpolicy/qpolicy/internal/report"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	var since time.Duration
	var asJSON bool
	var outPath string

	cmd := &cobra.Command{
		Use:   "report <decision-log>",
		Short: "Summarize an evaluation decision log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader := report.Reader{}
			if since > 0 {
				reader.Since = time.Now().Add(-since)
			}

			decisions, err := reader.Read(args[0])
			if err != nil {
				return err
			}
			summary := report.Summarize(decisions)

			rendered := report.RenderText(summary)
			if asJSON {
				rendered, err = report.RenderJSON(summary)
				if err != nil {
					return err
				}
			}

			if outPath == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), rendered)
				return err
			}
			return os.WriteFile(outPath, []byte(rendered), 0o644)
		},
	}

	cmd.Flags().DurationVar(&since, "since", 0, "Only include entries newer than this duration (e.g. 10m)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render the summary as JSON")
	cmd.Flags().StringVar(&outPath, "out", "", "Write the summary to this file instead of stdout")

	return cmd
}
