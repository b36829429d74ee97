package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/qpolicy/qpolicy/internal/config"
	"github.com/qpolicy/qpolicy/internal/session"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:          "qpolicy",
		Short:        "Qrexec policy editor toolkit",
		SilenceUsage: true,
	}

	root.AddCommand(newValidateCmd())
	root.AddCommand(newFmtCmd())
	root.AddCommand(newEvalCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		var cfgErr *config.ValidationError
		var saveErr *session.ValidationError
		switch {
		case errors.As(err, &cfgErr):
			for _, msg := range cfgErr.Problems {
				fmt.Fprintln(os.Stderr, msg)
			}
		case errors.As(err, &saveErr):
			for _, d := range saveErr.Diagnostics {
				fmt.Fprintln(os.Stderr, d.String())
			}
		default:
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "version=%s commit=%s buildDate=%s\n", version, commit, buildDate)
		},
	}
}
