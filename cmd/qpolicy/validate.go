package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/qpolicy/qpolicy/internal/parser"
	"github.com/qpolicy/qpolicy/internal/policyfile"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var fragment bool

	cmd := &cobra.Command{
		Use:   "validate [files...]",
		Short: "Validate policy files and print all diagnostics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			errorCount := 0
			for _, path := range args {
				file, err := loadPolicyFile(path, !fragment)
				if err != nil {
					return err
				}
				for _, d := range file.Validate() {
					fmt.Fprintln(cmd.OutOrStdout(), d.String())
					if d.Severity == parser.SeverityError {
						errorCount++
					}
				}
			}
			if errorCount > 0 {
				return fmt.Errorf("%d error(s) found", errorCount)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "no errors found")
			return nil
		},
	}

	cmd.Flags().BoolVar(&fragment, "fragment", false, "Treat files as include fragments (no nested !include)")

	return cmd
}

func loadPolicyFile(path string, allowInclude bool) (*policyfile.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return policyfile.Load(filepath.Base(path), string(data), allowInclude), nil
}
