package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qpolicy/qpolicy/internal/eval"
	"github.com/qpolicy/qpolicy/internal/logging"
	"github.com/qpolicy/qpolicy/internal/policyfile"
	"github.com/qpolicy/qpolicy/internal/session"
	"github.com/spf13/cobra"
)

func newEvalCmd() *cobra.Command {
	var policyDir string
	var includeDir string
	var service string
	var argument string
	var source string
	var destination string
	var noDestination bool
	var tags []string
	var types []string
	var adminVM string
	var decisionLogPath string

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate a synthetic request against the policy",
		Long: "Finds the first rule matching the request, scanning files in " +
			"lexicographic name order and lines top to bottom. No matching " +
			"rule means implicit deny.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if policyDir == "" {
				return errors.New("policy directory is required")
			}
			if service == "" || source == "" {
				return errors.New("service and source are required")
			}
			if destination == "" && !noDestination {
				return errors.New("destination (or --no-destination) is required")
			}

			info, err := parseQubeInfo(tags, types, adminVM)
			if err != nil {
				return err
			}

			ruleset, err := loadRuleset(policyDir, includeDir, info)
			if err != nil {
				return err
			}

			req := eval.Request{
				Service:       service,
				Argument:      argument,
				Source:        source,
				Destination:   destination,
				NoDestination: noDestination,
			}

			start := time.Now()
			action, match, matched := ruleset.Evaluate(req)
			elapsed := time.Since(start)

			out := cmd.OutOrStdout()
			if matched {
				fmt.Fprintf(out, "%s\n", action.Kind)
				fmt.Fprintf(out, "matched %s:%d: %s\n", match.File, match.Line, match.Rule)
			} else {
				fmt.Fprintln(out, "deny")
				fmt.Fprintln(out, "no matching rule (implicit deny)")
			}

			if decisionLogPath != "" {
				logger, closer, err := logging.OpenDecisionLog(decisionLogPath)
				if err != nil {
					return err
				}
				defer func() { _ = closer() }()
				decision := logging.Decision{
					Timestamp:     start,
					Service:       service,
					Argument:      argument,
					Source:        source,
					Destination:   destination,
					NoDestination: noDestination,
					Matched:       matched,
					Action:        "deny",
					DurationMS:    elapsed.Milliseconds(),
				}
				if matched {
					decision.Action = action.Kind.String()
					decision.File = match.File
					decision.Line = match.Line
					decision.Rule = match.Rule.String()
				}
				return logger.Write(decision)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&policyDir, "policy-dir", "", "Directory with top-level policy files")
	cmd.Flags().StringVar(&includeDir, "include-dir", "", "Directory with include fragments")
	cmd.Flags().StringVar(&service, "service", "", "RPC service name")
	cmd.Flags().StringVar(&argument, "argument", "", "Service argument (empty for none)")
	cmd.Flags().StringVar(&source, "source", "", "Source qube")
	cmd.Flags().StringVar(&destination, "destination", "", "Destination qube")
	cmd.Flags().BoolVar(&noDestination, "no-destination", false, "Request names no destination (@default rules match)")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "Qube tag metadata as qube=tag (repeatable)")
	cmd.Flags().StringArrayVar(&types, "type", nil, "Qube type metadata as qube=type (repeatable)")
	cmd.Flags().StringVar(&adminVM, "adminvm", "dom0", "Name of the admin qube")
	cmd.Flags().StringVar(&decisionLogPath, "decision-log", "", "Append the decision to this JSONL file")

	return cmd
}

func parseQubeInfo(tags, types []string, adminVM string) (eval.StaticQubeInfo, error) {
	info := eval.StaticQubeInfo{
		Tags:    map[string][]string{},
		Types:   map[string]string{},
		AdminVM: adminVM,
	}
	for _, pair := range tags {
		qube, tag, found := strings.Cut(pair, "=")
		if !found || qube == "" || tag == "" {
			return info, fmt.Errorf("invalid --tag %q: expected qube=tag", pair)
		}
		info.Tags[qube] = append(info.Tags[qube], tag)
	}
	for _, pair := range types {
		qube, typeName, found := strings.Cut(pair, "=")
		if !found || qube == "" || typeName == "" {
			return info, fmt.Errorf("invalid --type %q: expected qube=type", pair)
		}
		info.Types[qube] = typeName
	}
	return info, nil
}

// loadRuleset reads every policy file in the configured directories into an
// evaluation ruleset: top-level files ordered by name, include fragments
// addressable by their !include path.
func loadRuleset(policyDir, includeDir string, info eval.QubeInfo) (*eval.Ruleset, error) {
	store := &session.DirStore{Dir: policyDir, IncludeDir: includeDir}
	names, err := store.List()
	if err != nil {
		return nil, err
	}

	var files []*policyfile.File
	fragments := map[string]*policyfile.File{}
	for _, name := range names {
		text, err := store.Read(name)
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(name, session.IncludePrefix) {
			// keyed by the path as written on !include lines
			fragments[name] = policyfile.Load(name, text, false)
			continue
		}
		files = append(files, policyfile.Load(name, text, true))
	}

	return eval.NewRuleset(files, fragments, info), nil
}
