package main

import (
	"fmt"
	"sort"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

var casesResultsDir string

func newCasesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cases <run-id>",
		Short: "List every (model, case) pair of a run with its status",
		Args:  cobra.ExactArgs(1),
		RunE:  casesCommandE,
	}

	cmd.Flags().StringVar(&casesResultsDir, "results-dir", "", "Result store root directory")

	return cmd
}

func casesCommandE(cmd *cobra.Command, args []string) error {
	store, err := storeFromFlags(casesResultsDir)
	if err != nil {
		return err
	}

	manifest, err := store.LoadManifest(args[0])
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(manifest.Pairs))
	width := 0
	for key, state := range manifest.Pairs {
		keys = append(keys, key)
		if w := runewidth.StringWidth(state.ModelID + "  " + state.CaseID); w > width {
			width = w
		}
	}
	sort.Strings(keys)

	out := cmd.OutOrStdout()
	for _, key := range keys {
		state := manifest.Pairs[key]
		label := state.ModelID + "  " + state.CaseID
		pad := width - runewidth.StringWidth(label)
		status := string(state.Status)
		if state.FailureClass != "" {
			status += " (" + string(state.FailureClass) + ")"
		}
		fmt.Fprintf(out, "%s%*s  %s\n", label, pad, "", status)
	}

	progress := manifest.Counts()
	fmt.Fprintf(out, "\n%d pending, %d running, %d completed, %d failed\n",
		progress.Pending, progress.Running, progress.Completed, progress.Failed)
	return nil
}
