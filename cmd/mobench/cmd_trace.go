package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var traceResultsDir string

func newTraceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace <run-id> <model-id> <case-id>",
		Short: "Print one execution trace as JSON",
		Args:  cobra.ExactArgs(3),
		RunE:  traceCommandE,
	}

	cmd.Flags().StringVar(&traceResultsDir, "results-dir", "", "Result store root directory")

	return cmd
}

func traceCommandE(cmd *cobra.Command, args []string) error {
	store, err := storeFromFlags(traceResultsDir)
	if err != nil {
		return err
	}

	trace, err := store.LoadTrace(args[0], args[1], args[2])
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
