package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var archiveResultsDir string

func newArchiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Export and import runs as zstd-compressed tarballs",
	}

	cmd.PersistentFlags().StringVar(&archiveResultsDir, "results-dir", "", "Result store root directory")

	cmd.AddCommand(newArchiveExportCommand())
	cmd.AddCommand(newArchiveImportCommand())

	return cmd
}

func newArchiveExportCommand() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Write a run (manifest, traces, metrics) to an archive file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := args[0]
			store, err := storeFromFlags(archiveResultsDir)
			if err != nil {
				return err
			}

			path := outputPath
			if path == "" {
				path = runID + ".tar.zst"
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}

			if err := store.ArchiveRun(runID, f); err != nil {
				f.Close()       //nolint:errcheck
				os.Remove(path) //nolint:errcheck
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported run %s to %s\n", runID, path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Archive file path (default: <run-id>.tar.zst)")
	return cmd
}

func newArchiveImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <archive>",
		Short: "Restore a run from an archive file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storeFromFlags(archiveResultsDir)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck

			runID, err := store.RestoreRun(f)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported run %s\n", runID)
			return nil
		},
	}
}
