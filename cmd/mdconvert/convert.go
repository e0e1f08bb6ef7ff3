// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mdconvert/internal/progress"
)

var convertCmd = &cobra.Command{
	Use:   "convert -i <path>... -o <dir>",
	Short: "Convert files and directory trees to Markdown",
	Long: `Convert discovers every supported document under the given inputs and
converts each one to Markdown in the output directory, one file at a time.

Progress records are written to stdout as newline-delimited JSON, ending
with a summary record. A failed file is reported and skipped; the batch
only fails (non-zero exit) when no supported file was found.`,
	PreRunE: bindConversionFlags,
	RunE:    runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	inputs, outputDir, err := batchArgs(cmd, args)
	if err != nil {
		return err
	}

	rn, cleanup, err := newRunner()
	defer cleanup()
	if err != nil {
		return err
	}

	w := progress.NewWriter(os.Stdout)
	summary, err := rn.Run(cmd.Context(), inputs, outputDir, w)
	if err != nil {
		return err
	}
	if err := w.Err(); err != nil {
		return fmt.Errorf("writing progress: %w", err)
	}

	logger.Info("batch finished",
		"successful", summary.Successful,
		"failed", summary.Failed,
		"total", summary.Total)
	return nil
}

func init() {
	addBatchFlags(convertCmd)
	rootCmd.AddCommand(convertCmd)
}
