// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mdconvert/internal/progress"
	"github.com/pdiddy/mdconvert/internal/tui"
	"github.com/pdiddy/mdconvert/pkg/types"
)

var tuiCmd = &cobra.Command{
	Use:   "tui -i <path>... -o <dir>",
	Short: "Convert with an interactive progress view",
	Long: `Tui runs the same batch as convert but renders progress in the terminal
instead of writing protocol records. Press q to quit.`,
	PreRunE: bindConversionFlags,
	RunE:    runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	inputs, outputDir, err := batchArgs(cmd, args)
	if err != nil {
		return err
	}

	rn, cleanup, err := newRunner()
	defer cleanup()
	if err != nil {
		return err
	}

	// The terminal belongs to the program; diagnostics would corrupt it.
	rn.log = slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err = tui.Run(cmd.Context(), func(ctx context.Context, r progress.Reporter) (types.BatchSummary, error) {
		return rn.Run(ctx, inputs, outputDir, r)
	})
	return err
}

func init() {
	addBatchFlags(tuiCmd)
	rootCmd.AddCommand(tuiCmd)
}
