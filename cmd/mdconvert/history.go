// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/mdconvert/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past conversion batches",
	Long: `History lists recorded batches, newest first. Use --batch to show the
per-file results of one batch. Batches that found no supported files are
not recorded.`,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")
	batchID, _ := cmd.Flags().GetInt64("batch")

	switch format {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unsupported format %q: use table, json, or yaml", format)
	}

	store, err := history.Open(viper.GetString("history.path"))
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if batchID > 0 {
		b, err := store.Get(ctx, batchID)
		if err != nil {
			return err
		}
		return writeHistory(os.Stdout, format, b, func(w io.Writer) error {
			return writeBatchTable(w, b)
		})
	}

	batches, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	if batches == nil {
		batches = []history.Batch{}
	}
	return writeHistory(os.Stdout, format, batches, func(w io.Writer) error {
		return writeBatchesTable(w, batches)
	})
}

func writeHistory(w io.Writer, format string, v any, table func(io.Writer) error) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return table(w)
	}
}

func writeBatchesTable(w io.Writer, batches []history.Batch) error {
	if len(batches) == 0 {
		_, err := fmt.Fprintln(w, "No batches recorded.")
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "STARTED", "DURATION", "BACKEND", "OK", "FAILED", "TOTAL", "OUTPUT")
	for _, b := range batches {
		t.Row(
			strconv.FormatInt(b.ID, 10),
			b.StartedAt.Local().Format(time.DateTime),
			b.FinishedAt.Sub(b.StartedAt).Round(time.Millisecond).String(),
			b.Backend,
			strconv.Itoa(b.Successful),
			strconv.Itoa(b.Failed),
			strconv.Itoa(b.Total),
			b.OutputDir,
		)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func writeBatchTable(w io.Writer, b history.Batch) error {
	fmt.Fprintf(w, "Batch %d: %d succeeded, %d failed (%s, %s)\n",
		b.ID, b.Successful, b.Failed, b.Backend, b.StartedAt.Local().Format(time.DateTime))
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "STATUS", "INPUT", "OUTPUT", "ERROR")
	for _, r := range b.Results {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		t.Row(strconv.Itoa(r.Seq), status, r.Input, r.Output, r.Error)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of batches to list (0 for all)")
	historyCmd.Flags().String("format", "table", "output format: table, json, or yaml")
	historyCmd.Flags().Int64("batch", 0, "show the per-file results of this batch ID")

	rootCmd.AddCommand(historyCmd)
}
