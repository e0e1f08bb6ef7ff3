// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/mdconvert/internal/container"
	"github.com/pdiddy/mdconvert/internal/convert"
	"github.com/pdiddy/mdconvert/internal/fetch"
	"github.com/pdiddy/mdconvert/internal/history"
	"github.com/pdiddy/mdconvert/internal/progress"
	"github.com/pdiddy/mdconvert/internal/secrets"
	"github.com/pdiddy/mdconvert/pkg/types"
)

func setDefaults() {
	viper.SetDefault("backend", string(types.BackendMarkitdown))
	viper.SetDefault("frontmatter", false)
	viper.SetDefault("markitdown.image", convert.DefaultMarkitdownImage)
	viper.SetDefault("docling.url", "http://localhost:5001")
	viper.SetDefault("docling.timeout", 10*time.Minute)
	viper.SetDefault("docling.max_retries", 5)
	viper.SetDefault("fetch.timeout", 2*time.Minute)
	viper.SetDefault("history.path", history.DefaultPath())
	viper.SetDefault("history.disabled", false)
	viper.SetDefault("serve.addr", defaultServeAddr)
}

// addConversionFlags registers the flags shared by every command that runs
// a batch. They are bound to viper keys in bindConversionFlags.
func addConversionFlags(cmd *cobra.Command) {
	cmd.Flags().String("backend", string(types.BackendMarkitdown), "conversion backend: markitdown or docling")
	cmd.Flags().Bool("frontmatter", false, "prepend YAML frontmatter (source, backend, converted_at) to each file")
	cmd.Flags().String("markitdown-image", convert.DefaultMarkitdownImage, "container image for the markitdown backend")
	cmd.Flags().String("docling-url", "http://localhost:5001", "base URL of the docling-serve instance")
	cmd.Flags().Bool("no-history", false, "do not record this batch in the history database")
}

// bindConversionFlags binds the shared flags of cmd. It runs in PreRunE so
// that only the executing command's flags are bound.
func bindConversionFlags(cmd *cobra.Command, args []string) error {
	for key, flag := range map[string]string{
		"backend":          "backend",
		"frontmatter":      "frontmatter",
		"markitdown.image": "markitdown-image",
		"docling.url":      "docling-url",
		"history.disabled": "no-history",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// loadConfig assembles the typed configuration from viper.
func loadConfig() (types.Config, error) {
	cfg := types.Config{
		Conversion: types.ConversionConfig{
			Backend:     types.ConversionBackend(strings.ToLower(viper.GetString("backend"))),
			Frontmatter: viper.GetBool("frontmatter"),
			Markitdown:  types.MarkitdownConfig{Image: viper.GetString("markitdown.image")},
			Docling: types.DoclingConfig{
				HTTPConfig: types.HTTPConfig{
					Timeout:   viper.GetDuration("docling.timeout"),
					UserAgent: "mdconvert/" + version,
				},
				URL:        viper.GetString("docling.url"),
				APIKey:     loadedSecrets.Or(secrets.DoclingAPIKey, viper.GetString("docling.api_key")),
				MaxRetries: viper.GetInt("docling.max_retries"),
			},
			Fetch: types.HTTPConfig{
				Timeout:   viper.GetDuration("fetch.timeout"),
				UserAgent: "mdconvert/" + version,
			},
		},
		History: types.HistoryConfig{
			Path:     viper.GetString("history.path"),
			Disabled: viper.GetBool("history.disabled"),
		},
		Serve: types.ServeConfig{Addr: viper.GetString("serve.addr")},
		Log: types.LogConfig{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		},
	}

	switch cfg.Conversion.Backend {
	case types.BackendMarkitdown, types.BackendDocling:
	default:
		return cfg, fmt.Errorf("unsupported backend %q: use markitdown or docling", cfg.Conversion.Backend)
	}
	return cfg, nil
}

// newConverter builds the converter for the configured backend.
func newConverter(cfg types.ConversionConfig) (convert.Converter, error) {
	switch cfg.Backend {
	case types.BackendDocling:
		return convert.NewDoclingConverter(cfg.Docling), nil
	default:
		rt, err := container.DetectRuntime()
		if err != nil {
			return nil, err
		}
		return convert.NewMarkitdownConverter(rt, cfg.Markitdown.Image)
	}
}

// runner runs batches with one converter, recording each completed batch
// in the history store when one is open.
type runner struct {
	converter convert.Converter
	cfg       types.ConversionConfig
	store     *history.Store
	log       *slog.Logger
}

// newRunner loads configuration and prepares a runner. The returned cleanup
// closes the history store.
func newRunner() (*runner, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, func() {}, err
	}
	conv, err := newConverter(cfg.Conversion)
	if err != nil {
		return nil, func() {}, err
	}

	rn := &runner{converter: conv, cfg: cfg.Conversion, log: logger}
	if !cfg.History.Disabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			// History is best-effort; the batch runs without it.
			logger.Warn("history disabled", "error", err)
		} else {
			rn.store = store
		}
	}

	cleanup := func() {
		if rn.store != nil {
			rn.store.Close()
		}
	}
	return rn, cleanup, nil
}

// Run converts inputs into outputDir, reporting through r.
func (rn *runner) Run(ctx context.Context, inputs []string, outputDir string, r progress.Reporter) (types.BatchSummary, error) {
	reporters := []progress.Reporter{r}
	if rn.store != nil {
		reporters = append(reporters, history.NewRecorder(rn.store, outputDir, rn.cfg.Backend, rn.log))
	}

	d := &convert.Driver{
		Converter:   rn.converter,
		Reporter:    progress.Tee(reporters...),
		Backend:     rn.cfg.Backend,
		Frontmatter: rn.cfg.Frontmatter,
		Logger:      rn.log,
	}

	if fetch.HasURL(inputs) {
		dir, err := os.MkdirTemp("", "mdconvert-fetch-*")
		if err != nil {
			return types.BatchSummary{}, fmt.Errorf("creating download directory: %w", err)
		}
		defer os.RemoveAll(dir)
		d.Stager = fetch.New(dir, rn.cfg.Fetch, rn.cfg.Docling.MaxRetries)
	}
	return d.Run(ctx, inputs, outputDir)
}

// batchArgs reads the --input and --output flags, accepting positional
// arguments as additional inputs.
func batchArgs(cmd *cobra.Command, args []string) ([]string, string, error) {
	inputs, _ := cmd.Flags().GetStringArray("input")
	inputs = append(inputs, args...)
	if len(inputs) == 0 {
		return nil, "", fmt.Errorf("at least one input path is required (--input)")
	}
	outputDir, _ := cmd.Flags().GetString("output")
	if outputDir == "" {
		return nil, "", fmt.Errorf("an output directory is required (--output)")
	}
	return inputs, outputDir, nil
}

func addBatchFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("input", "i", nil, "input file or directory (repeatable)")
	cmd.Flags().StringP("output", "o", "", "output directory for Markdown files")
	addConversionFlags(cmd)
}
