// Package main provides the entry point for the citation ranker CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/helixir/citation-ranker/internal/config"
	"github.com/helixir/citation-ranker/internal/domain"
	"github.com/helixir/citation-ranker/internal/model"
	"github.com/helixir/citation-ranker/internal/observability"
	"github.com/helixir/citation-ranker/internal/ranking"
	"github.com/helixir/citation-ranker/internal/scorer"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ranker",
		Short:         "Two-stage citation impact ranking for research papers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRankCmd())
	return root
}

func newRankCmd() *cobra.Command {
	var (
		inputPath  string
		outputPath string
		topK       int
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank a batch of papers by predicted citation impact",
		Long: "Reads a JSON array of paper records, runs the two-stage ranking\n" +
			"pipeline (offline recall filter, LLM citation scoring, precision\n" +
			"re-ranking), and writes one result per input paper.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRank(cmd.Context(), inputPath, outputPath, topK)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "input JSON file of paper records (- for stdin)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "-", "output JSON file of score results (- for stdout)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of papers to rank (0 uses the configured default)")
	return cmd
}

func runRank(parent context.Context, inputPath, outputPath string, topK int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "ranker").Logger()
	logger.Info().Msg("citation ranker starting")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	// Model artifacts are required; a missing file fails startup, not mid-run.
	bundle, err := model.LoadBundle(cfg.Artifacts.Dir, logger)
	if err != nil {
		return fmt.Errorf("load model artifacts: %w", err)
	}
	logger.Info().Str("dir", cfg.Artifacts.Dir).Msg("model artifacts loaded")

	cache, err := scorer.OpenCache(cfg.Scorer.CachePath)
	if err != nil {
		return fmt.Errorf("open score cache: %w", err)
	}
	defer cache.Close()

	providerModel, baseURL, apiKey := cfg.LLM.ClientSettings()
	client, err := scorer.NewCompletionClient(scorer.ClientConfig{
		Provider:  cfg.LLM.Provider,
		APIKey:    apiKey,
		Model:     providerModel,
		BaseURL:   baseURL,
		Timeout:   cfg.LLM.Timeout,
		RateLimit: cfg.LLM.RateLimit,
		RateBurst: cfg.LLM.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}

	citationScorer, err := scorer.New(client, cache, scorer.Config{
		Concurrency:   cfg.Scorer.Concurrency,
		MaxAttempts:   cfg.Scorer.MaxAttempts,
		MaxChars:      cfg.Scorer.MaxChars,
		ProgressEvery: cfg.Scorer.ProgressEvery,
	}, logger, metrics)
	if err != nil {
		return fmt.Errorf("create citation scorer: %w", err)
	}

	pipeline, err := ranking.New(bundle, citationScorer, ranking.Config{
		TopK:         cfg.Pipeline.TopK,
		MaxTextChars: cfg.Scorer.MaxChars,
	}, logger, metrics)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	batch, err := readBatch(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	logger.Info().Int("papers", len(batch)).Msg("input batch loaded")

	results, err := pipeline.Rank(ctx, batch, topK)
	if err != nil {
		return fmt.Errorf("rank batch: %w", err)
	}

	if err := writeResults(outputPath, results); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// readBatch decodes a JSON array of paper records from a file or stdin.
func readBatch(path string) ([]domain.PaperRecord, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var batch []domain.PaperRecord
	dec := json.NewDecoder(r)
	if err := dec.Decode(&batch); err != nil {
		return nil, fmt.Errorf("decode paper records: %w", err)
	}
	return batch, nil
}

// writeResults encodes score results as indented JSON to a file or stdout.
func writeResults(path string, results []domain.ScoreResult) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
