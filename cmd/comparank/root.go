package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/knoguchi/comparank/internal/axiom"
	"github.com/knoguchi/comparank/internal/config"
	"github.com/knoguchi/comparank/internal/reranker"
	"github.com/knoguchi/comparank/internal/service"
)

var (
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger

	// Pipeline overrides shared by rerank and run.
	stagesFlag  string
	axiomsFlag  string
	seedFlag    uint64
	numHitsFlag int
	tagFlag     string
	skipTagging bool
)

var rootCmd = &cobra.Command{
	Use:   "comparank",
	Short: "Axiomatic re-ranking for comparative argument search",
	Long: `comparank retrieves and re-ranks passages for comparative questions
("Which is better, a laptop or a desktop?").

Configuration is read from the environment and a .env file, the same way the
comparankd server reads it. Flags override the re-ranking settings.

Example usage:
  comparank ingest corpus.jsonl          # Store passages and rebuild the index
  comparank run --topics topics.xml      # Write a run file for a topics file
  comparank rerank ranking.json          # Re-rank a given ranking`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command. Interrupts cancel ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&stagesFlag, "rerankers", "", "comma separated re-ranking stages (default: RERANKERS)")
	cmd.Flags().StringVar(&axiomsFlag, "axioms", "", "axiom profile, e.g. argument-count:2,tfc1 (default: AXIOMS)")
	cmd.Flags().Uint64Var(&seedFlag, "seed", 0, "random seed for pivot selection (default: RANDOM_SEED)")
	cmd.Flags().StringVar(&tagFlag, "tag", "", "run tag (default: RUN_TAG)")
	cmd.Flags().BoolVar(&skipTagging, "skip-tagging", false, "re-rank with the annotations already present")
}

// initConfig loads the configuration and sets up the logger. Logs go to stderr so run
// files can be written to stdout.
func initConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}

func applyFlags() {
	if tagFlag != "" {
		cfg.RunTag = tagFlag
	}
}

func options() (service.Options, error) {
	opts := service.Options{
		Stages:      reranker.ParseStages(stagesFlag),
		Seed:        seedFlag,
		NumHits:     numHitsFlag,
		SkipTagging: skipTagging,
	}
	if axiomsFlag != "" {
		profile, err := axiom.ParseProfile(axiomsFlag)
		if err != nil {
			return opts, fmt.Errorf("--axioms: %w", err)
		}
		opts.Axioms = profile
	}
	return opts, nil
}

// openInput opens path, or stdin for "" and "-".
func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// createOutput creates path, or returns stdout for "" and "-".
func createOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
