package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/knoguchi/comparank/internal/app"
	"github.com/knoguchi/comparank/internal/runfile"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search and re-rank every topic of a topics file",
	Long: `Search the indexed passages for every topic of a topics XML file, re-rank
the results and write a run file.

Examples:
  comparank run --topics topics.xml --output run.txt
  comparank run --topics topics.xml --rerankers axiomatic --axioms argument-count,tfc1`,
	RunE: runTopics,
}

var (
	topicsPath string
	outputPath string
)

func init() {
	rootCmd.AddCommand(runCmd)
	addPipelineFlags(runCmd)
	runCmd.Flags().StringVar(&topicsPath, "topics", "", "topics XML file (required)")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "-", "run file to write")
	runCmd.Flags().IntVar(&numHitsFlag, "num-hits", 0, "passages retrieved per topic (default: NUM_HITS)")
	_ = runCmd.MarkFlagRequired("topics")
}

func runTopics(cmd *cobra.Command, args []string) error {
	in, err := openInput(topicsPath)
	if err != nil {
		return err
	}
	queries, err := runfile.ReadTopics(in)
	in.Close()
	if err != nil {
		return fmt.Errorf("reading topics: %w", err)
	}

	applyFlags()
	opts, err := options()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.Index.DocumentCount() == 0 && a.Vectors == nil {
		return fmt.Errorf("passage index is empty, run comparank ingest first")
	}

	out, err := createOutput(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	logger.Info("running topics", "topics", len(queries), "passages", a.Index.DocumentCount())
	return a.Pipeline.RunTopics(ctx, queries, opts, runfile.NewWriter(out, cfg.RunTag))
}
