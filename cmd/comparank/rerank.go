package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/knoguchi/comparank/internal/app"
	"github.com/knoguchi/comparank/internal/model"
	"github.com/knoguchi/comparank/internal/runfile"
)

var rerankCmd = &cobra.Command{
	Use:   "rerank [ranking.json]",
	Short: "Re-rank a given ranking",
	Long: `Re-rank the ranking in a JSON file (or stdin) and write run file lines to stdout.

The input has the shape {"query": {...}, "ranking": [...]}, the same body the
POST /v1/rerank endpoint accepts. When the passage index is empty the ranking's
own passages provide the collection statistics.

Examples:
  comparank rerank ranking.json
  comparank rerank --rerankers axiomatic,balanced-top-k-stance < ranking.json
  comparank rerank --axioms argument-count:2,tfc1 --json ranking.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRerank,
}

var rerankJSON bool

func init() {
	rootCmd.AddCommand(rerankCmd)
	addPipelineFlags(rerankCmd)
	rerankCmd.Flags().BoolVar(&rerankJSON, "json", false, "write the run as JSON instead of run file lines")
}

type rerankInput struct {
	Query   model.Query   `json:"query"`
	Ranking model.Ranking `json:"ranking"`
}

func runRerank(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	in, err := openInput(path)
	if err != nil {
		return err
	}
	defer in.Close()

	var input rerankInput
	if err := json.NewDecoder(in).Decode(&input); err != nil {
		return fmt.Errorf("reading ranking: %w", err)
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

	if a.Index.DocumentCount() == 0 {
		logger.Warn("passage index is empty, indexing the ranking itself")
		docs := make([]model.Document, len(input.Ranking))
		for i, item := range input.Ranking {
			docs[i] = item.Document
		}
		a.Index.Add(docs...)
	}

	run, err := a.Pipeline.Rerank(ctx, input.Query, input.Ranking, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if rerankJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}
	w := runfile.NewWriter(out, cfg.RunTag)
	if err := w.Write(run.Query, run.Ranking); err != nil {
		return err
	}
	return w.Flush()
}
