package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/knoguchi/comparank/internal/app"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [corpus.jsonl...]",
	Short: "Ingest a JSONL corpus",
	Long: `Read JSONL corpus files (or stdin), split long documents into passages and
store them in PostgreSQL and, for dense search, in Qdrant.

Each line is an object with an id ("id", "docid" or "_id") and a text
("contents", "content" or "text"). Other scalar values become passage fields.

Examples:
  comparank ingest corpus.jsonl
  comparank ingest --field source=args.me part1.jsonl part2.jsonl`,
	RunE: runIngest,
}

var fieldFlags []string

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringArrayVar(&fieldFlags, "field", nil, "key=value field added to every passage (repeatable)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	fields := make(map[string]string, len(fieldFlags))
	for _, f := range fieldFlags {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid --field %q, want key=value", f)
		}
		fields[key] = value
	}

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.Passages == nil && a.Vectors == nil {
		logger.Warn("no persistent store configured, ingested passages are discarded on exit")
	}

	if len(args) == 0 {
		args = []string{"-"}
	}
	loader := a.NewLoader(fields)
	for _, path := range args {
		in, err := openInput(path)
		if err != nil {
			return err
		}
		stats, err := loader.Load(ctx, in)
		in.Close()
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records, %d passages, %d skipped in %s\n",
			path, stats.Records, stats.Passages, stats.Skipped, stats.Duration.Round(time.Millisecond))
	}
	return nil
}
