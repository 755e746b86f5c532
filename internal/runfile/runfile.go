// Package runfile reads topics and writes rankings as TREC-style run files.
package runfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/knoguchi/comparank/internal/model"
)

// LabelNone is written in place of a stance label for items without stance annotations.
const LabelNone = "Q0"

// ErrMalformedLine is returned for run lines that do not have six fields.
var ErrMalformedLine = errors.New("malformed run line")

// Line is one line of a run file.
type Line struct {
	QueryID int     `json:"query_id"`
	Label   string  `json:"label"`
	DocID   string  `json:"doc_id"`
	Rank    int     `json:"rank"`
	Score   float64 `json:"score"`
	Tag     string  `json:"tag"`
}

// String formats the line as "<qid> <label> <docid> <rank> <score> <tag>".
func (l Line) String() string {
	return fmt.Sprintf("%d %s %s %d %s %s",
		l.QueryID, l.Label, l.DocID, l.Rank, strconv.FormatFloat(l.Score, 'f', -1, 64), l.Tag)
}

// Lines converts a ranking into run lines. Stance-annotated items carry their stance label.
func Lines(q model.Query, ranking model.Ranking, tag string) []Line {
	lines := make([]Line, len(ranking))
	for i, item := range ranking {
		label := LabelNone
		if stance, ok := item.StanceLabel(q); ok {
			label = string(stance)
		}
		lines[i] = Line{
			QueryID: q.ID,
			Label:   label,
			DocID:   item.ID,
			Rank:    item.Rank,
			Score:   item.Score,
			Tag:     tag,
		}
	}
	return lines
}

// ParseLine parses a single run line.
func ParseLine(s string) (Line, error) {
	fields := strings.Fields(s)
	if len(fields) != 6 {
		return Line{}, fmt.Errorf("%w: %d fields in %q", ErrMalformedLine, len(fields), s)
	}
	qid, err := strconv.Atoi(fields[0])
	if err != nil {
		return Line{}, fmt.Errorf("%w: query id: %v", ErrMalformedLine, err)
	}
	rank, err := strconv.Atoi(fields[3])
	if err != nil {
		return Line{}, fmt.Errorf("%w: rank: %v", ErrMalformedLine, err)
	}
	score, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return Line{}, fmt.Errorf("%w: score: %v", ErrMalformedLine, err)
	}
	return Line{
		QueryID: qid,
		Label:   fields[1],
		DocID:   fields[2],
		Rank:    rank,
		Score:   score,
		Tag:     fields[5],
	}, nil
}

// Read parses every non-empty line of a run file.
func Read(r io.Reader) ([]Line, error) {
	var lines []Line
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		line, err := ParseLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read run file: %w", err)
	}
	return lines, nil
}

// Writer writes rankings as run lines.
type Writer struct {
	w   *bufio.Writer
	tag string
}

// NewWriter creates a run file writer tagging every line with tag.
func NewWriter(w io.Writer, tag string) *Writer {
	return &Writer{w: bufio.NewWriter(w), tag: tag}
}

// Write appends the lines of one ranking.
func (w *Writer) Write(q model.Query, ranking model.Ranking) error {
	for _, line := range Lines(q, ranking, w.tag) {
		if _, err := w.w.WriteString(line.String() + "\n"); err != nil {
			return fmt.Errorf("write run line: %w", err)
		}
	}
	return nil
}

// Flush writes buffered lines to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
