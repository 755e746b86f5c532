package runfile

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/knoguchi/comparank/internal/model"
)

type xmlTopics struct {
	Topics []xmlTopic `xml:"topic"`
}

type xmlTopic struct {
	Number      string `xml:"number"`
	Title       string `xml:"title"`
	Objects     string `xml:"objects"`
	Description string `xml:"description"`
	Narrative   string `xml:"narrative"`
}

// ReadTopics parses a topics file:
//
//	<topics>
//	  <topic>
//	    <number>1</number>
//	    <title>Which is better, a laptop or a desktop?</title>
//	    <objects>laptop, desktop</objects>
//	    ...
//	  </topic>
//	</topics>
//
// Topics without objects are not comparative.
func ReadTopics(r io.Reader) ([]model.Query, error) {
	var doc xmlTopics
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode topics: %w", err)
	}

	queries := make([]model.Query, 0, len(doc.Topics))
	for _, t := range doc.Topics {
		id, err := strconv.Atoi(strings.TrimSpace(t.Number))
		if err != nil {
			return nil, fmt.Errorf("topic %q: invalid number: %w", t.Number, err)
		}
		title := strings.TrimSpace(t.Title)
		if title == "" {
			return nil, fmt.Errorf("topic %d: empty title", id)
		}
		objects, err := parseObjects(t.Objects)
		if err != nil {
			return nil, fmt.Errorf("topic %d: %w", id, err)
		}
		queries = append(queries, model.Query{
			ID:          id,
			Title:       title,
			Description: strings.TrimSpace(t.Description),
			Narrative:   strings.TrimSpace(t.Narrative),
			Objects:     objects,
		})
	}
	return queries, nil
}

func parseObjects(s string) (*model.ComparativeObjects, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected two comparative objects, got %d", len(parts))
	}
	first, second := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if first == "" || second == "" {
		return nil, fmt.Errorf("empty comparative object in %q", s)
	}
	return &model.ComparativeObjects{First: first, Second: second}, nil
}
