package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/abstract-base-method/graphstore"
	"github.com/charmbracelet/log"
	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

// maxLineSize bounds one JSON line; identifiers alone may be 64KiB.
const maxLineSize = 4 << 20

// loadLine is one line of a load file. Exactly one field is set.
type loadLine struct {
	Vertex         *graphstore.Vertex  `json:"vertex"`
	Edge           *graphstore.EdgeKey `json:"edge"`
	VertexProperty *vertexPropertyLine `json:"vertex_property"`
	EdgeProperty   *edgePropertyLine   `json:"edge_property"`
}

type vertexPropertyLine struct {
	ID    graphstore.Identifier `json:"id"`
	Name  graphstore.Type       `json:"name"`
	Value json.RawMessage       `json:"value"`
}

type edgePropertyLine struct {
	Key   graphstore.EdgeKey `json:"key"`
	Name  graphstore.Type    `json:"name"`
	Value json.RawMessage    `json:"value"`
}

func (l loadLine) item() (graphstore.BulkInsertItem, error) {
	var items []graphstore.BulkInsertItem
	if l.Vertex != nil {
		items = append(items, graphstore.VertexItem{Vertex: *l.Vertex})
	}
	if l.Edge != nil {
		items = append(items, graphstore.EdgeItem{Key: *l.Edge})
	}
	if p := l.VertexProperty; p != nil {
		items = append(items, graphstore.VertexPropertyItem{ID: p.ID, Name: p.Name, Value: p.Value})
	}
	if p := l.EdgeProperty; p != nil {
		items = append(items, graphstore.EdgePropertyItem{Key: p.Key, Name: p.Name, Value: p.Value})
	}
	if len(items) != 1 {
		return nil, fmt.Errorf("expected exactly one of vertex, edge, vertex_property, edge_property; got %d", len(items))
	}
	if err := validateItem(items[0]); err != nil {
		return nil, err
	}
	return items[0], nil
}

// validateItem catches types left out of a line; a missing field never
// reaches Type.UnmarshalText.
func validateItem(item graphstore.BulkInsertItem) error {
	switch item := item.(type) {
	case graphstore.VertexItem:
		return item.Vertex.Validate()
	case graphstore.EdgeItem:
		return item.Key.Validate()
	case graphstore.VertexPropertyItem:
		return item.Name.Validate()
	case graphstore.EdgePropertyItem:
		if err := item.Key.Validate(); err != nil {
			return err
		}
		return item.Name.Validate()
	}
	return nil
}

// readItems decodes a JSON lines stream into bulk insert items. Blank lines
// are skipped.
func readItems(r io.Reader) ([]graphstore.BulkInsertItem, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var items []graphstore.BulkInsertItem
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var decoded loadLine
		if err := gojson.Unmarshal(line, &decoded); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		item, err := decoded.item()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
	}
	return items, nil
}

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <file.jsonl>",
		Short: "Bulk insert vertices, edges and properties from a JSON lines file",
		Long: `Load reads one item per line and applies them in order with a bulk insert.

Each line holds exactly one of:
  {"vertex": {"id": "alice", "type": "person"}}
  {"edge": {"outbound_id": "alice", "type": "knows", "inbound_id": "bob"}}
  {"vertex_property": {"id": "alice", "name": "age", "value": 42}}
  {"edge_property": {"key": {...}, "name": "since", "value": "2020"}}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()
			items, err := readItems(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			ds, err := cfg.Open()
			if err != nil {
				return fmt.Errorf("failed to open datastore: %w", err)
			}
			defer ds.Close()

			tx, err := ds.Transaction()
			if err != nil {
				return err
			}
			if err := tx.BulkInsert(items); err != nil {
				_ = tx.Rollback()
				return err
			}
			if err := tx.Commit(); err != nil {
				return err
			}

			log.Debug("bulk insert finished", "file", args[0], "items", len(items))
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d items\n", len(items))
			return nil
		},
	}
}
