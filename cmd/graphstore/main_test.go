package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abstract-base-method/graphstore"
	"github.com/abstract-base-method/graphstore/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func sqliteConfig(t *testing.T, dir string, createSchema bool) string {
	t.Helper()
	return writeFile(t, dir, "graphstore.yaml", fmt.Sprintf(
		"backend: sqlite\nlog_level: error\nsqlite:\n  path: %s\n  pool_size: 2\n  create_schema: %t\n",
		filepath.Join(dir, "graph.db"), createSchema,
	))
}

const sample = `{"vertex": {"id": "alice", "type": "person"}}
{"vertex": {"id": "bob", "type": "person"}}

{"edge": {"outbound_id": "alice", "type": "knows", "inbound_id": "bob"}}
{"vertex_property": {"id": "alice", "name": "age", "value": 42}}
{"edge_property": {"key": {"outbound_id": "alice", "type": "knows", "inbound_id": "bob"}, "name": "since", "value": "2020"}}
`

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"repair", "init-schema", "load", "count"}, names)
}

func TestReadItems(t *testing.T) {
	items, err := readItems(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, items, 5)

	key := graphstore.NewEdgeKey(graphstore.MustIdentifier("alice"), graphstore.MustType("knows"), graphstore.MustIdentifier("bob"))
	assert.Equal(t, graphstore.VertexItem{Vertex: graphstore.Vertex{ID: graphstore.MustIdentifier("alice"), Type: graphstore.MustType("person")}}, items[0])
	assert.Equal(t, graphstore.EdgeItem{Key: key}, items[2])

	prop, ok := items[3].(graphstore.VertexPropertyItem)
	require.True(t, ok)
	assert.Equal(t, graphstore.MustType("age"), prop.Name)
	assert.JSONEq(t, `42`, string(prop.Value))

	edgeProp, ok := items[4].(graphstore.EdgePropertyItem)
	require.True(t, ok)
	assert.Equal(t, key, edgeProp.Key)
}

func TestReadItemsRejects(t *testing.T) {
	cases := map[string]string{
		"not json":                  `{"vertex": `,
		"empty":                     `{}`,
		"two items":                 `{"vertex": {"id": "a", "type": "t"}, "edge": {"outbound_id": "a", "type": "t", "inbound_id": "a"}}`,
		"bad type":                  `{"vertex": {"id": "a", "type": "not a type"}}`,
		"second line":               "{\"vertex\": {\"id\": \"a\", \"type\": \"t\"}}\n{}",
		"vertex type missing":       `{"vertex": {"id": "alice"}}`,
		"edge type missing":         `{"edge": {"outbound_id": "a", "inbound_id": "b"}}`,
		"property name missing":     `{"vertex_property": {"id": "a", "value": 1}}`,
		"edge property key untyped": `{"edge_property": {"key": {"outbound_id": "a", "inbound_id": "b"}, "name": "n", "value": 1}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := readItems(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}

	_, err := readItems(strings.NewReader("{\"vertex\": {\"id\": \"a\", \"type\": \"t\"}}\n{}"))
	assert.ErrorContains(t, err, "line 2")
}

func TestLoadAndCount(t *testing.T) {
	dir := t.TempDir()
	cfg := sqliteConfig(t, dir, true)
	data := writeFile(t, dir, "graph.jsonl", sample)

	out, err := run(t, "--config", cfg, "load", data)
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 5 items")

	out, err = run(t, "--config", cfg, "count")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := run(t, "load", filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestInitSchema(t *testing.T) {
	dir := t.TempDir()
	cfg := sqliteConfig(t, dir, false)

	out, err := run(t, "--config", cfg, "init-schema")
	require.NoError(t, err)
	assert.Contains(t, out, "Created schema")

	_, err = run(t, "--config", cfg, "init-schema")
	assert.Error(t, err, "schema already exists")

	out, err = run(t, "--config", cfg, "count")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
}

func TestRepair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "badger")
	ds, err := kv.OpenBadgerDatastore(kv.BadgerOptions{Path: path})
	require.NoError(t, err)
	tx, err := ds.Transaction()
	require.NoError(t, err)
	_, err = tx.CreateVertex(graphstore.NewVertex(graphstore.MustType("person")))
	require.NoError(t, err)
	require.NoError(t, ds.Close())

	out, err := run(t, "repair", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Repaired")

	_, err = run(t, "repair")
	assert.Error(t, err, "path argument is required")
}

func TestBadConfig(t *testing.T) {
	cfg := writeFile(t, t.TempDir(), "graphstore.yaml", "backend: nowhere\n")
	_, err := run(t, "--config", cfg, "count")
	assert.Error(t, err)
}
