package sqlite

import (
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/abstract-base-method/graphstore"
	"github.com/abstract-base-method/graphstore/internal/graphtest"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, secureIDs bool) (*Datastore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.db")
	ds, err := Open(Options{Path: path, PoolSize: 2, SecureIDs: secureIDs, CreateSchema: true, Logger: log.New(io.Discard)})
	require.NoError(t, err)
	return ds, path
}

func Test_Suite(t *testing.T) {
	graphtest.RunSuite(t, func(t *testing.T) graphstore.Datastore {
		ds, _ := openTemp(t, true)
		return ds
	})
}

func Test_SuiteTimeOrderedIDs(t *testing.T) {
	graphtest.RunSuite(t, func(t *testing.T) graphstore.Datastore {
		ds, _ := openTemp(t, false)
		return ds
	})
}

func Test_CreateSchemaTwiceFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	require.NoError(t, CreateSchema(path))
	assert.Error(t, CreateSchema(path))

	// Open with CreateSchema leaves an initialised database alone.
	ds, err := Open(Options{Path: path, CreateSchema: true, Logger: log.New(io.Discard)})
	require.NoError(t, err)
	require.NoError(t, ds.Close())
}

func Test_SchemaNames(t *testing.T) {
	ds, _ := openTemp(t, true)
	defer ds.Close()

	rows, err := ds.db.Query(`SELECT name FROM sqlite_master WHERE type IN ('table', 'index') AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	require.NoError(t, err)
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	assert.Equal(t, []string{"edge_metadata", "edges", "ix_edges_inbound_id", "ix_edges_update_timestamp", "vertex_metadata", "vertices"}, names)

	var ddl string
	require.NoError(t, ds.db.QueryRow(`SELECT sql FROM sqlite_master WHERE name = 'edges'`).Scan(&ddl))
	for _, constraint := range []string{
		"edges_pkey",
		"edges_outbound_id_type_inbound_id_ukey",
		"edges_outbound_id_fkey",
		"edges_inbound_id_fkey",
	} {
		assert.Contains(t, ddl, constraint)
	}
}

func Test_CommitAndRollback(t *testing.T) {
	ds, _ := openTemp(t, true)
	defer ds.Close()
	person := graphstore.MustType("person")
	committed := graphstore.NewVertex(person)
	rolledBack := graphstore.NewVertex(person)

	tx, err := ds.Transaction()
	require.NoError(t, err)
	_, err = tx.CreateVertex(committed)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx, err = ds.Transaction()
	require.NoError(t, err)
	_, err = tx.CreateVertex(rolledBack)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	tx, err = ds.Transaction()
	require.NoError(t, err)
	defer tx.Rollback()
	got, err := tx.GetVertices(graphstore.SpecificVertices(committed.ID, rolledBack.ID))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, committed.ID, got[0].ID)
}

func Test_SyncCommits(t *testing.T) {
	ds, _ := openTemp(t, true)
	defer ds.Close()
	v := graphstore.NewVertex(graphstore.MustType("person"))

	tx, err := ds.Transaction()
	require.NoError(t, err)
	_, err = tx.CreateVertex(v)
	require.NoError(t, err)
	require.NoError(t, tx.Sync())
	require.NoError(t, tx.Rollback())

	tx, err = ds.Transaction()
	require.NoError(t, err)
	defer tx.Rollback()
	count, err := tx.GetVertexCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func Test_ForeignKeysCascade(t *testing.T) {
	ds, _ := openTemp(t, true)
	defer ds.Close()
	tx, err := ds.Transaction()
	require.NoError(t, err)
	defer tx.Rollback()

	person := graphstore.MustType("person")
	knows := graphstore.MustType("knows")
	a, b := graphstore.NewVertex(person), graphstore.NewVertex(person)
	key := graphstore.NewEdgeKey(a.ID, knows, b.ID)
	require.NoError(t, tx.BulkInsert([]graphstore.BulkInsertItem{
		graphstore.VertexItem{Vertex: a},
		graphstore.VertexItem{Vertex: b},
		graphstore.EdgeItem{Key: key},
		graphstore.EdgePropertyItem{Key: key, Name: knows, Value: []byte(`1`)},
	}))

	require.NoError(t, tx.DeleteVertices(graphstore.SingleVertex(b.ID)))

	sqlTx := tx.(*Transaction).tx
	for _, table := range []string{"edges", "edge_metadata"} {
		var n int
		require.NoError(t, sqlTx.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		assert.Zero(t, n, table)
	}
}

func Test_EdgeIDKeptOnRefresh(t *testing.T) {
	ds, _ := openTemp(t, false)
	defer ds.Close()
	tx, err := ds.Transaction()
	require.NoError(t, err)
	defer tx.Rollback()

	person := graphstore.MustType("person")
	a, b := graphstore.NewVertex(person), graphstore.NewVertex(person)
	key := graphstore.NewEdgeKey(a.ID, graphstore.MustType("knows"), b.ID)
	require.NoError(t, tx.SetVertices([]graphstore.Vertex{a, b}))
	require.NoError(t, tx.SetEdgeProperties(graphstore.EdgeProperties(graphstore.SingleEdge(key), person), []byte(`true`)))

	_, err = tx.CreateEdge(key)
	require.NoError(t, err)
	require.NoError(t, tx.SetEdgeProperties(graphstore.EdgeProperties(graphstore.SingleEdge(key), person), []byte(`true`)))
	_, err = tx.CreateEdge(key)
	require.NoError(t, err)

	props, err := tx.GetEdgeProperties(graphstore.EdgeProperties(graphstore.SingleEdge(key), person))
	require.NoError(t, err)
	assert.Len(t, props, 1, "refreshing an edge must keep its properties")
}

func Test_ConcurrentTransactions(t *testing.T) {
	ds, _ := openTemp(t, true)
	defer ds.Close()
	person := graphstore.MustType("person")

	reader, err := ds.Transaction()
	require.NoError(t, err)
	defer reader.Rollback()
	count, err := reader.GetVertexCount()
	require.NoError(t, err)
	assert.Zero(t, count)

	writer, err := ds.Transaction()
	require.NoError(t, err)
	count, err = writer.GetVertexCount()
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = writer.CreateVertex(graphstore.NewVertex(person))
	require.NoError(t, err)
	require.NoError(t, writer.Commit())

	// The reader keeps the snapshot it started with.
	count, err = reader.GetVertexCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func Test_PathNeedsEscaping(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "odd?dir#1 %20")
	require.NoError(t, os.Mkdir(dir, 0o755))
	path := filepath.Join(dir, "graph.db")

	ds, err := Open(Options{Path: path, PoolSize: 2, CreateSchema: true, Logger: log.New(io.Discard)})
	require.NoError(t, err)
	tx, err := ds.Transaction()
	require.NoError(t, err)
	_, err = tx.CreateVertex(graphstore.NewVertex(graphstore.MustType("person")))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.NoError(t, ds.Close())

	_, err = os.Stat(path)
	require.NoError(t, err, "database file belongs at the literal path")

	ds, err = Open(Options{Path: path, PoolSize: 2, Logger: log.New(io.Discard)})
	require.NoError(t, err)
	defer ds.Close()
	tx, err = ds.Transaction()
	require.NoError(t, err)
	defer tx.Rollback()
	count, err := tx.GetVertexCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func Test_SyncWithoutNextTransaction(t *testing.T) {
	ds, path := openTemp(t, true)
	tx, err := ds.Transaction()
	require.NoError(t, err)
	_, err = tx.CreateVertex(graphstore.NewVertex(graphstore.MustType("person")))
	require.NoError(t, err)

	// Closing the pool lets the commit through but refuses the next BEGIN.
	require.NoError(t, ds.Close())
	err = tx.Sync()
	require.Error(t, err)
	assert.ErrorContains(t, err, "committed")

	_, err = tx.GetVertexCount()
	assert.ErrorIs(t, err, sql.ErrTxDone)

	ds, err = Open(Options{Path: path, PoolSize: 2, Logger: log.New(io.Discard)})
	require.NoError(t, err)
	defer ds.Close()
	check, err := ds.Transaction()
	require.NoError(t, err)
	defer check.Rollback()
	count, err := check.GetVertexCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}
