package kv

import (
	"errors"
	"io"
	"testing"

	"github.com/abstract-base-method/graphstore"
	"github.com/abstract-base-method/graphstore/internal/graphtest"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func openBadger(t *testing.T, path string) *Datastore {
	t.Helper()
	ds, err := OpenBadgerDatastore(BadgerOptions{Path: path, Logger: quietLogger()})
	require.NoError(t, err)
	return ds
}

func Test_Suite(t *testing.T) {
	graphtest.RunSuite(t, func(t *testing.T) graphstore.Datastore {
		return openBadger(t, t.TempDir())
	})
}

func Test_SuiteInMemory(t *testing.T) {
	graphtest.RunSuite(t, func(t *testing.T) graphstore.Datastore {
		ds, err := OpenBadgerDatastore(BadgerOptions{InMemory: true, Logger: quietLogger()})
		require.NoError(t, err)
		return ds
	})
}

func Test_Reopen(t *testing.T) {
	path := t.TempDir()
	person := graphstore.MustType("person")
	knows := graphstore.MustType("knows")
	a := graphstore.NewVertex(person)
	b := graphstore.NewVertex(person)
	key := graphstore.NewEdgeKey(a.ID, knows, b.ID)

	ds := openBadger(t, path)
	tx, err := ds.Transaction()
	require.NoError(t, err)
	require.NoError(t, tx.BulkInsert([]graphstore.BulkInsertItem{
		graphstore.VertexItem{Vertex: a},
		graphstore.VertexItem{Vertex: b},
		graphstore.EdgeItem{Key: key},
		graphstore.EdgePropertyItem{Key: key, Name: knows, Value: []byte(`{"since":2020}`)},
	}))
	require.NoError(t, tx.Sync())
	require.NoError(t, ds.Close())

	ds = openBadger(t, path)
	defer ds.Close()
	tx, err = ds.Transaction()
	require.NoError(t, err)

	edges, err := tx.GetEdges(graphstore.InboundEdges(graphstore.SingleVertex(b.ID), 10))
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, key, edges[0].Key)

	props, err := tx.GetEdgeProperties(graphstore.EdgeProperties(graphstore.SingleEdge(key), knows))
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, `{"since":2020}`, string(props[0].Value))
}

func Test_RollbackUnsupported(t *testing.T) {
	ds := openBadger(t, t.TempDir())
	defer ds.Close()
	tx, err := ds.Transaction()
	require.NoError(t, err)

	assert.NoError(t, tx.Commit())
	assert.True(t, errors.Is(tx.Rollback(), graphstore.ErrUnsupported))
}

func Test_RefreshedEdgeLeavesNoStaleRange(t *testing.T) {
	ds := openBadger(t, t.TempDir())
	defer ds.Close()
	tx, _ := ds.Transaction()

	person := graphstore.MustType("person")
	knows := graphstore.MustType("knows")
	a, b := graphstore.NewVertex(person), graphstore.NewVertex(person)
	_, err := tx.CreateVertex(a)
	require.NoError(t, err)
	_, err = tx.CreateVertex(b)
	require.NoError(t, err)

	key := graphstore.NewEdgeKey(a.ID, knows, b.ID)
	for i := 0; i < 3; i++ {
		ok, err := tx.CreateEdge(key)
		require.NoError(t, err)
		require.True(t, ok)
	}

	for _, ns := range []string{EdgeRangesNamespace, ReversedEdgeRangesNamespace} {
		n := 0
		require.NoError(t, ds.engine.View(func(r Reader) error {
			return r.Iterate(ns, nil, nil, func(_, _ []byte) (bool, error) {
				n++
				return true, nil
			})
		}))
		assert.Equal(t, 1, n, ns)
	}
}

func Test_BadgerIterateFrom(t *testing.T) {
	engine, err := OpenBadger(BadgerOptions{InMemory: true, Logger: quietLogger()})
	require.NoError(t, err)
	defer engine.Close()

	batch := &Batch{}
	for _, k := range []string{"a1", "a2", "a3", "b1"} {
		batch.Put("ns", []byte(k), []byte(k))
	}
	batch.Put("other", []byte("a0"), []byte("x"))
	require.NoError(t, engine.Write(batch))

	var seen []string
	require.NoError(t, engine.View(func(r Reader) error {
		return r.Iterate("ns", []byte("a2"), []byte("a"), func(key, value []byte) (bool, error) {
			seen = append(seen, string(key))
			return true, nil
		})
	}))
	assert.Equal(t, []string{"a2", "a3"}, seen)

	batch = &Batch{}
	batch.Delete("ns", []byte("a2"))
	require.NoError(t, engine.Write(batch))
	require.NoError(t, engine.View(func(r Reader) error {
		_, ok, err := r.Get("ns", []byte("a2"))
		assert.False(t, ok)
		return err
	}))
}
