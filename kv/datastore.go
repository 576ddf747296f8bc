// Package kv is a graphstore backend over any ordered key-value Engine.
// Badger is built in; the redis package provides a second engine.
//
// Every mutation reads what it needs from a consistent view, then commits
// one atomic batch. A datastore-wide mutex keeps those read-modify-write
// cycles from interleaving.
package kv

import (
	"sync"

	"github.com/abstract-base-method/graphstore"
	"github.com/abstract-base-method/graphstore/internal/clock"
	"github.com/abstract-base-method/graphstore/internal/traverse"
	"github.com/charmbracelet/log"
)

const backendName = "kv"

type Datastore struct {
	engine Engine
	logger *log.Logger
	clock  *clock.Clock

	writeMu sync.Mutex
}

// NewDatastore takes ownership of engine; Close closes it.
func NewDatastore(engine Engine, logger *log.Logger) *Datastore {
	if logger == nil {
		logger = log.Default().WithPrefix(backendName)
	}
	return &Datastore{
		engine: engine,
		logger: logger,
		clock:  clock.New(),
	}
}

// OpenBadgerDatastore opens a Badger engine and wraps it in a Datastore.
func OpenBadgerDatastore(opts BadgerOptions) (*Datastore, error) {
	engine, err := OpenBadger(opts)
	if err != nil {
		return nil, graphstore.NewError(backendName, "open", err)
	}
	return NewDatastore(engine, opts.Logger), nil
}

func (d *Datastore) Transaction() (graphstore.Transaction, error) {
	return &Transaction{datastore: d}, nil
}

func (d *Datastore) Close() error {
	return graphstore.NewError(backendName, "close", d.engine.Close())
}

// view runs fn against a consistent snapshot.
func (d *Datastore) view(fn func(Reader) error) error {
	return d.engine.View(fn)
}

// mutate stages writes from a snapshot and commits them as one batch.
func (d *Datastore) mutate(fn func(r Reader, b *Batch) error) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	batch := &Batch{}
	if err := d.engine.View(func(r Reader) error { return fn(r, batch) }); err != nil {
		return err
	}
	if err := d.engine.Write(batch); err != nil {
		d.logger.Error("failed to write batch", "ops", batch.Len(), "error", err)
		return err
	}
	return nil
}

// source adapts a Reader to the query evaluator.
type source struct {
	r Reader
}

func (s source) VertexRange(start *graphstore.Identifier, t *graphstore.Type, limit uint32) ([]graphstore.Vertex, error) {
	return vertexManager{s.r}.rangeFrom(start, t, limit)
}

func (s source) Vertex(id graphstore.Identifier) (graphstore.Vertex, bool, error) {
	return vertexManager{s.r}.get(id)
}

func (s source) Edge(key graphstore.EdgeKey) (graphstore.Edge, bool, error) {
	return edgeManager{s.r}.get(key)
}

func (s source) VertexEdges(id graphstore.Identifier, direction graphstore.EdgeDirection, filter traverse.Filter, limit uint32) ([]graphstore.Edge, error) {
	ranges := edgeRangeManager{r: s.r, reversed: direction == graphstore.Inbound}

	// A typed scan already yields the final order and can stop early.
	typed := filter.Type != nil
	var edges []graphstore.Edge
	err := ranges.iterate(id, &filter, func(e graphstore.Edge) (bool, error) {
		edges = append(edges, e)
		return !typed || len(edges) < int(limit), nil
	})
	if err != nil {
		return nil, err
	}

	if !typed {
		traverse.SortEdges(edges, direction)
	}
	if len(edges) > int(limit) {
		edges = edges[:limit]
	}
	return edges, nil
}
