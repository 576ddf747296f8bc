// Package memory is an in-memory graphstore backend. All state lives behind
// one reader/writer lock: a single writer at a time across the whole store,
// no rollback, and every mutating call is final once it returns.
package memory

import (
	"encoding/json"
	"sync"

	"github.com/abstract-base-method/graphstore"
	"github.com/abstract-base-method/graphstore/internal/clock"
	"github.com/abstract-base-method/graphstore/internal/traverse"
	"github.com/charmbracelet/log"
	"github.com/google/btree"
)

const backendName = "memory"

const btreeDegree = 32

type properties map[graphstore.Type]json.RawMessage

// named lists the properties ordered by name. A nil map yields an empty,
// non-nil slice.
func (p properties) named() []graphstore.NamedProperty {
	out := make([]graphstore.NamedProperty, 0, len(p))
	for name, value := range p {
		out = append(out, graphstore.NamedProperty{Name: name, Value: value})
	}
	graphstore.SortNamedProperties(out)
	return out
}

// store is guarded by Datastore.mu. Nothing in here locks.
type store struct {
	vertices         *btree.BTreeG[graphstore.Vertex]
	edges            *btree.BTreeG[graphstore.Edge]
	reversedEdges    *btree.BTreeG[graphstore.EdgeKey]
	vertexProperties map[graphstore.Identifier]properties
	edgeProperties   map[graphstore.EdgeKey]properties
}

func newStore() *store {
	return &store{
		vertices: btree.NewG(btreeDegree, func(a, b graphstore.Vertex) bool {
			return a.ID.Compare(b.ID) < 0
		}),
		edges: btree.NewG(btreeDegree, func(a, b graphstore.Edge) bool {
			return a.Key.Compare(b.Key) < 0
		}),
		reversedEdges: btree.NewG(btreeDegree, func(a, b graphstore.EdgeKey) bool {
			return a.Compare(b) < 0
		}),
		vertexProperties: make(map[graphstore.Identifier]properties),
		edgeProperties:   make(map[graphstore.EdgeKey]properties),
	}
}

func (s *store) VertexRange(start *graphstore.Identifier, t *graphstore.Type, limit uint32) ([]graphstore.Vertex, error) {
	var results []graphstore.Vertex
	visit := func(v graphstore.Vertex) bool {
		if start != nil && v.ID == *start {
			return true
		}
		if t != nil && v.Type != *t {
			return true
		}
		results = append(results, v)
		return len(results) < int(limit)
	}

	if start != nil {
		s.vertices.AscendGreaterOrEqual(graphstore.Vertex{ID: *start}, visit)
	} else {
		s.vertices.Ascend(visit)
	}
	return results, nil
}

func (s *store) Vertex(id graphstore.Identifier) (graphstore.Vertex, bool, error) {
	v, ok := s.vertices.Get(graphstore.Vertex{ID: id})
	return v, ok, nil
}

func (s *store) Edge(key graphstore.EdgeKey) (graphstore.Edge, bool, error) {
	e, ok := s.edges.Get(graphstore.Edge{Key: key})
	return e, ok, nil
}

func (s *store) VertexEdges(id graphstore.Identifier, direction graphstore.EdgeDirection, filter traverse.Filter, limit uint32) ([]graphstore.Edge, error) {
	var edges []graphstore.Edge
	for _, key := range s.edgeKeysOf(id, direction, filter.Type) {
		e, ok := s.edges.Get(graphstore.Edge{Key: key})
		if ok && filter.Match(e) {
			edges = append(edges, e)
		}
	}
	traverse.SortEdges(edges, direction)
	if len(edges) > int(limit) {
		edges = edges[:limit]
	}
	return edges, nil
}

// edgeKeysOf range scans the forward or reversed index for the edges on
// the direction side of id, restricted to type t when set.
func (s *store) edgeKeysOf(id graphstore.Identifier, direction graphstore.EdgeDirection, t *graphstore.Type) []graphstore.EdgeKey {
	var lower graphstore.EdgeKey
	lower.OutboundID = id
	if t != nil {
		lower.Type = *t
	}

	inRange := func(k graphstore.EdgeKey) bool {
		return k.OutboundID == id && (t == nil || k.Type == *t)
	}

	var keys []graphstore.EdgeKey
	if direction == graphstore.Outbound {
		s.edges.AscendGreaterOrEqual(graphstore.Edge{Key: lower}, func(e graphstore.Edge) bool {
			if !inRange(e.Key) {
				return false
			}
			keys = append(keys, e.Key)
			return true
		})
	} else {
		s.reversedEdges.AscendGreaterOrEqual(lower, func(k graphstore.EdgeKey) bool {
			if !inRange(k) {
				return false
			}
			keys = append(keys, k.Reversed())
			return true
		})
	}
	return keys
}

func (s *store) deleteVertex(id graphstore.Identifier) {
	if _, ok := s.vertices.Delete(graphstore.Vertex{ID: id}); !ok {
		return
	}
	delete(s.vertexProperties, id)

	for _, key := range s.edgeKeysOf(id, graphstore.Outbound, nil) {
		s.deleteEdge(key)
	}
	for _, key := range s.edgeKeysOf(id, graphstore.Inbound, nil) {
		s.deleteEdge(key)
	}
	log.Debugf("deleted vertex %s", id)
}

func (s *store) deleteEdge(key graphstore.EdgeKey) {
	s.edges.Delete(graphstore.Edge{Key: key})
	s.reversedEdges.Delete(key.Reversed())
	delete(s.edgeProperties, key)
}

// Datastore is an in-memory graph. The zero value is not usable; call
// NewDatastore.
type Datastore struct {
	mu    sync.RWMutex
	data  *store
	clock *clock.Clock
}

func NewDatastore() *Datastore {
	return &Datastore{
		data:  newStore(),
		clock: clock.New(),
	}
}

func (d *Datastore) Transaction() (graphstore.Transaction, error) {
	return &Transaction{datastore: d}, nil
}

func (d *Datastore) Close() error {
	return nil
}
