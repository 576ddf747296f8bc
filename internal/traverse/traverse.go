// Package traverse evaluates vertex and edge query trees over any storage
// that can answer a handful of primitive lookups.
package traverse

import (
	"fmt"
	"sort"
	"time"

	"github.com/abstract-base-method/graphstore"
)

// Source is what a backend exposes to the evaluator.
type Source interface {
	// VertexRange returns vertices with id strictly greater than start (or
	// from the beginning when start is nil) in ascending id order, keeping
	// only type t when set, at most limit of them.
	VertexRange(start *graphstore.Identifier, t *graphstore.Type, limit uint32) ([]graphstore.Vertex, error)
	Vertex(id graphstore.Identifier) (graphstore.Vertex, bool, error)
	Edge(key graphstore.EdgeKey) (graphstore.Edge, bool, error)
	// VertexEdges returns at most limit edges on the direction side of id
	// that pass filter, in the order SortEdges defines.
	VertexEdges(id graphstore.Identifier, direction graphstore.EdgeDirection, filter Filter, limit uint32) ([]graphstore.Edge, error)
}

// Filter holds the edge predicates of a pipe, applied in field order.
type Filter struct {
	Type *graphstore.Type
	High *time.Time
	Low  *time.Time
}

func (f Filter) Match(e graphstore.Edge) bool {
	if f.Type != nil && e.Key.Type != *f.Type {
		return false
	}
	if f.High != nil && e.UpdateTimestamp.After(*f.High) {
		return false
	}
	if f.Low != nil && e.UpdateTimestamp.Before(*f.Low) {
		return false
	}
	return true
}

// SortEdges puts the edges of one vertex in pipe order: newest first, then
// type ascending, then the far endpoint ascending.
func SortEdges(edges []graphstore.Edge, direction graphstore.EdgeDirection) {
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if !a.UpdateTimestamp.Equal(b.UpdateTimestamp) {
			return a.UpdateTimestamp.After(b.UpdateTimestamp)
		}
		if a.Key.Type != b.Key.Type {
			return a.Key.Type.String() < b.Key.Type.String()
		}
		return far(a.Key, direction).Compare(far(b.Key, direction)) < 0
	})
}

func far(key graphstore.EdgeKey, direction graphstore.EdgeDirection) graphstore.Identifier {
	if direction == graphstore.Outbound {
		return key.InboundID
	}
	return key.OutboundID
}

// Vertices evaluates q innermost stage first.
func Vertices(src Source, q graphstore.VertexQuery) ([]graphstore.Vertex, error) {
	switch q := q.(type) {
	case graphstore.AllVertexQuery:
		if q.Limit == 0 {
			return nil, nil
		}
		return src.VertexRange(q.StartID, q.TypeFilter, q.Limit)
	case graphstore.SpecificVertexQuery:
		var results []graphstore.Vertex
		for _, id := range q.IDs {
			v, ok, err := src.Vertex(id)
			if err != nil {
				return nil, err
			}
			if ok {
				results = append(results, v)
			}
		}
		return results, nil
	case graphstore.PipeVertexQuery:
		if q.Limit == 0 {
			return nil, nil
		}
		edges, err := Edges(src, q.Inner)
		if err != nil {
			return nil, err
		}
		seen := make(map[graphstore.Identifier]struct{}, len(edges))
		var results []graphstore.Vertex
		for _, e := range edges {
			id := e.Key.OutboundID
			if q.Direction == graphstore.Inbound {
				id = e.Key.InboundID
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}

			v, ok, err := src.Vertex(id)
			if err != nil {
				return nil, err
			}
			if !ok || (q.TypeFilter != nil && v.Type != *q.TypeFilter) {
				continue
			}
			results = append(results, v)
			if len(results) == int(q.Limit) {
				break
			}
		}
		return results, nil
	default:
		return nil, fmt.Errorf("unsupported vertex query %T", q)
	}
}

// Edges evaluates q innermost stage first.
func Edges(src Source, q graphstore.EdgeQuery) ([]graphstore.Edge, error) {
	switch q := q.(type) {
	case graphstore.SpecificEdgeQuery:
		var results []graphstore.Edge
		for _, key := range q.Keys {
			e, ok, err := src.Edge(key)
			if err != nil {
				return nil, err
			}
			if ok {
				results = append(results, e)
			}
		}
		return results, nil
	case graphstore.PipeEdgeQuery:
		if q.Limit == 0 {
			return nil, nil
		}
		vertices, err := Vertices(src, q.Inner)
		if err != nil {
			return nil, err
		}
		filter := Filter{Type: q.TypeFilter, High: q.High, Low: q.Low}
		var results []graphstore.Edge
		for _, v := range vertices {
			remaining := q.Limit - uint32(len(results))
			edges, err := src.VertexEdges(v.ID, q.Direction, filter, remaining)
			if err != nil {
				return nil, err
			}
			results = append(results, edges...)
			if len(results) >= int(q.Limit) {
				return results[:q.Limit], nil
			}
		}
		return results, nil
	default:
		return nil, fmt.Errorf("unsupported edge query %T", q)
	}
}
