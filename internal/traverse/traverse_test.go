package traverse

import (
	"testing"
	"time"

	"github.com/abstract-base-method/graphstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource answers lookups from plain slices so the evaluator can be
// tested without a backend.
type fakeSource struct {
	vertices []graphstore.Vertex
	edges    []graphstore.Edge
	calls    []uint32
}

func (f *fakeSource) VertexRange(start *graphstore.Identifier, t *graphstore.Type, limit uint32) ([]graphstore.Vertex, error) {
	var out []graphstore.Vertex
	for _, v := range f.vertices {
		if start != nil && v.ID.Compare(*start) <= 0 {
			continue
		}
		if t != nil && v.Type != *t {
			continue
		}
		out = append(out, v)
		if len(out) == int(limit) {
			break
		}
	}
	return out, nil
}

func (f *fakeSource) Vertex(id graphstore.Identifier) (graphstore.Vertex, bool, error) {
	for _, v := range f.vertices {
		if v.ID == id {
			return v, true, nil
		}
	}
	return graphstore.Vertex{}, false, nil
}

func (f *fakeSource) Edge(key graphstore.EdgeKey) (graphstore.Edge, bool, error) {
	for _, e := range f.edges {
		if e.Key == key {
			return e, true, nil
		}
	}
	return graphstore.Edge{}, false, nil
}

func (f *fakeSource) VertexEdges(id graphstore.Identifier, direction graphstore.EdgeDirection, filter Filter, limit uint32) ([]graphstore.Edge, error) {
	f.calls = append(f.calls, limit)
	var out []graphstore.Edge
	for _, e := range f.edges {
		near := e.Key.OutboundID
		if direction == graphstore.Inbound {
			near = e.Key.InboundID
		}
		if near == id && filter.Match(e) {
			out = append(out, e)
		}
	}
	SortEdges(out, direction)
	if len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

var (
	knows = graphstore.MustType("knows")
	likes = graphstore.MustType("likes")
	epoch = time.Unix(1_700_000_000, 0).UTC()
)

func edge(out string, t graphstore.Type, in string, offset time.Duration) graphstore.Edge {
	return graphstore.Edge{
		Key:             graphstore.NewEdgeKey(graphstore.MustIdentifier(out), t, graphstore.MustIdentifier(in)),
		UpdateTimestamp: epoch.Add(offset),
	}
}

func TestSortEdgesTieBreak(t *testing.T) {
	edges := []graphstore.Edge{
		edge("a", likes, "b", 0),
		edge("a", knows, "c", 0),
		edge("a", knows, "b", 0),
		edge("a", knows, "z", time.Second),
	}
	SortEdges(edges, graphstore.Outbound)

	assert.Equal(t, []string{"z", "b", "c", "b"}, []string{
		edges[0].Key.InboundID.String(),
		edges[1].Key.InboundID.String(),
		edges[2].Key.InboundID.String(),
		edges[3].Key.InboundID.String(),
	})
	assert.Equal(t, likes, edges[3].Key.Type)
}

func TestFilterBoundsAreInclusive(t *testing.T) {
	e := edge("a", knows, "b", 0)
	at := e.UpdateTimestamp

	assert.True(t, Filter{High: &at, Low: &at}.Match(e))
	before := at.Add(-time.Nanosecond)
	assert.False(t, Filter{High: &before}.Match(e))
	after := at.Add(time.Nanosecond)
	assert.False(t, Filter{Low: &after}.Match(e))
	assert.False(t, Filter{Type: &likes}.Match(e))
}

func TestEdgesPassesRemainingLimit(t *testing.T) {
	src := &fakeSource{
		vertices: []graphstore.Vertex{
			{ID: graphstore.MustIdentifier("a"), Type: knows},
			{ID: graphstore.MustIdentifier("b"), Type: knows},
		},
		edges: []graphstore.Edge{
			edge("a", knows, "b", 0),
			edge("a", knows, "c", time.Second),
			edge("b", knows, "a", 0),
			edge("b", knows, "c", time.Second),
		},
	}

	q := graphstore.OutboundEdges(graphstore.SpecificVertices(graphstore.MustIdentifier("a"), graphstore.MustIdentifier("b")), 3)
	got, err := Edges(src, q)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []uint32{3, 1}, src.calls)
	assert.Equal(t, "c", got[2].Key.InboundID.String())
}

func TestVerticesPipeDedupsInFirstSeenOrder(t *testing.T) {
	src := &fakeSource{
		vertices: []graphstore.Vertex{
			{ID: graphstore.MustIdentifier("a"), Type: knows},
			{ID: graphstore.MustIdentifier("b"), Type: knows},
		},
		edges: []graphstore.Edge{
			edge("a", knows, "b", 0),
			edge("a", likes, "b", time.Second),
			edge("a", knows, "ghost", 2*time.Second),
		},
	}

	q := graphstore.InboundVertices(graphstore.OutboundEdges(graphstore.SingleVertex(graphstore.MustIdentifier("a")), 10), 10)
	got, err := Vertices(src, q)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID.String())
}

type unknownQuery struct{ graphstore.VertexQuery }

func TestVerticesUnknownQuery(t *testing.T) {
	_, err := Vertices(&fakeSource{}, unknownQuery{})
	assert.Error(t, err)
}
