// Package graphtest holds the behaviour every graphstore backend must share.
// Backend packages run it from their own tests through RunSuite.
package graphtest

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/abstract-base-method/graphstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Opener returns a fresh, empty datastore. Cleanup is the opener's business.
type Opener func(t *testing.T) graphstore.Datastore

var (
	person = graphstore.MustType("person")
	city   = graphstore.MustType("city")
	knows  = graphstore.MustType("knows")
	likes  = graphstore.MustType("likes")
	name   = graphstore.MustType("name")
)

func RunSuite(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, tx graphstore.Transaction)
	}{
		{"CreateAndGetVertex", testCreateAndGetVertex},
		{"CreateVertexTwice", testCreateVertexTwice},
		{"SetVertices", testSetVertices},
		{"SpecificVerticesOrder", testSpecificVerticesOrder},
		{"AllVerticesPaging", testAllVerticesPaging},
		{"AllVerticesVisitsEveryVertexOnce", testAllVerticesVisitsEveryVertexOnce},
		{"AllVerticesTypeFilter", testAllVerticesTypeFilter},
		{"ZeroLimit", testZeroLimit},
		{"VertexCount", testVertexCount},
		{"CreateAndGetEdge", testCreateAndGetEdge},
		{"CreateEdgeMissingEndpoint", testCreateEdgeMissingEndpoint},
		{"PipeEdgesNewestFirst", testPipeEdgesNewestFirst},
		{"PipeEdgesInbound", testPipeEdgesInbound},
		{"PipeEdgesLimit", testPipeEdgesLimit},
		{"RecreateEdgeRefreshesTimestamp", testRecreateEdgeRefreshesTimestamp},
		{"PipeEdgesTimeBounds", testPipeEdgesTimeBounds},
		{"PipeVertices", testPipeVertices},
		{"PipeVerticesTypeFilter", testPipeVerticesTypeFilter},
		{"EdgeCount", testEdgeCount},
		{"DeleteEdges", testDeleteEdges},
		{"DeleteVertexCascades", testDeleteVertexCascades},
		{"VertexProperties", testVertexProperties},
		{"VertexPropertiesInvalidJSON", testVertexPropertiesInvalidJSON},
		{"EdgeProperties", testEdgeProperties},
		{"DeleteEdgeDropsProperties", testDeleteEdgeDropsProperties},
		{"BulkInsert", testBulkInsert},
		{"BulkInsertStopsAtFailure", testBulkInsertStopsAtFailure},
		{"LongIdentifiers", testLongIdentifiers},
		{"Sync", testSync},
		{"ZeroTypeRejected", testZeroTypeRejected},
		{"LargeSpecificQueries", testLargeSpecificQueries},
		{"AllVertexProperties", testAllVertexProperties},
		{"AllEdgeProperties", testAllEdgeProperties},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ds := open(t)
			t.Cleanup(func() { _ = ds.Close() })

			tx, err := ds.Transaction()
			require.NoError(t, err)
			tc.fn(t, tx)
		})
	}
}

func id(s string) graphstore.Identifier {
	return graphstore.MustIdentifier(s)
}

func vertex(s string, t graphstore.Type) graphstore.Vertex {
	return graphstore.Vertex{ID: id(s), Type: t}
}

func createVertices(t *testing.T, tx graphstore.Transaction, vertices ...graphstore.Vertex) {
	t.Helper()
	for _, v := range vertices {
		ok, err := tx.CreateVertex(v)
		require.NoError(t, err)
		require.True(t, ok, "vertex %s already existed", v.ID)
	}
}

func createEdges(t *testing.T, tx graphstore.Transaction, keys ...graphstore.EdgeKey) {
	t.Helper()
	for _, k := range keys {
		ok, err := tx.CreateEdge(k)
		require.NoError(t, err)
		require.True(t, ok, "edge %v was not created", k)
	}
}

func ids(vertices []graphstore.Vertex) []string {
	out := make([]string, 0, len(vertices))
	for _, v := range vertices {
		out = append(out, v.ID.String())
	}
	return out
}

func keys(edges []graphstore.Edge) []graphstore.EdgeKey {
	out := make([]graphstore.EdgeKey, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.Key)
	}
	return out
}

func testCreateAndGetVertex(t *testing.T, tx graphstore.Transaction) {
	v := graphstore.NewVertex(person)
	createVertices(t, tx, v)

	got, err := tx.GetVertices(graphstore.SingleVertex(v.ID))
	require.NoError(t, err)
	require.Equal(t, []graphstore.Vertex{v}, got)

	got, err = tx.GetVertices(graphstore.SingleVertex(id("missing")))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testCreateVertexTwice(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person))

	ok, err := tx.CreateVertex(vertex("a", city))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := tx.GetVertices(graphstore.SingleVertex(id("a")))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, person, got[0].Type)
}

func testSetVertices(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person))
	require.NoError(t, tx.SetVertices([]graphstore.Vertex{vertex("a", city), vertex("b", city)}))

	got, err := tx.GetVertices(graphstore.SpecificVertices(id("a"), id("b")))
	require.NoError(t, err)
	assert.Equal(t, []graphstore.Vertex{vertex("a", city), vertex("b", city)}, got)
}

func testSpecificVerticesOrder(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person), vertex("b", person), vertex("c", person))

	got, err := tx.GetVertices(graphstore.SpecificVertices(id("c"), id("missing"), id("a"), id("c")))
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "c"}, ids(got))

	got, err = tx.GetVertices(graphstore.SpecificVertices())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testAllVerticesPaging(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx,
		vertex("v3", person), vertex("v1", person), vertex("v5", person),
		vertex("v2", person), vertex("v4", person))

	got, err := tx.GetVertices(graphstore.AllVertices(3))
	require.NoError(t, err)
	require.Equal(t, []string{"v1", "v2", "v3"}, ids(got))

	got, err = tx.GetVertices(graphstore.AllVertices(3).WithStart(got[2].ID))
	require.NoError(t, err)
	assert.Equal(t, []string{"v4", "v5"}, ids(got))
}

func testAllVerticesVisitsEveryVertexOnce(t *testing.T, tx graphstore.Transaction) {
	for i := 0; i < 25; i++ {
		createVertices(t, tx, graphstore.NewVertex(person))
	}

	seen := make(map[graphstore.Identifier]bool)
	q := graphstore.AllVertices(4)
	for {
		page, err := tx.GetVertices(q)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for i, v := range page {
			require.False(t, seen[v.ID], "vertex %x seen twice", v.ID.Bytes())
			seen[v.ID] = true
			if i > 0 {
				require.Negative(t, page[i-1].ID.Compare(v.ID))
			}
		}
		q = q.WithStart(page[len(page)-1].ID)
	}
	assert.Len(t, seen, 25)
}

func testAllVerticesTypeFilter(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx,
		vertex("a", person), vertex("b", city), vertex("c", person), vertex("d", city), vertex("e", person))

	got, err := tx.GetVertices(graphstore.AllVertices(2).WithType(person))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(got))

	got, err = tx.GetVertices(graphstore.AllVertices(10).WithType(city).WithStart(id("b")))
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, ids(got))
}

func testZeroLimit(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person), vertex("b", person))
	createEdges(t, tx, graphstore.NewEdgeKey(id("a"), knows, id("b")))

	vertices, err := tx.GetVertices(graphstore.AllVertices(0))
	require.NoError(t, err)
	assert.Empty(t, vertices)

	edges, err := tx.GetEdges(graphstore.OutboundEdges(graphstore.SingleVertex(id("a")), 0))
	require.NoError(t, err)
	assert.Empty(t, edges)

	vertices, err = tx.GetVertices(graphstore.InboundVertices(graphstore.OutboundEdges(graphstore.SingleVertex(id("a")), 10), 0))
	require.NoError(t, err)
	assert.Empty(t, vertices)
}

func testVertexCount(t *testing.T, tx graphstore.Transaction) {
	count, err := tx.GetVertexCount()
	require.NoError(t, err)
	assert.Zero(t, count)

	createVertices(t, tx, vertex("a", person), vertex("b", person), vertex("c", city))
	count, err = tx.GetVertexCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func testCreateAndGetEdge(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person), vertex("b", person))
	key := graphstore.NewEdgeKey(id("a"), knows, id("b"))

	before := time.Now().Add(-time.Second)
	createEdges(t, tx, key)

	got, err := tx.GetEdges(graphstore.SingleEdge(key))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, key, got[0].Key)
	assert.True(t, got[0].UpdateTimestamp.After(before))

	got, err = tx.GetEdges(graphstore.SingleEdge(key.Reversed()))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testCreateEdgeMissingEndpoint(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person))

	for _, key := range []graphstore.EdgeKey{
		graphstore.NewEdgeKey(id("a"), knows, id("missing")),
		graphstore.NewEdgeKey(id("missing"), knows, id("a")),
	} {
		ok, err := tx.CreateEdge(key)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := tx.GetEdges(graphstore.SingleEdge(key))
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func testPipeEdgesNewestFirst(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("v1", person), vertex("v2", person), vertex("v3", person))
	first := graphstore.NewEdgeKey(id("v1"), knows, id("v2"))
	second := graphstore.NewEdgeKey(id("v1"), knows, id("v3"))
	other := graphstore.NewEdgeKey(id("v1"), likes, id("v2"))
	createEdges(t, tx, first, second, other)

	got, err := tx.GetEdges(graphstore.OutboundEdges(graphstore.SingleVertex(id("v1")), 10).WithType(knows))
	require.NoError(t, err)
	assert.Equal(t, []graphstore.EdgeKey{second, first}, keys(got))
	assert.True(t, got[0].UpdateTimestamp.After(got[1].UpdateTimestamp))

	got, err = tx.GetEdges(graphstore.OutboundEdges(graphstore.SingleVertex(id("v1")), 10))
	require.NoError(t, err)
	assert.Equal(t, []graphstore.EdgeKey{other, second, first}, keys(got))
}

func testPipeEdgesInbound(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person), vertex("b", person), vertex("c", person))
	ab := graphstore.NewEdgeKey(id("a"), knows, id("b"))
	cb := graphstore.NewEdgeKey(id("c"), knows, id("b"))
	bc := graphstore.NewEdgeKey(id("b"), knows, id("c"))
	createEdges(t, tx, ab, cb, bc)

	got, err := tx.GetEdges(graphstore.InboundEdges(graphstore.SingleVertex(id("b")), 10))
	require.NoError(t, err)
	assert.Equal(t, []graphstore.EdgeKey{cb, ab}, keys(got))

	got, err = tx.GetEdges(graphstore.OutboundEdges(graphstore.SingleVertex(id("b")), 10))
	require.NoError(t, err)
	assert.Equal(t, []graphstore.EdgeKey{bc}, keys(got))
}

func testPipeEdgesLimit(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person), vertex("b", person), vertex("c", person), vertex("d", person))
	createEdges(t, tx,
		graphstore.NewEdgeKey(id("a"), knows, id("b")),
		graphstore.NewEdgeKey(id("a"), knows, id("c")),
		graphstore.NewEdgeKey(id("b"), knows, id("c")),
		graphstore.NewEdgeKey(id("b"), knows, id("d")))

	q := graphstore.OutboundEdges(graphstore.SpecificVertices(id("a"), id("b")), 3)
	got, err := tx.GetEdges(q)
	require.NoError(t, err)
	assert.Equal(t, []graphstore.EdgeKey{
		graphstore.NewEdgeKey(id("a"), knows, id("c")),
		graphstore.NewEdgeKey(id("a"), knows, id("b")),
		graphstore.NewEdgeKey(id("b"), knows, id("d")),
	}, keys(got))
}

func testRecreateEdgeRefreshesTimestamp(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person), vertex("b", person), vertex("c", person))
	ab := graphstore.NewEdgeKey(id("a"), knows, id("b"))
	ac := graphstore.NewEdgeKey(id("a"), knows, id("c"))
	createEdges(t, tx, ab, ac)

	before, err := tx.GetEdges(graphstore.SingleEdge(ab))
	require.NoError(t, err)
	require.Len(t, before, 1)

	createEdges(t, tx, ab)
	after, err := tx.GetEdges(graphstore.SingleEdge(ab))
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.True(t, after[0].UpdateTimestamp.After(before[0].UpdateTimestamp))

	got, err := tx.GetEdges(graphstore.OutboundEdges(graphstore.SingleVertex(id("a")), 10))
	require.NoError(t, err)
	assert.Equal(t, []graphstore.EdgeKey{ab, ac}, keys(got))

	count, err := tx.GetEdgeCount(id("a"), nil, graphstore.Outbound)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func testPipeEdgesTimeBounds(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person), vertex("b", person), vertex("c", person), vertex("d", person))
	ab := graphstore.NewEdgeKey(id("a"), knows, id("b"))
	ac := graphstore.NewEdgeKey(id("a"), knows, id("c"))
	ad := graphstore.NewEdgeKey(id("a"), knows, id("d"))
	createEdges(t, tx, ab, ac, ad)

	all, err := tx.GetEdges(graphstore.SpecificEdges(ab, ac, ad))
	require.NoError(t, err)
	require.Len(t, all, 3)
	middle := all[1].UpdateTimestamp

	from := graphstore.SingleVertex(id("a"))
	for _, q := range []graphstore.PipeEdgeQuery{
		graphstore.OutboundEdges(from, 10).WithHigh(middle),
		graphstore.OutboundEdges(from, 10).WithType(knows).WithHigh(middle),
	} {
		got, err := tx.GetEdges(q)
		require.NoError(t, err)
		assert.Equal(t, []graphstore.EdgeKey{ac, ab}, keys(got))
	}

	for _, q := range []graphstore.PipeEdgeQuery{
		graphstore.OutboundEdges(from, 10).WithLow(middle),
		graphstore.OutboundEdges(from, 10).WithType(knows).WithLow(middle),
	} {
		got, err := tx.GetEdges(q)
		require.NoError(t, err)
		assert.Equal(t, []graphstore.EdgeKey{ad, ac}, keys(got))
	}

	got, err := tx.GetEdges(graphstore.OutboundEdges(from, 10).WithType(knows).WithHigh(middle).WithLow(middle))
	require.NoError(t, err)
	assert.Equal(t, []graphstore.EdgeKey{ac}, keys(got))
}

func testPipeVertices(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("v1", person), vertex("v2", person), vertex("v3", person))
	createEdges(t, tx,
		graphstore.NewEdgeKey(id("v1"), knows, id("v2")),
		graphstore.NewEdgeKey(id("v1"), knows, id("v3")))

	edges := graphstore.OutboundEdges(graphstore.SingleVertex(id("v1")), 10).WithType(knows)

	got, err := tx.GetVertices(graphstore.InboundVertices(edges, 10))
	require.NoError(t, err)
	assert.Equal(t, []string{"v3", "v2"}, ids(got))

	got, err = tx.GetVertices(graphstore.OutboundVertices(edges, 10))
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, ids(got))

	got, err = tx.GetVertices(graphstore.InboundVertices(edges, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"v3"}, ids(got))
}

func testPipeVerticesTypeFilter(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person), vertex("b", city), vertex("c", person))
	createEdges(t, tx,
		graphstore.NewEdgeKey(id("a"), likes, id("b")),
		graphstore.NewEdgeKey(id("a"), knows, id("c")))

	edges := graphstore.OutboundEdges(graphstore.SingleVertex(id("a")), 10)
	got, err := tx.GetVertices(graphstore.InboundVertices(edges, 1).WithType(person))
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(got))
}

func testEdgeCount(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person), vertex("b", person), vertex("c", person))
	createEdges(t, tx,
		graphstore.NewEdgeKey(id("a"), knows, id("b")),
		graphstore.NewEdgeKey(id("a"), likes, id("b")),
		graphstore.NewEdgeKey(id("a"), knows, id("c")),
		graphstore.NewEdgeKey(id("c"), knows, id("a")))

	cases := []struct {
		id        string
		typ       *graphstore.Type
		direction graphstore.EdgeDirection
		want      uint64
	}{
		{"a", nil, graphstore.Outbound, 3},
		{"a", &knows, graphstore.Outbound, 2},
		{"a", &likes, graphstore.Outbound, 1},
		{"a", nil, graphstore.Inbound, 1},
		{"b", nil, graphstore.Inbound, 2},
		{"b", &knows, graphstore.Inbound, 1},
		{"b", nil, graphstore.Outbound, 0},
		{"missing", nil, graphstore.Outbound, 0},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%s/%s", c.id, c.direction), func(t *testing.T) {
			count, err := tx.GetEdgeCount(id(c.id), c.typ, c.direction)
			require.NoError(t, err)
			assert.Equal(t, c.want, count)

			q := graphstore.PipeEdgeQuery{Inner: graphstore.SingleVertex(id(c.id)), Direction: c.direction, TypeFilter: c.typ, Limit: 1 << 31}
			edges, err := tx.GetEdges(q)
			require.NoError(t, err)
			assert.Len(t, edges, int(c.want))
		})
	}
}

func testDeleteEdges(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person), vertex("b", person), vertex("c", person))
	ab := graphstore.NewEdgeKey(id("a"), knows, id("b"))
	ac := graphstore.NewEdgeKey(id("a"), knows, id("c"))
	createEdges(t, tx, ab, ac)

	require.NoError(t, tx.DeleteEdges(graphstore.SingleEdge(ab)))

	got, err := tx.GetEdges(graphstore.OutboundEdges(graphstore.SingleVertex(id("a")), 10))
	require.NoError(t, err)
	assert.Equal(t, []graphstore.EdgeKey{ac}, keys(got))

	got, err = tx.GetEdges(graphstore.InboundEdges(graphstore.SingleVertex(id("b")), 10))
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, tx.DeleteEdges(graphstore.SingleEdge(ab)))
}

func testDeleteVertexCascades(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person), vertex("b", person), vertex("c", person))
	ab := graphstore.NewEdgeKey(id("a"), knows, id("b"))
	ca := graphstore.NewEdgeKey(id("c"), knows, id("a"))
	bc := graphstore.NewEdgeKey(id("b"), knows, id("c"))
	createEdges(t, tx, ab, ca, bc)

	value := json.RawMessage(`"x"`)
	require.NoError(t, tx.SetVertexProperties(graphstore.VertexProperties(graphstore.SpecificVertices(id("a"), id("b")), name), value))
	require.NoError(t, tx.SetEdgeProperties(graphstore.EdgeProperties(graphstore.SpecificEdges(ab, ca, bc), name), value))

	require.NoError(t, tx.DeleteVertices(graphstore.SingleVertex(id("a"))))

	vertices, err := tx.GetVertices(graphstore.AllVertices(10))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids(vertices))

	edges, err := tx.GetEdges(graphstore.SpecificEdges(ab, ca, bc))
	require.NoError(t, err)
	assert.Equal(t, []graphstore.EdgeKey{bc}, keys(edges))

	for _, far := range []string{"b", "c"} {
		edges, err = tx.GetEdges(graphstore.InboundEdges(graphstore.SingleVertex(id(far)), 10))
		require.NoError(t, err)
		for _, e := range edges {
			assert.NotEqual(t, "a", e.Key.OutboundID.String())
		}
	}

	vprops, err := tx.GetVertexProperties(graphstore.VertexProperties(graphstore.SpecificVertices(id("a"), id("b")), name))
	require.NoError(t, err)
	require.Len(t, vprops, 1)
	assert.Equal(t, "b", vprops[0].ID.String())

	eprops, err := tx.GetEdgeProperties(graphstore.EdgeProperties(graphstore.SpecificEdges(ab, ca, bc), name))
	require.NoError(t, err)
	require.Len(t, eprops, 1)
	assert.Equal(t, bc, eprops[0].Key)

	// a recreated vertex must not inherit anything
	createVertices(t, tx, vertex("a", person))
	vprops, err = tx.GetVertexProperties(graphstore.VertexProperties(graphstore.SingleVertex(id("a")), name))
	require.NoError(t, err)
	assert.Empty(t, vprops)
	count, err := tx.GetEdgeCount(id("a"), nil, graphstore.Outbound)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func testVertexProperties(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person), vertex("b", person))
	q := graphstore.VertexProperties(graphstore.SpecificVertices(id("a"), id("b"), id("missing")), name)

	got, err := tx.GetVertexProperties(q)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, tx.SetVertexProperties(graphstore.VertexProperties(graphstore.SingleVertex(id("a")), name), json.RawMessage(`{ "first": "alice" }`)))
	require.NoError(t, tx.SetVertexProperties(graphstore.VertexProperties(graphstore.SingleVertex(id("b")), name), json.RawMessage(`[1, 2]`)))
	require.NoError(t, tx.SetVertexProperties(graphstore.VertexProperties(graphstore.SingleVertex(id("missing")), name), json.RawMessage(`true`)))

	got, err = tx.GetVertexProperties(q)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID.String())
	assert.JSONEq(t, `{"first":"alice"}`, string(got[0].Value))
	assert.Equal(t, "b", got[1].ID.String())
	assert.JSONEq(t, `[1,2]`, string(got[1].Value))

	require.NoError(t, tx.SetVertexProperties(graphstore.VertexProperties(graphstore.SingleVertex(id("a")), name), json.RawMessage(`"replaced"`)))
	got, err = tx.GetVertexProperties(graphstore.VertexProperties(graphstore.SingleVertex(id("a")), name))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.JSONEq(t, `"replaced"`, string(got[0].Value))

	other, err := tx.GetVertexProperties(graphstore.VertexProperties(graphstore.SingleVertex(id("a")), graphstore.MustType("age")))
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, tx.DeleteVertexProperties(graphstore.VertexProperties(graphstore.SingleVertex(id("a")), name)))
	got, err = tx.GetVertexProperties(q)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID.String())
}

func testVertexPropertiesInvalidJSON(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person))

	err := tx.SetVertexProperties(graphstore.VertexProperties(graphstore.SingleVertex(id("a")), name), json.RawMessage(`{nope`))
	var verr *graphstore.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)

	got, err := tx.GetVertexProperties(graphstore.VertexProperties(graphstore.SingleVertex(id("a")), name))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testEdgeProperties(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person), vertex("b", person), vertex("c", person))
	ab := graphstore.NewEdgeKey(id("a"), knows, id("b"))
	ac := graphstore.NewEdgeKey(id("a"), knows, id("c"))
	createEdges(t, tx, ab, ac)

	all := graphstore.OutboundEdges(graphstore.SingleVertex(id("a")), 10)
	require.NoError(t, tx.SetEdgeProperties(graphstore.EdgeProperties(all, name), json.RawMessage(`0.5`)))

	got, err := tx.GetEdgeProperties(graphstore.EdgeProperties(graphstore.SpecificEdges(ab, ac), name))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ab, got[0].Key)
	assert.Equal(t, ac, got[1].Key)
	assert.JSONEq(t, `0.5`, string(got[0].Value))

	require.NoError(t, tx.DeleteEdgeProperties(graphstore.EdgeProperties(graphstore.SingleEdge(ac), name)))
	got, err = tx.GetEdgeProperties(graphstore.EdgeProperties(all, name))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ab, got[0].Key)
}

func testDeleteEdgeDropsProperties(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person), vertex("b", person))
	ab := graphstore.NewEdgeKey(id("a"), knows, id("b"))
	createEdges(t, tx, ab)
	require.NoError(t, tx.SetEdgeProperties(graphstore.EdgeProperties(graphstore.SingleEdge(ab), name), json.RawMessage(`1`)))

	require.NoError(t, tx.DeleteEdges(graphstore.SingleEdge(ab)))
	createEdges(t, tx, ab)

	got, err := tx.GetEdgeProperties(graphstore.EdgeProperties(graphstore.SingleEdge(ab), name))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testBulkInsert(t *testing.T, tx graphstore.Transaction) {
	ab := graphstore.NewEdgeKey(id("a"), knows, id("b"))
	err := tx.BulkInsert([]graphstore.BulkInsertItem{
		graphstore.VertexItem{Vertex: vertex("a", person)},
		graphstore.VertexItem{Vertex: vertex("b", person)},
		graphstore.EdgeItem{Key: ab},
		graphstore.EdgeItem{Key: graphstore.NewEdgeKey(id("a"), knows, id("missing"))},
		graphstore.VertexPropertyItem{ID: id("a"), Name: name, Value: json.RawMessage(`"alice"`)},
		graphstore.EdgePropertyItem{Key: ab, Name: name, Value: json.RawMessage(`2`)},
	})
	require.NoError(t, err)

	count, err := tx.GetVertexCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	edges, err := tx.GetEdges(graphstore.OutboundEdges(graphstore.SingleVertex(id("a")), 10))
	require.NoError(t, err)
	assert.Equal(t, []graphstore.EdgeKey{ab}, keys(edges))

	vprops, err := tx.GetVertexProperties(graphstore.VertexProperties(graphstore.SingleVertex(id("a")), name))
	require.NoError(t, err)
	require.Len(t, vprops, 1)
	assert.JSONEq(t, `"alice"`, string(vprops[0].Value))

	eprops, err := tx.GetEdgeProperties(graphstore.EdgeProperties(graphstore.SingleEdge(ab), name))
	require.NoError(t, err)
	require.Len(t, eprops, 1)
	assert.JSONEq(t, `2`, string(eprops[0].Value))
}

func testBulkInsertStopsAtFailure(t *testing.T, tx graphstore.Transaction) {
	err := tx.BulkInsert([]graphstore.BulkInsertItem{
		graphstore.VertexItem{Vertex: vertex("a", person)},
		graphstore.VertexPropertyItem{ID: id("a"), Name: name, Value: json.RawMessage(`not json`)},
		graphstore.VertexItem{Vertex: vertex("b", person)},
	})
	require.Error(t, err)

	var gerr *graphstore.Error
	require.True(t, errors.As(err, &gerr), "got %v", err)
	assert.Equal(t, "bulk_insert", gerr.Op)
	assert.Contains(t, err.Error(), "item 1")

	got, err := tx.GetVertices(graphstore.AllVertices(10))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(got))
}

func testLongIdentifiers(t *testing.T, tx graphstore.Transaction) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = byte('a' + i%26)
	}
	longID, err := graphstore.NewIdentifier(long)
	require.NoError(t, err)
	short := id("b")

	createVertices(t, tx, graphstore.Vertex{ID: longID, Type: person}, graphstore.Vertex{ID: short, Type: person})
	key := graphstore.NewEdgeKey(longID, knows, short)
	createEdges(t, tx, key, key.Reversed())
	require.NoError(t, tx.SetEdgeProperties(graphstore.EdgeProperties(graphstore.SingleEdge(key), name), json.RawMessage(`1`)))

	got, err := tx.GetEdges(graphstore.OutboundEdges(graphstore.SingleVertex(longID), 10))
	require.NoError(t, err)
	assert.Equal(t, []graphstore.EdgeKey{key}, keys(got))

	got, err = tx.GetEdges(graphstore.InboundEdges(graphstore.SingleVertex(longID), 10))
	require.NoError(t, err)
	assert.Equal(t, []graphstore.EdgeKey{key.Reversed()}, keys(got))

	props, err := tx.GetEdgeProperties(graphstore.EdgeProperties(graphstore.SingleEdge(key), name))
	require.NoError(t, err)
	require.Len(t, props, 1)
}

func testSync(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person))
	require.NoError(t, tx.Sync())

	got, err := tx.GetVertices(graphstore.SingleVertex(id("a")))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func requireValidationError(t *testing.T, err error) {
	t.Helper()
	var verr *graphstore.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
}

func testZeroTypeRejected(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("bob", person))

	ok, err := tx.CreateVertex(graphstore.Vertex{ID: id("alice")})
	requireValidationError(t, err)
	assert.False(t, ok)

	err = tx.SetVertices([]graphstore.Vertex{vertex("carol", person), {ID: id("dave")}})
	requireValidationError(t, err)

	ok, err = tx.CreateEdge(graphstore.EdgeKey{OutboundID: id("bob"), InboundID: id("bob")})
	requireValidationError(t, err)
	assert.False(t, ok)

	err = tx.SetVertexProperties(graphstore.VertexProperties(graphstore.SingleVertex(id("bob")), graphstore.Type{}), json.RawMessage(`1`))
	requireValidationError(t, err)
	err = tx.SetEdgeProperties(graphstore.EdgeProperties(graphstore.OutboundEdges(graphstore.SingleVertex(id("bob")), 10), graphstore.Type{}), json.RawMessage(`1`))
	requireValidationError(t, err)

	err = tx.BulkInsert([]graphstore.BulkInsertItem{graphstore.VertexItem{Vertex: graphstore.Vertex{ID: id("erin")}}})
	requireValidationError(t, err)

	all, err := tx.GetVertices(graphstore.AllVertices(10))
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, ids(all))

	edges, err := tx.GetEdges(graphstore.OutboundEdges(graphstore.SingleVertex(id("bob")), 10))
	require.NoError(t, err)
	assert.Empty(t, edges)

	props, err := tx.GetAllVertexProperties(graphstore.SingleVertex(id("bob")))
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Empty(t, props[0].Props)
}

// More ids than SQLite allows bound variables in one statement.
func testLargeSpecificQueries(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person), vertex("b", person))
	ab := graphstore.NewEdgeKey(id("a"), knows, id("b"))
	createEdges(t, tx, ab)

	const n = 20000
	vertexIDs := make([]graphstore.Identifier, 0, n)
	edgeKeys := make([]graphstore.EdgeKey, 0, n)
	for i := 0; i < n; i++ {
		missing := id(fmt.Sprintf("missing-%d", i))
		vertexIDs = append(vertexIDs, missing)
		edgeKeys = append(edgeKeys, graphstore.NewEdgeKey(id("a"), knows, missing))
	}
	vertexIDs[n/2] = id("b")
	edgeKeys[n/2] = ab

	got, err := tx.GetVertices(graphstore.SpecificVertices(vertexIDs...))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(got))

	edges, err := tx.GetEdges(graphstore.SpecificEdges(edgeKeys...))
	require.NoError(t, err)
	assert.Equal(t, []graphstore.EdgeKey{ab}, keys(edges))
}

func propNames(props []graphstore.NamedProperty) []string {
	out := make([]string, 0, len(props))
	for _, p := range props {
		out = append(out, p.Name.String())
	}
	return out
}

func testAllVertexProperties(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person), vertex("b", person), vertex("c", city))
	zz := graphstore.MustType("zz")

	got, err := tx.GetAllVertexProperties(graphstore.SingleVertex(id("b")))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Vertex.ID.String())
	assert.Empty(t, got[0].Props)

	require.NoError(t, tx.SetVertexProperties(graphstore.VertexProperties(graphstore.SingleVertex(id("b")), zz), json.RawMessage(`false`)))
	require.NoError(t, tx.SetVertexProperties(graphstore.VertexProperties(graphstore.SingleVertex(id("b")), name), json.RawMessage(`"bob"`)))
	require.NoError(t, tx.SetVertexProperties(graphstore.VertexProperties(graphstore.SingleVertex(id("a")), name), json.RawMessage(`"alice"`)))

	got, err = tx.GetAllVertexProperties(graphstore.SpecificVertices(id("c"), id("b"), id("missing"), id("a")))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{got[0].Vertex.ID.String(), got[1].Vertex.ID.String(), got[2].Vertex.ID.String()})
	assert.Equal(t, city, got[0].Vertex.Type)
	assert.Empty(t, got[0].Props)

	assert.Equal(t, []string{"name", "zz"}, propNames(got[1].Props))
	assert.JSONEq(t, `"bob"`, string(got[1].Props[0].Value))
	assert.JSONEq(t, `false`, string(got[1].Props[1].Value))
	assert.Equal(t, []string{"name"}, propNames(got[2].Props))

	none, err := tx.GetAllVertexProperties(graphstore.AllVertices(0))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testAllEdgeProperties(t *testing.T, tx graphstore.Transaction) {
	createVertices(t, tx, vertex("a", person), vertex("b", person), vertex("c", person))
	ab := graphstore.NewEdgeKey(id("a"), knows, id("b"))
	ac := graphstore.NewEdgeKey(id("a"), knows, id("c"))
	createEdges(t, tx, ab, ac)
	zz := graphstore.MustType("zz")

	require.NoError(t, tx.SetEdgeProperties(graphstore.EdgeProperties(graphstore.SingleEdge(ab), zz), json.RawMessage(`2`)))
	require.NoError(t, tx.SetEdgeProperties(graphstore.EdgeProperties(graphstore.SingleEdge(ab), name), json.RawMessage(`1`)))

	got, err := tx.GetAllEdgeProperties(graphstore.OutboundEdges(graphstore.SingleVertex(id("a")), 10))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ac, got[0].Edge.Key)
	assert.Empty(t, got[0].Props)
	assert.Equal(t, ab, got[1].Edge.Key)
	assert.Equal(t, []string{"name", "zz"}, propNames(got[1].Props))
	assert.JSONEq(t, `1`, string(got[1].Props[0].Value))

	edges, err := tx.GetEdges(graphstore.SingleEdge(ab))
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.True(t, edges[0].UpdateTimestamp.Equal(got[1].Edge.UpdateTimestamp))

	got, err = tx.GetAllEdgeProperties(graphstore.SpecificEdges(ac, ab))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []graphstore.EdgeKey{ac, ab}, []graphstore.EdgeKey{got[0].Edge.Key, got[1].Edge.Key})
}
