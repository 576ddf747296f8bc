package sqlite

import (
	"testing"

	"github.com/abstract-base-method/graphstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCTEChainsStages(t *testing.T) {
	knows := graphstore.MustType("knows")
	q := graphstore.InboundVertices(
		graphstore.OutboundEdges(graphstore.SingleVertex(graphstore.MustIdentifier("a")), 10).WithType(knows),
		5,
	)

	b := &cteBuilder{}
	ok, err := b.vertexQuery(q)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, b.stages, 3)

	query, params := b.sql("SELECT id, type FROM %s ORDER BY pos")
	assert.Contains(t, query, "WITH pipe_1 AS (")
	assert.Contains(t, query, "FROM pipe_1 AS p JOIN edges AS e ON e.outbound_id = p.id")
	assert.Contains(t, query, "FROM pipe_2 AS p JOIN vertices AS v ON v.id = p.inbound_id")
	assert.Contains(t, query, "SELECT id, type FROM pipe_3 ORDER BY pos")
	assert.Contains(t, query, "FROM json_each(?) AS r JOIN vertices AS v ON v.id = unhex(r.value)")
	assert.Equal(t, []any{`["61"]`, "knows", int64(10), int64(5)}, params)
}

func TestCTEShortCircuits(t *testing.T) {
	cases := []graphstore.VertexQuery{
		graphstore.AllVertices(0),
		graphstore.SpecificVertices(),
		graphstore.InboundVertices(graphstore.SpecificEdges(), 10),
		graphstore.InboundVertices(graphstore.OutboundEdges(graphstore.AllVertices(10), 0), 10),
	}
	for _, q := range cases {
		b := &cteBuilder{}
		ok, err := b.vertexQuery(q)
		require.NoError(t, err)
		assert.False(t, ok, "%#v", q)
	}
}

func TestCTEInboundOrdersByOutboundID(t *testing.T) {
	b := &cteBuilder{}
	ok, err := b.edgeQuery(graphstore.InboundEdges(graphstore.AllVertices(1), 3))
	require.NoError(t, err)
	require.True(t, ok)

	query, _ := b.sql("SELECT * FROM %s")
	assert.Contains(t, query, "ORDER BY p.pos, e.update_timestamp DESC, e.type, e.outbound_id")
	assert.Contains(t, query, "ON e.inbound_id = p.id")
}

func TestCTEBindsIDListsAsOneParameter(t *testing.T) {
	knows := graphstore.MustType("knows")
	ids := make([]graphstore.Identifier, 0, 3)
	for _, s := range []string{"a", "", "\xff\x00"} {
		ids = append(ids, graphstore.MustIdentifier(s))
	}

	b := &cteBuilder{}
	ok, err := b.vertexQuery(graphstore.SpecificVertices(ids...))
	require.NoError(t, err)
	require.True(t, ok)
	_, params := b.sql("SELECT id FROM %s")
	assert.Equal(t, []any{`["61","","ff00"]`}, params)

	b = &cteBuilder{}
	ok, err = b.edgeQuery(graphstore.SpecificEdges(graphstore.NewEdgeKey(ids[0], knows, ids[2])))
	require.NoError(t, err)
	require.True(t, ok)
	_, params = b.sql("SELECT id FROM %s")
	assert.Equal(t, []any{`[["61","knows","ff00"]]`}, params)
}
