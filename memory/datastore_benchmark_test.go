package memory

import (
	"math/rand"
	"testing"
	"time"

	"github.com/abstract-base-method/graphstore"
	"github.com/charmbracelet/log"
)

const numberOfVertices = 100_000
const numberOfEdgesPerVertex = 10

func Benchmark_large_graph(b *testing.B) {
	b.StopTimer()
	ds := NewDatastore()
	tx, _ := ds.Transaction()
	origin := initGraph(b, tx)

	// don't count data generation for graph traversal
	b.ResetTimer()
	b.StartTimer()

	for i := 0; i < b.N; i++ {
		startOfWalkTime := time.Now()
		q := graphstore.InboundVertices(graphstore.OutboundEdges(graphstore.SingleVertex(origin), 1000), 1000)
		q2 := graphstore.InboundVertices(graphstore.OutboundEdges(q, 10_000), 10_000)
		vertices, err := tx.GetVertices(q2)
		if err != nil {
			b.Fatal(err)
		}
		log.Info(
			"graph traversal completed",
			"verticesReached",
			len(vertices),
			"graphTraversalMillis",
			time.Since(startOfWalkTime).Milliseconds(),
		)
	}
}

func initGraph(b *testing.B, tx graphstore.Transaction) graphstore.Identifier {
	node := graphstore.MustType("node")
	related := graphstore.MustType("related")

	ids := make([]graphstore.Identifier, 0, numberOfVertices)
	items := make([]graphstore.BulkInsertItem, 0, numberOfVertices*(numberOfEdgesPerVertex+1))
	for i := 0; i < numberOfVertices; i++ {
		v := graphstore.NewVertex(node)
		ids = append(ids, v.ID)
		items = append(items, graphstore.VertexItem{Vertex: v})
	}
	for _, id := range ids {
		for j := 0; j < numberOfEdgesPerVertex; j++ {
			items = append(items, graphstore.EdgeItem{Key: graphstore.NewEdgeKey(id, related, ids[rand.Intn(len(ids))])})
		}
	}
	if err := tx.BulkInsert(items); err != nil {
		b.Fatal(err)
	}
	return ids[0]
}
