package redis

import (
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/abstract-base-method/graphstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const NumberOfVertices = 5_000
const NumberOfPotentialStarterEdges = 10

func Benchmark_large_graph(b *testing.B) {
	b.StopTimer()
	server := miniredis.RunT(b)
	ds, err := NewDatastore(&redis.Options{Addr: server.Addr(), ClientName: "example"}, Options{Logger: log.New(io.Discard)})
	if err != nil {
		b.Fatal(err)
	}
	defer ds.Close()

	tx, _ := ds.Transaction()
	origin := initGraph(b, tx)

	// don't count data generation for graph traversal
	b.ResetTimer()
	b.StartTimer()

	for i := 0; i < b.N; i++ {
		startOfWalkTime := time.Now()
		hop := graphstore.InboundVertices(graphstore.OutboundEdges(graphstore.SingleVertex(origin), 100), 100)
		vertices, err := tx.GetVertices(graphstore.InboundVertices(graphstore.OutboundEdges(hop, 1000), 1000))
		if err != nil {
			b.Fatal(err)
		}
		completionDuration := time.Since(startOfWalkTime).Milliseconds()

		log.Info(
			"graph traversal completed",
			"verticesReached",
			len(vertices),
			"graphTraversalMillis",
			completionDuration,
			"keyspace",
			len(server.Keys()),
		)
	}
}

func initGraph(b *testing.B, tx graphstore.Transaction) graphstore.Identifier {
	node := graphstore.MustType("node")
	related := graphstore.MustType("related")

	ids := make([]graphstore.Identifier, 0, NumberOfVertices)
	items := make([]graphstore.BulkInsertItem, 0, NumberOfVertices)
	for i := 0; i < NumberOfVertices; i++ {
		v := graphstore.NewVertex(node)
		ids = append(ids, v.ID)
		items = append(items, graphstore.VertexItem{Vertex: v})
	}
	for _, id := range ids {
		for j := 0; j < rand.Intn(NumberOfPotentialStarterEdges)+1; j++ {
			items = append(items, graphstore.EdgeItem{Key: graphstore.NewEdgeKey(id, related, ids[rand.Intn(len(ids))])})
		}
	}

	startOfGeneration := time.Now()
	if err := tx.BulkInsert(items); err != nil {
		b.Fatal(err)
	}
	log.Info("graph generated", "items", len(items), "generationMillis", time.Since(startOfGeneration).Milliseconds())
	return ids[0]
}
