package graphstore

import "encoding/json"

// Datastore is a process-wide handle on one storage backend. It hands out
// transactions and owns pools and file handles until Close.
type Datastore interface {
	Transaction() (Transaction, error)
	Close() error
}

// Transaction is the single surface callers use to read and mutate a graph.
// A transaction belongs to one goroutine at a time.
//
// Lookups of missing entities yield empty results, never errors. Backend
// failures are returned as *Error.
type Transaction interface {
	VertexStore
	EdgeStore
	PropertyStore

	// BulkInsert applies items in order. The first failing item stops the
	// call; items before it stay applied.
	BulkInsert(items []BulkInsertItem) error

	// Sync makes every write issued so far durable before returning.
	Sync() error
	Commit() error
	Rollback() error
}

type VertexStore interface {
	// CreateVertex reports false when a vertex with the same id exists.
	// Vertices and edges with a zero Type are rejected with a
	// *ValidationError.
	CreateVertex(vertex Vertex) (bool, error)
	// SetVertices creates or replaces vertices by id.
	SetVertices(vertices []Vertex) error
	GetVertices(q VertexQuery) ([]Vertex, error)
	// DeleteVertices removes the matched vertices with their properties,
	// every edge touching them and those edges' properties.
	DeleteVertices(q VertexQuery) error
	GetVertexCount() (uint64, error)
}

type EdgeStore interface {
	// CreateEdge creates the edge or refreshes its update timestamp. It
	// reports false when either endpoint is missing.
	CreateEdge(key EdgeKey) (bool, error)
	GetEdges(q EdgeQuery) ([]Edge, error)
	DeleteEdges(q EdgeQuery) error
	// GetEdgeCount counts the edges on the direction side of id, optionally
	// restricted to type t.
	GetEdgeCount(id Identifier, t *Type, direction EdgeDirection) (uint64, error)
}

type PropertyStore interface {
	GetVertexProperties(q VertexPropertyQuery) ([]VertexProperty, error)
	SetVertexProperties(q VertexPropertyQuery, value json.RawMessage) error
	DeleteVertexProperties(q VertexPropertyQuery) error
	GetEdgeProperties(q EdgePropertyQuery) ([]EdgeProperty, error)
	SetEdgeProperties(q EdgePropertyQuery, value json.RawMessage) error
	DeleteEdgeProperties(q EdgePropertyQuery) error

	// GetAllVertexProperties returns each vertex q matches, in query order,
	// with all of its properties. Vertices without properties are included.
	GetAllVertexProperties(q VertexQuery) ([]VertexWithProperties, error)
	GetAllEdgeProperties(q EdgeQuery) ([]EdgeWithProperties, error)
}
