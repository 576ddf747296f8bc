package memory

import (
	"encoding/json"

	"github.com/abstract-base-method/graphstore"
	"github.com/abstract-base-method/graphstore/internal/traverse"
	"github.com/charmbracelet/log"
)

// Transaction is a view onto a Datastore. Every call takes the datastore
// lock for its own duration only.
type Transaction struct {
	datastore *Datastore
}

func (t *Transaction) read() (*store, func()) {
	t.datastore.mu.RLock()
	return t.datastore.data, t.datastore.mu.RUnlock
}

func (t *Transaction) write() (*store, func()) {
	t.datastore.mu.Lock()
	return t.datastore.data, t.datastore.mu.Unlock
}

func (t *Transaction) CreateVertex(vertex graphstore.Vertex) (bool, error) {
	if err := vertex.Validate(); err != nil {
		return false, err
	}
	s, unlock := t.write()
	defer unlock()

	if s.vertices.Has(vertex) {
		return false, nil
	}
	s.vertices.ReplaceOrInsert(vertex)
	log.Debugf("created vertex %s", vertex.ID)
	return true, nil
}

func (t *Transaction) SetVertices(vertices []graphstore.Vertex) error {
	for _, v := range vertices {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	s, unlock := t.write()
	defer unlock()

	for _, v := range vertices {
		s.vertices.ReplaceOrInsert(v)
	}
	return nil
}

func (t *Transaction) GetVertices(q graphstore.VertexQuery) ([]graphstore.Vertex, error) {
	s, unlock := t.read()
	defer unlock()

	vertices, err := traverse.Vertices(s, q)
	return vertices, graphstore.NewError(backendName, "get_vertices", err)
}

func (t *Transaction) DeleteVertices(q graphstore.VertexQuery) error {
	s, unlock := t.write()
	defer unlock()

	vertices, err := traverse.Vertices(s, q)
	if err != nil {
		return graphstore.NewError(backendName, "delete_vertices", err)
	}
	for _, v := range vertices {
		s.deleteVertex(v.ID)
	}
	return nil
}

func (t *Transaction) GetVertexCount() (uint64, error) {
	s, unlock := t.read()
	defer unlock()
	return uint64(s.vertices.Len()), nil
}

func (t *Transaction) CreateEdge(key graphstore.EdgeKey) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	s, unlock := t.write()
	defer unlock()

	if !s.vertices.Has(graphstore.Vertex{ID: key.OutboundID}) || !s.vertices.Has(graphstore.Vertex{ID: key.InboundID}) {
		return false, nil
	}
	s.edges.ReplaceOrInsert(graphstore.Edge{Key: key, UpdateTimestamp: t.datastore.clock.Now()})
	s.reversedEdges.ReplaceOrInsert(key.Reversed())
	return true, nil
}

func (t *Transaction) GetEdges(q graphstore.EdgeQuery) ([]graphstore.Edge, error) {
	s, unlock := t.read()
	defer unlock()

	edges, err := traverse.Edges(s, q)
	return edges, graphstore.NewError(backendName, "get_edges", err)
}

func (t *Transaction) DeleteEdges(q graphstore.EdgeQuery) error {
	s, unlock := t.write()
	defer unlock()

	edges, err := traverse.Edges(s, q)
	if err != nil {
		return graphstore.NewError(backendName, "delete_edges", err)
	}
	for _, e := range edges {
		s.deleteEdge(e.Key)
	}
	return nil
}

func (t *Transaction) GetEdgeCount(id graphstore.Identifier, typ *graphstore.Type, direction graphstore.EdgeDirection) (uint64, error) {
	s, unlock := t.read()
	defer unlock()
	return uint64(len(s.edgeKeysOf(id, direction, typ))), nil
}

func (t *Transaction) GetVertexProperties(q graphstore.VertexPropertyQuery) ([]graphstore.VertexProperty, error) {
	s, unlock := t.read()
	defer unlock()

	vertices, err := traverse.Vertices(s, q.Inner)
	if err != nil {
		return nil, graphstore.NewError(backendName, "get_vertex_properties", err)
	}
	var results []graphstore.VertexProperty
	for _, v := range vertices {
		if value, ok := s.vertexProperties[v.ID][q.Name]; ok {
			results = append(results, graphstore.VertexProperty{ID: v.ID, Value: value})
		}
	}
	return results, nil
}

func (t *Transaction) SetVertexProperties(q graphstore.VertexPropertyQuery, value json.RawMessage) error {
	if err := q.Name.Validate(); err != nil {
		return err
	}
	value, err := graphstore.CompactValue(value)
	if err != nil {
		return err
	}

	s, unlock := t.write()
	defer unlock()

	vertices, err := traverse.Vertices(s, q.Inner)
	if err != nil {
		return graphstore.NewError(backendName, "set_vertex_properties", err)
	}
	for _, v := range vertices {
		props, ok := s.vertexProperties[v.ID]
		if !ok {
			props = make(properties)
			s.vertexProperties[v.ID] = props
		}
		props[q.Name] = value
	}
	return nil
}

func (t *Transaction) DeleteVertexProperties(q graphstore.VertexPropertyQuery) error {
	s, unlock := t.write()
	defer unlock()

	vertices, err := traverse.Vertices(s, q.Inner)
	if err != nil {
		return graphstore.NewError(backendName, "delete_vertex_properties", err)
	}
	for _, v := range vertices {
		if props, ok := s.vertexProperties[v.ID]; ok {
			delete(props, q.Name)
			if len(props) == 0 {
				delete(s.vertexProperties, v.ID)
			}
		}
	}
	return nil
}

func (t *Transaction) GetEdgeProperties(q graphstore.EdgePropertyQuery) ([]graphstore.EdgeProperty, error) {
	s, unlock := t.read()
	defer unlock()

	edges, err := traverse.Edges(s, q.Inner)
	if err != nil {
		return nil, graphstore.NewError(backendName, "get_edge_properties", err)
	}
	var results []graphstore.EdgeProperty
	for _, e := range edges {
		if value, ok := s.edgeProperties[e.Key][q.Name]; ok {
			results = append(results, graphstore.EdgeProperty{Key: e.Key, Value: value})
		}
	}
	return results, nil
}

func (t *Transaction) SetEdgeProperties(q graphstore.EdgePropertyQuery, value json.RawMessage) error {
	if err := q.Name.Validate(); err != nil {
		return err
	}
	value, err := graphstore.CompactValue(value)
	if err != nil {
		return err
	}

	s, unlock := t.write()
	defer unlock()

	edges, err := traverse.Edges(s, q.Inner)
	if err != nil {
		return graphstore.NewError(backendName, "set_edge_properties", err)
	}
	for _, e := range edges {
		props, ok := s.edgeProperties[e.Key]
		if !ok {
			props = make(properties)
			s.edgeProperties[e.Key] = props
		}
		props[q.Name] = value
	}
	return nil
}

func (t *Transaction) DeleteEdgeProperties(q graphstore.EdgePropertyQuery) error {
	s, unlock := t.write()
	defer unlock()

	edges, err := traverse.Edges(s, q.Inner)
	if err != nil {
		return graphstore.NewError(backendName, "delete_edge_properties", err)
	}
	for _, e := range edges {
		if props, ok := s.edgeProperties[e.Key]; ok {
			delete(props, q.Name)
			if len(props) == 0 {
				delete(s.edgeProperties, e.Key)
			}
		}
	}
	return nil
}

func (t *Transaction) GetAllVertexProperties(q graphstore.VertexQuery) ([]graphstore.VertexWithProperties, error) {
	s, unlock := t.read()
	defer unlock()

	vertices, err := traverse.Vertices(s, q)
	if err != nil {
		return nil, graphstore.NewError(backendName, "get_all_vertex_properties", err)
	}
	results := make([]graphstore.VertexWithProperties, 0, len(vertices))
	for _, v := range vertices {
		results = append(results, graphstore.VertexWithProperties{Vertex: v, Props: s.vertexProperties[v.ID].named()})
	}
	return results, nil
}

func (t *Transaction) GetAllEdgeProperties(q graphstore.EdgeQuery) ([]graphstore.EdgeWithProperties, error) {
	s, unlock := t.read()
	defer unlock()

	edges, err := traverse.Edges(s, q)
	if err != nil {
		return nil, graphstore.NewError(backendName, "get_all_edge_properties", err)
	}
	results := make([]graphstore.EdgeWithProperties, 0, len(edges))
	for _, e := range edges {
		results = append(results, graphstore.EdgeWithProperties{Edge: e, Props: s.edgeProperties[e.Key].named()})
	}
	return results, nil
}

func (t *Transaction) BulkInsert(items []graphstore.BulkInsertItem) error {
	return graphstore.ApplyBulkInsert(backendName, t, items)
}

func (t *Transaction) Sync() error {
	return nil
}

// Commit is a no-op: every call has already been applied.
func (t *Transaction) Commit() error {
	return nil
}

func (t *Transaction) Rollback() error {
	return graphstore.NewError(backendName, "rollback", graphstore.ErrUnsupported)
}
