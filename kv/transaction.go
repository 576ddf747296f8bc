package kv

import (
	"encoding/json"

	"github.com/abstract-base-method/graphstore"
	"github.com/abstract-base-method/graphstore/internal/traverse"
)

// Transaction applies each call as soon as it is made. Commit has nothing
// left to do and Rollback is unsupported.
type Transaction struct {
	datastore *Datastore
}

func wrap(op string, err error) error {
	return graphstore.NewError(backendName, op, err)
}

func (t *Transaction) CreateVertex(vertex graphstore.Vertex) (bool, error) {
	if err := vertex.Validate(); err != nil {
		return false, err
	}
	created := false
	err := t.datastore.mutate(func(r Reader, b *Batch) error {
		exists, err := vertexManager{r}.exists(vertex.ID)
		if err != nil || exists {
			return err
		}
		vertexManager{r}.create(b, vertex)
		created = true
		return nil
	})
	if err != nil {
		return false, wrap("create_vertex", err)
	}
	return created, nil
}

func (t *Transaction) SetVertices(vertices []graphstore.Vertex) error {
	for _, v := range vertices {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	err := t.datastore.mutate(func(r Reader, b *Batch) error {
		for _, v := range vertices {
			vertexManager{r}.create(b, v)
		}
		return nil
	})
	return wrap("set_vertices", err)
}

func (t *Transaction) GetVertices(q graphstore.VertexQuery) ([]graphstore.Vertex, error) {
	var vertices []graphstore.Vertex
	err := t.datastore.view(func(r Reader) error {
		var err error
		vertices, err = traverse.Vertices(source{r}, q)
		return err
	})
	if err != nil {
		return nil, wrap("get_vertices", err)
	}
	return vertices, nil
}

func (t *Transaction) DeleteVertices(q graphstore.VertexQuery) error {
	err := t.datastore.mutate(func(r Reader, b *Batch) error {
		vertices, err := traverse.Vertices(source{r}, q)
		if err != nil {
			return err
		}
		for _, v := range vertices {
			if err := (vertexManager{r}).delete(b, v.ID); err != nil {
				return err
			}
		}
		return nil
	})
	return wrap("delete_vertices", err)
}

func (t *Transaction) GetVertexCount() (uint64, error) {
	var count uint64
	err := t.datastore.view(func(r Reader) error {
		var err error
		count, err = vertexManager{r}.count()
		return err
	})
	return count, wrap("get_vertex_count", err)
}

func (t *Transaction) CreateEdge(key graphstore.EdgeKey) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	created := false
	err := t.datastore.mutate(func(r Reader, b *Batch) error {
		vertices := vertexManager{r}
		for _, id := range []graphstore.Identifier{key.OutboundID, key.InboundID} {
			exists, err := vertices.exists(id)
			if err != nil || !exists {
				return err
			}
		}
		if err := (edgeManager{r}).set(b, key, t.datastore.clock.Now()); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, wrap("create_edge", err)
	}
	return created, nil
}

func (t *Transaction) GetEdges(q graphstore.EdgeQuery) ([]graphstore.Edge, error) {
	var edges []graphstore.Edge
	err := t.datastore.view(func(r Reader) error {
		var err error
		edges, err = traverse.Edges(source{r}, q)
		return err
	})
	if err != nil {
		return nil, wrap("get_edges", err)
	}
	return edges, nil
}

func (t *Transaction) DeleteEdges(q graphstore.EdgeQuery) error {
	err := t.datastore.mutate(func(r Reader, b *Batch) error {
		edges, err := traverse.Edges(source{r}, q)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if err := (edgeManager{r}).delete(b, e); err != nil {
				return err
			}
		}
		return nil
	})
	return wrap("delete_edges", err)
}

func (t *Transaction) GetEdgeCount(id graphstore.Identifier, typ *graphstore.Type, direction graphstore.EdgeDirection) (uint64, error) {
	var count uint64
	err := t.datastore.view(func(r Reader) error {
		ranges := edgeRangeManager{r: r, reversed: direction == graphstore.Inbound}
		return ranges.iterate(id, &traverse.Filter{Type: typ}, func(graphstore.Edge) (bool, error) {
			count++
			return true, nil
		})
	})
	return count, wrap("get_edge_count", err)
}

func (t *Transaction) GetVertexProperties(q graphstore.VertexPropertyQuery) ([]graphstore.VertexProperty, error) {
	var results []graphstore.VertexProperty
	err := t.datastore.view(func(r Reader) error {
		vertices, err := traverse.Vertices(source{r}, q.Inner)
		if err != nil {
			return err
		}
		for _, v := range vertices {
			value, ok, err := vertexPropertyManager{r}.get(v.ID, q.Name)
			if err != nil {
				return err
			}
			if ok {
				results = append(results, graphstore.VertexProperty{ID: v.ID, Value: value})
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrap("get_vertex_properties", err)
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
	err = t.datastore.mutate(func(r Reader, b *Batch) error {
		vertices, err := traverse.Vertices(source{r}, q.Inner)
		if err != nil {
			return err
		}
		for _, v := range vertices {
			vertexPropertyManager{r}.set(b, v.ID, q.Name, value)
		}
		return nil
	})
	return wrap("set_vertex_properties", err)
}

func (t *Transaction) DeleteVertexProperties(q graphstore.VertexPropertyQuery) error {
	err := t.datastore.mutate(func(r Reader, b *Batch) error {
		vertices, err := traverse.Vertices(source{r}, q.Inner)
		if err != nil {
			return err
		}
		for _, v := range vertices {
			vertexPropertyManager{r}.delete(b, v.ID, q.Name)
		}
		return nil
	})
	return wrap("delete_vertex_properties", err)
}

func (t *Transaction) GetEdgeProperties(q graphstore.EdgePropertyQuery) ([]graphstore.EdgeProperty, error) {
	var results []graphstore.EdgeProperty
	err := t.datastore.view(func(r Reader) error {
		edges, err := traverse.Edges(source{r}, q.Inner)
		if err != nil {
			return err
		}
		for _, e := range edges {
			value, ok, err := edgePropertyManager{r}.get(e.Key, q.Name)
			if err != nil {
				return err
			}
			if ok {
				results = append(results, graphstore.EdgeProperty{Key: e.Key, Value: value})
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrap("get_edge_properties", err)
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
	err = t.datastore.mutate(func(r Reader, b *Batch) error {
		edges, err := traverse.Edges(source{r}, q.Inner)
		if err != nil {
			return err
		}
		for _, e := range edges {
			edgePropertyManager{r}.set(b, e.Key, q.Name, value)
		}
		return nil
	})
	return wrap("set_edge_properties", err)
}

func (t *Transaction) DeleteEdgeProperties(q graphstore.EdgePropertyQuery) error {
	err := t.datastore.mutate(func(r Reader, b *Batch) error {
		edges, err := traverse.Edges(source{r}, q.Inner)
		if err != nil {
			return err
		}
		for _, e := range edges {
			edgePropertyManager{r}.delete(b, e.Key, q.Name)
		}
		return nil
	})
	return wrap("delete_edge_properties", err)
}

func (t *Transaction) GetAllVertexProperties(q graphstore.VertexQuery) ([]graphstore.VertexWithProperties, error) {
	var results []graphstore.VertexWithProperties
	err := t.datastore.view(func(r Reader) error {
		vertices, err := traverse.Vertices(source{r}, q)
		if err != nil {
			return err
		}
		results = make([]graphstore.VertexWithProperties, 0, len(vertices))
		for _, v := range vertices {
			props, err := vertexPropertyManager{r}.all(v.ID)
			if err != nil {
				return err
			}
			results = append(results, graphstore.VertexWithProperties{Vertex: v, Props: props})
		}
		return nil
	})
	if err != nil {
		return nil, wrap("get_all_vertex_properties", err)
	}
	return results, nil
}

func (t *Transaction) GetAllEdgeProperties(q graphstore.EdgeQuery) ([]graphstore.EdgeWithProperties, error) {
	var results []graphstore.EdgeWithProperties
	err := t.datastore.view(func(r Reader) error {
		edges, err := traverse.Edges(source{r}, q)
		if err != nil {
			return err
		}
		results = make([]graphstore.EdgeWithProperties, 0, len(edges))
		for _, e := range edges {
			props, err := edgePropertyManager{r}.all(e.Key)
			if err != nil {
				return err
			}
			results = append(results, graphstore.EdgeWithProperties{Edge: e, Props: props})
		}
		return nil
	})
	if err != nil {
		return nil, wrap("get_all_edge_properties", err)
	}
	return results, nil
}

func (t *Transaction) BulkInsert(items []graphstore.BulkInsertItem) error {
	return graphstore.ApplyBulkInsert(backendName, t, items)
}

func (t *Transaction) Sync() error {
	return wrap("sync", t.datastore.engine.Sync())
}

func (t *Transaction) Commit() error {
	return nil
}

func (t *Transaction) Rollback() error {
	return wrap("rollback", graphstore.ErrUnsupported)
}
