package kv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/abstract-base-method/graphstore"
	"github.com/abstract-base-method/graphstore/internal/traverse"
)

// Managers read through a Reader and stage their writes in a Batch. Reads
// never see the staged writes; callers must not stage two writes that depend
// on each other within one batch.

type vertexManager struct {
	r Reader
}

func (m vertexManager) get(id graphstore.Identifier) (graphstore.Vertex, bool, error) {
	value, ok, err := m.r.Get(VerticesNamespace, vertexKey(id))
	if err != nil || !ok {
		return graphstore.Vertex{}, false, err
	}
	t, err := graphstore.NewType(string(value))
	if err != nil {
		return graphstore.Vertex{}, false, fmt.Errorf("vertex %x: %w", id.Bytes(), err)
	}
	return graphstore.Vertex{ID: id, Type: t}, true, nil
}

func (m vertexManager) exists(id graphstore.Identifier) (bool, error) {
	_, ok, err := m.r.Get(VerticesNamespace, vertexKey(id))
	return ok, err
}

// rangeFrom lists vertices with id greater than start in id order.
func (m vertexManager) rangeFrom(start *graphstore.Identifier, t *graphstore.Type, limit uint32) ([]graphstore.Vertex, error) {
	var from []byte
	if start != nil {
		from = vertexKey(*start)
	}

	var results []graphstore.Vertex
	err := m.r.Iterate(VerticesNamespace, from, nil, func(key, value []byte) (bool, error) {
		if start != nil && bytes.Equal(key, from) {
			return true, nil
		}
		if t != nil && string(value) != t.String() {
			return true, nil
		}
		id, err := graphstore.NewIdentifier(key)
		if err != nil {
			return false, err
		}
		vt, err := graphstore.NewType(string(value))
		if err != nil {
			return false, fmt.Errorf("vertex %x: %w", key, err)
		}
		results = append(results, graphstore.Vertex{ID: id, Type: vt})
		return len(results) < int(limit), nil
	})
	return results, err
}

func (m vertexManager) count() (uint64, error) {
	var n uint64
	err := m.r.Iterate(VerticesNamespace, nil, nil, func(_, _ []byte) (bool, error) {
		n++
		return true, nil
	})
	return n, err
}

func (m vertexManager) create(b *Batch, v graphstore.Vertex) {
	b.Put(VerticesNamespace, vertexKey(v.ID), []byte(v.Type.String()))
}

// delete stages removal of the vertex, its properties, and every edge on
// either side of it.
func (m vertexManager) delete(b *Batch, id graphstore.Identifier) error {
	b.Delete(VerticesNamespace, vertexKey(id))

	if err := (vertexPropertyManager{m.r}).deleteAll(b, id); err != nil {
		return err
	}

	edges := edgeManager{m.r}
	for _, reversed := range []bool{false, true} {
		ranges := edgeRangeManager{r: m.r, reversed: reversed}
		err := ranges.iterate(id, nil, func(e graphstore.Edge) (bool, error) {
			return true, edges.delete(b, e)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

type edgeManager struct {
	r Reader
}

func (m edgeManager) get(key graphstore.EdgeKey) (graphstore.Edge, bool, error) {
	value, ok, err := m.r.Get(EdgesNamespace, edgeKey(key))
	if err != nil || !ok {
		return graphstore.Edge{}, false, err
	}
	at, err := decodeTime(value)
	if err != nil {
		return graphstore.Edge{}, false, fmt.Errorf("edge timestamp: %w", err)
	}
	return graphstore.Edge{Key: key, UpdateTimestamp: at}, true, nil
}

// set stages the edge at time at, replacing the range entries of any
// previous version.
func (m edgeManager) set(b *Batch, key graphstore.EdgeKey, at time.Time) error {
	existing, ok, err := m.get(key)
	if err != nil {
		return err
	}
	if ok {
		m.deleteRanges(b, existing)
	}

	b.Put(EdgesNamespace, edgeKey(key), encodeTime(at))
	b.Put(EdgeRangesNamespace, edgeRangeKey(key.OutboundID, key.Type, at, key.InboundID), []byte{})
	b.Put(ReversedEdgeRangesNamespace, edgeRangeKey(key.InboundID, key.Type, at, key.OutboundID), []byte{})
	return nil
}

func (m edgeManager) deleteRanges(b *Batch, e graphstore.Edge) {
	key := e.Key
	b.Delete(EdgeRangesNamespace, edgeRangeKey(key.OutboundID, key.Type, e.UpdateTimestamp, key.InboundID))
	b.Delete(ReversedEdgeRangesNamespace, edgeRangeKey(key.InboundID, key.Type, e.UpdateTimestamp, key.OutboundID))
}

func (m edgeManager) delete(b *Batch, e graphstore.Edge) error {
	b.Delete(EdgesNamespace, edgeKey(e.Key))
	m.deleteRanges(b, e)
	return edgePropertyManager{m.r}.deleteAll(b, e.Key)
}

// edgeRangeManager walks the time ordered edge indexes. The forward index
// is keyed by outbound id, the reversed one by inbound id.
type edgeRangeManager struct {
	r        Reader
	reversed bool
}

func (m edgeRangeManager) namespace() string {
	if m.reversed {
		return ReversedEdgeRangesNamespace
	}
	return EdgeRangesNamespace
}

// iterate visits the edges of id, newest first within each type. With a
// type set the scan starts at High and ends at the first edge older than
// Low; otherwise every edge of id is visited and filters are checked per
// edge.
func (m edgeRangeManager) iterate(id graphstore.Identifier, filter *traverse.Filter, fn func(graphstore.Edge) (bool, error)) error {
	prefix := edgeRangePrefix(id)
	var from []byte
	typed := filter != nil && filter.Type != nil
	if typed {
		prefix = edgeRangeTypePrefix(id, *filter.Type)
		if filter.High != nil {
			from = new(keyBuilder).sizedID(id).typ(*filter.Type).descendingTime(*filter.High).bytes()
		}
	}

	return m.r.Iterate(m.namespace(), from, prefix, func(key, _ []byte) (bool, error) {
		er, err := parseEdgeRangeKey(key)
		if err != nil {
			return false, err
		}
		e := graphstore.Edge{
			Key:             graphstore.NewEdgeKey(er.first, er.typ, er.second),
			UpdateTimestamp: er.at,
		}
		if m.reversed {
			e.Key = e.Key.Reversed()
		}

		if filter != nil {
			if typed && filter.Low != nil && e.UpdateTimestamp.Before(*filter.Low) {
				return false, nil
			}
			if !filter.Match(e) {
				return true, nil
			}
		}
		return fn(e)
	})
}

type vertexPropertyManager struct {
	r Reader
}

func (m vertexPropertyManager) get(id graphstore.Identifier, name graphstore.Type) (json.RawMessage, bool, error) {
	value, ok, err := m.r.Get(VertexPropertiesNamespace, vertexPropertyKey(id, name))
	return json.RawMessage(value), ok, err
}

func (m vertexPropertyManager) set(b *Batch, id graphstore.Identifier, name graphstore.Type, value json.RawMessage) {
	b.Put(VertexPropertiesNamespace, vertexPropertyKey(id, name), value)
}

func (m vertexPropertyManager) delete(b *Batch, id graphstore.Identifier, name graphstore.Type) {
	b.Delete(VertexPropertiesNamespace, vertexPropertyKey(id, name))
}

func (m vertexPropertyManager) deleteAll(b *Batch, id graphstore.Identifier) error {
	return m.r.Iterate(VertexPropertiesNamespace, nil, vertexPropertyPrefix(id), func(key, _ []byte) (bool, error) {
		b.Delete(VertexPropertiesNamespace, bytes.Clone(key))
		return true, nil
	})
}

func (m vertexPropertyManager) all(id graphstore.Identifier) ([]graphstore.NamedProperty, error) {
	return namedProperties(m.r, VertexPropertiesNamespace, vertexPropertyPrefix(id))
}

type edgePropertyManager struct {
	r Reader
}

func (m edgePropertyManager) get(key graphstore.EdgeKey, name graphstore.Type) (json.RawMessage, bool, error) {
	value, ok, err := m.r.Get(EdgePropertiesNamespace, edgePropertyKey(key, name))
	return json.RawMessage(value), ok, err
}

func (m edgePropertyManager) set(b *Batch, key graphstore.EdgeKey, name graphstore.Type, value json.RawMessage) {
	b.Put(EdgePropertiesNamespace, edgePropertyKey(key, name), value)
}

func (m edgePropertyManager) delete(b *Batch, key graphstore.EdgeKey, name graphstore.Type) {
	b.Delete(EdgePropertiesNamespace, edgePropertyKey(key, name))
}

func (m edgePropertyManager) all(key graphstore.EdgeKey) ([]graphstore.NamedProperty, error) {
	return namedProperties(m.r, EdgePropertiesNamespace, edgePropertyPrefix(key))
}

// namedProperties collects every property stored under an owner prefix.
// Names are length prefixed in keys, so scan order is not name order.
func namedProperties(r Reader, ns string, prefix []byte) ([]graphstore.NamedProperty, error) {
	props := []graphstore.NamedProperty{}
	err := r.Iterate(ns, nil, prefix, func(key, value []byte) (bool, error) {
		name, err := parsePropertyName(key, prefix)
		if err != nil {
			return false, fmt.Errorf("property key %x: %w", key, err)
		}
		props = append(props, graphstore.NamedProperty{Name: name, Value: json.RawMessage(bytes.Clone(value))})
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	graphstore.SortNamedProperties(props)
	return props, nil
}

func (m edgePropertyManager) deleteAll(b *Batch, key graphstore.EdgeKey) error {
	return m.r.Iterate(EdgePropertiesNamespace, nil, edgePropertyPrefix(key), func(k, _ []byte) (bool, error) {
		b.Delete(EdgePropertiesNamespace, bytes.Clone(k))
		return true, nil
	})
}
