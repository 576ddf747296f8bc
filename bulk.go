package graphstore

import (
	"encoding/json"
	"fmt"
)

// BulkInsertItem is one entry of a bulk load: VertexItem, EdgeItem,
// VertexPropertyItem or EdgePropertyItem.
type BulkInsertItem interface {
	bulkInsertItem()
}

type VertexItem struct {
	Vertex Vertex
}

type EdgeItem struct {
	Key EdgeKey
}

type VertexPropertyItem struct {
	ID    Identifier
	Name  Type
	Value json.RawMessage
}

type EdgePropertyItem struct {
	Key   EdgeKey
	Name  Type
	Value json.RawMessage
}

func (VertexItem) bulkInsertItem()         {}
func (EdgeItem) bulkInsertItem()           {}
func (VertexPropertyItem) bulkInsertItem() {}
func (EdgePropertyItem) bulkInsertItem()   {}

type bulkTarget interface {
	VertexStore
	EdgeStore
	PropertyStore
}

// ApplyBulkInsert is the shared BulkInsert implementation. Existing vertices
// and edges with a missing endpoint are skipped like their single-call
// counterparts; any error stops processing without undoing earlier items.
func ApplyBulkInsert(backend string, tx bulkTarget, items []BulkInsertItem) error {
	for i, item := range items {
		var err error
		switch item := item.(type) {
		case VertexItem:
			_, err = tx.CreateVertex(item.Vertex)
		case EdgeItem:
			_, err = tx.CreateEdge(item.Key)
		case VertexPropertyItem:
			err = tx.SetVertexProperties(VertexProperties(SingleVertex(item.ID), item.Name), item.Value)
		case EdgePropertyItem:
			err = tx.SetEdgeProperties(EdgeProperties(SingleEdge(item.Key), item.Name), item.Value)
		default:
			err = fmt.Errorf("unknown bulk insert item %T", item)
		}
		if err != nil {
			return NewBulkError(backend, i, err)
		}
	}
	return nil
}

func NewBulkError(backend string, index int, err error) error {
	return &Error{Backend: backend, Op: "bulk_insert", Err: fmt.Errorf("item %d: %w", index, err)}
}
