package graphstore

import (
	"fmt"
	"time"
)

// EdgeDirection names which endpoint of an edge a pipe works with.
type EdgeDirection int

const (
	Outbound EdgeDirection = iota
	Inbound
)

func (d EdgeDirection) String() string {
	switch d {
	case Outbound:
		return "outbound"
	case Inbound:
		return "inbound"
	default:
		return fmt.Sprintf("EdgeDirection(%d)", int(d))
	}
}

func ParseEdgeDirection(s string) (EdgeDirection, error) {
	switch s {
	case "outbound":
		return Outbound, nil
	case "inbound":
		return Inbound, nil
	default:
		return 0, &ValidationError{Kind: "direction", Value: s, Reason: "expected outbound or inbound"}
	}
}

// VertexQuery selects an ordered sequence of vertices. Implementations are
// AllVertexQuery, SpecificVertexQuery and PipeVertexQuery.
type VertexQuery interface {
	vertexQuery()
}

// EdgeQuery selects an ordered sequence of edges. Implementations are
// SpecificEdgeQuery and PipeEdgeQuery.
type EdgeQuery interface {
	edgeQuery()
}

// AllVertexQuery walks vertices in ascending id order, starting after
// StartID when it is set.
type AllVertexQuery struct {
	StartID    *Identifier
	TypeFilter *Type
	Limit      uint32
}

// SpecificVertexQuery looks vertices up by id, in request order. Missing ids
// are skipped and duplicates are kept.
type SpecificVertexQuery struct {
	IDs []Identifier
}

// PipeVertexQuery turns the edges of Inner into the vertices on the
// Direction side, deduplicated in first-seen order.
type PipeVertexQuery struct {
	Inner      EdgeQuery
	Direction  EdgeDirection
	TypeFilter *Type
	Limit      uint32
}

// SpecificEdgeQuery looks edges up by key, in request order.
type SpecificEdgeQuery struct {
	Keys []EdgeKey
}

// PipeEdgeQuery enumerates the edges on the Direction side of every vertex
// Inner yields. Per vertex the edges come newest first; High and Low bound
// the update timestamp inclusively.
type PipeEdgeQuery struct {
	Inner      VertexQuery
	Direction  EdgeDirection
	TypeFilter *Type
	High       *time.Time
	Low        *time.Time
	Limit      uint32
}

func (AllVertexQuery) vertexQuery()      {}
func (SpecificVertexQuery) vertexQuery() {}
func (PipeVertexQuery) vertexQuery()     {}
func (SpecificEdgeQuery) edgeQuery()     {}
func (PipeEdgeQuery) edgeQuery()         {}

func AllVertices(limit uint32) AllVertexQuery {
	return AllVertexQuery{Limit: limit}
}

func (q AllVertexQuery) WithStart(id Identifier) AllVertexQuery {
	q.StartID = &id
	return q
}

func (q AllVertexQuery) WithType(t Type) AllVertexQuery {
	q.TypeFilter = &t
	return q
}

func SpecificVertices(ids ...Identifier) SpecificVertexQuery {
	return SpecificVertexQuery{IDs: ids}
}

func SingleVertex(id Identifier) SpecificVertexQuery {
	return SpecificVertexQuery{IDs: []Identifier{id}}
}

func SpecificEdges(keys ...EdgeKey) SpecificEdgeQuery {
	return SpecificEdgeQuery{Keys: keys}
}

func SingleEdge(key EdgeKey) SpecificEdgeQuery {
	return SpecificEdgeQuery{Keys: []EdgeKey{key}}
}

func OutboundEdges(q VertexQuery, limit uint32) PipeEdgeQuery {
	return PipeEdgeQuery{Inner: q, Direction: Outbound, Limit: limit}
}

func InboundEdges(q VertexQuery, limit uint32) PipeEdgeQuery {
	return PipeEdgeQuery{Inner: q, Direction: Inbound, Limit: limit}
}

func (q PipeEdgeQuery) WithType(t Type) PipeEdgeQuery {
	q.TypeFilter = &t
	return q
}

func (q PipeEdgeQuery) WithHigh(high time.Time) PipeEdgeQuery {
	q.High = &high
	return q
}

func (q PipeEdgeQuery) WithLow(low time.Time) PipeEdgeQuery {
	q.Low = &low
	return q
}

func OutboundVertices(q EdgeQuery, limit uint32) PipeVertexQuery {
	return PipeVertexQuery{Inner: q, Direction: Outbound, Limit: limit}
}

func InboundVertices(q EdgeQuery, limit uint32) PipeVertexQuery {
	return PipeVertexQuery{Inner: q, Direction: Inbound, Limit: limit}
}

func (q PipeVertexQuery) WithType(t Type) PipeVertexQuery {
	q.TypeFilter = &t
	return q
}

// VertexPropertyQuery selects property Name of every vertex Inner yields.
type VertexPropertyQuery struct {
	Inner VertexQuery
	Name  Type
}

// EdgePropertyQuery selects property Name of every edge Inner yields.
type EdgePropertyQuery struct {
	Inner EdgeQuery
	Name  Type
}

func VertexProperties(q VertexQuery, name Type) VertexPropertyQuery {
	return VertexPropertyQuery{Inner: q, Name: name}
}

func EdgeProperties(q EdgeQuery, name Type) EdgePropertyQuery {
	return EdgePropertyQuery{Inner: q, Name: name}
}
