package kv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"

	"github.com/abstract-base-method/graphstore"
)

// Namespaces are the isolated keyspaces of the persisted format. The version
// suffix changes whenever the layout of a namespace does.
const (
	VerticesNamespace           = "vertices:v1"
	EdgesNamespace              = "edges:v1"
	EdgeRangesNamespace         = "edge_ranges:v1"
	ReversedEdgeRangesNamespace = "reversed_edge_ranges:v1"
	VertexPropertiesNamespace   = "vertex_properties:v1"
	EdgePropertiesNamespace     = "edge_properties:v1"
)

var Namespaces = []string{
	VerticesNamespace,
	EdgesNamespace,
	EdgeRangesNamespace,
	ReversedEdgeRangesNamespace,
	VertexPropertiesNamespace,
	EdgePropertiesNamespace,
}

const longIDMarker = 0xff

var errMalformedKey = errors.New("malformed key")

// keyBuilder appends key components. Sized ids carry a length so they can
// sit in front of other components; the unsized form is only valid last.
type keyBuilder struct {
	buf bytes.Buffer
}

func (b *keyBuilder) sizedID(id graphstore.Identifier) *keyBuilder {
	if id.Len() < longIDMarker {
		b.buf.WriteByte(byte(id.Len()))
	} else {
		b.buf.WriteByte(longIDMarker)
		var n [2]byte
		binary.BigEndian.PutUint16(n[:], uint16(id.Len()))
		b.buf.Write(n[:])
	}
	b.buf.Write(id.Bytes())
	return b
}

func (b *keyBuilder) unsizedID(id graphstore.Identifier) *keyBuilder {
	b.buf.Write(id.Bytes())
	return b
}

func (b *keyBuilder) typ(t graphstore.Type) *keyBuilder {
	b.buf.WriteByte(byte(len(t.String())))
	b.buf.WriteString(t.String())
	return b
}

func (b *keyBuilder) descendingTime(t time.Time) *keyBuilder {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], descendingNanos(t))
	b.buf.Write(n[:])
	return b
}

func (b *keyBuilder) bytes() []byte {
	return b.buf.Bytes()
}

// ascendingNanos maps signed nanoseconds onto unsigned values that sort in
// the same order as big-endian bytes.
func ascendingNanos(t time.Time) uint64 {
	return uint64(t.UnixNano()) ^ (1 << 63)
}

func descendingNanos(t time.Time) uint64 {
	return ^ascendingNanos(t)
}

func timeFromAscending(n uint64) time.Time {
	return time.Unix(0, int64(n^(1<<63))).UTC()
}

func timeFromDescending(n uint64) time.Time {
	return timeFromAscending(^n)
}

func encodeTime(t time.Time) []byte {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], ascendingNanos(t))
	return n[:]
}

func decodeTime(b []byte) (time.Time, error) {
	if len(b) != 8 {
		return time.Time{}, errMalformedKey
	}
	return timeFromAscending(binary.BigEndian.Uint64(b)), nil
}

// keyReader consumes components in the order a keyBuilder wrote them.
type keyReader struct {
	b   []byte
	err error
}

func (r *keyReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.b) < n {
		r.err = errMalformedKey
		return nil
	}
	out := r.b[:n]
	r.b = r.b[n:]
	return out
}

func (r *keyReader) sizedID() graphstore.Identifier {
	head := r.take(1)
	if r.err != nil {
		return graphstore.Identifier{}
	}
	n := int(head[0])
	if n == longIDMarker {
		size := r.take(2)
		if r.err != nil {
			return graphstore.Identifier{}
		}
		n = int(binary.BigEndian.Uint16(size))
	}
	return r.identifier(r.take(n))
}

func (r *keyReader) unsizedID() graphstore.Identifier {
	rest := r.take(len(r.b))
	return r.identifier(rest)
}

func (r *keyReader) identifier(b []byte) graphstore.Identifier {
	if r.err != nil {
		return graphstore.Identifier{}
	}
	id, err := graphstore.NewIdentifier(b)
	if err != nil {
		r.err = err
	}
	return id
}

func (r *keyReader) typ() graphstore.Type {
	head := r.take(1)
	if r.err != nil {
		return graphstore.Type{}
	}
	raw := r.take(int(head[0]))
	if r.err != nil {
		return graphstore.Type{}
	}
	t, err := graphstore.NewType(string(raw))
	if err != nil {
		r.err = err
	}
	return t
}

func (r *keyReader) descendingTime() time.Time {
	raw := r.take(8)
	if r.err != nil {
		return time.Time{}
	}
	return timeFromDescending(binary.BigEndian.Uint64(raw))
}

func vertexKey(id graphstore.Identifier) []byte {
	return new(keyBuilder).unsizedID(id).bytes()
}

func edgeKey(key graphstore.EdgeKey) []byte {
	return new(keyBuilder).sizedID(key.OutboundID).typ(key.Type).unsizedID(key.InboundID).bytes()
}

func parseEdgeKey(b []byte) (graphstore.EdgeKey, error) {
	r := keyReader{b: b}
	key := graphstore.EdgeKey{OutboundID: r.sizedID(), Type: r.typ()}
	key.InboundID = r.unsizedID()
	return key, r.err
}

// edgeRangeKey indexes an edge under first. For the reversed index first is
// the inbound id and second the outbound id.
func edgeRangeKey(first graphstore.Identifier, t graphstore.Type, at time.Time, second graphstore.Identifier) []byte {
	return new(keyBuilder).sizedID(first).typ(t).descendingTime(at).unsizedID(second).bytes()
}

func edgeRangePrefix(first graphstore.Identifier) []byte {
	return new(keyBuilder).sizedID(first).bytes()
}

func edgeRangeTypePrefix(first graphstore.Identifier, t graphstore.Type) []byte {
	return new(keyBuilder).sizedID(first).typ(t).bytes()
}

type edgeRange struct {
	first  graphstore.Identifier
	typ    graphstore.Type
	at     time.Time
	second graphstore.Identifier
}

func parseEdgeRangeKey(b []byte) (edgeRange, error) {
	r := keyReader{b: b}
	er := edgeRange{first: r.sizedID(), typ: r.typ(), at: r.descendingTime()}
	er.second = r.unsizedID()
	return er, r.err
}

func vertexPropertyKey(id graphstore.Identifier, name graphstore.Type) []byte {
	return new(keyBuilder).sizedID(id).typ(name).bytes()
}

func vertexPropertyPrefix(id graphstore.Identifier) []byte {
	return new(keyBuilder).sizedID(id).bytes()
}

func edgePropertyKey(key graphstore.EdgeKey, name graphstore.Type) []byte {
	return new(keyBuilder).sizedID(key.OutboundID).typ(key.Type).sizedID(key.InboundID).typ(name).bytes()
}

func edgePropertyPrefix(key graphstore.EdgeKey) []byte {
	return new(keyBuilder).sizedID(key.OutboundID).typ(key.Type).sizedID(key.InboundID).bytes()
}

// parsePropertyName reads the name that follows an owner prefix in a vertex
// or edge property key.
func parsePropertyName(key, prefix []byte) (graphstore.Type, error) {
	if !bytes.HasPrefix(key, prefix) {
		return graphstore.Type{}, errMalformedKey
	}
	r := keyReader{b: key[len(prefix):]}
	name := r.typ()
	if r.err == nil && len(r.b) != 0 {
		r.err = errMalformedKey
	}
	return name, r.err
}
