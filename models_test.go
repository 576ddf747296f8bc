package graphstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewType(t *testing.T) {
	valid := []string{"a", "person", "Has_Edge-2", strings.Repeat("x", MaxTypeLength)}
	for _, s := range valid {
		typ, err := NewType(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, typ.String())
	}

	invalid := []string{"", "has space", "dot.ted", "ümlaut", strings.Repeat("x", MaxTypeLength+1)}
	for _, s := range invalid {
		_, err := NewType(s)
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr), "expected validation error for %q", s)
	}
}

func TestTypeTextRoundTrip(t *testing.T) {
	var typ Type
	require.NoError(t, typ.UnmarshalText([]byte("knows")))
	text, err := typ.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "knows", string(text))

	assert.Error(t, typ.UnmarshalText([]byte("not valid")))
	assert.True(t, Type{}.IsZero())
}

func TestValidateRejectsZeroType(t *testing.T) {
	var verr *ValidationError
	assert.True(t, errors.As(Type{}.Validate(), &verr))
	assert.True(t, errors.As(Vertex{ID: MustIdentifier("alice")}.Validate(), &verr))
	assert.True(t, errors.As(EdgeKey{OutboundID: MustIdentifier("a"), InboundID: MustIdentifier("b")}.Validate(), &verr))

	assert.NoError(t, NewVertex(MustType("person")).Validate())
	assert.NoError(t, NewEdgeKey(MustIdentifier("a"), MustType("knows"), MustIdentifier("b")).Validate())

	var decoded Vertex
	require.NoError(t, json.Unmarshal([]byte(`{"id":"alice"}`), &decoded))
	assert.Error(t, decoded.Validate(), "a missing type decodes to the zero Type")
}

func TestSortNamedProperties(t *testing.T) {
	props := []NamedProperty{{Name: MustType("zz")}, {Name: MustType("age")}, {Name: MustType("name")}}
	SortNamedProperties(props)
	assert.Equal(t, []Type{MustType("age"), MustType("name"), MustType("zz")}, []Type{props[0].Name, props[1].Name, props[2].Name})
}

func TestNewIdentifier(t *testing.T) {
	_, err := NewIdentifier(make([]byte, MaxIdentifierLength))
	require.NoError(t, err)

	_, err = NewIdentifier(make([]byte, MaxIdentifierLength+1))
	assert.Error(t, err)

	id, err := NewIdentifier([]byte{0, 1, 0xff})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 0xff}, id.Bytes())
	assert.Equal(t, 3, id.Len())
}

func TestIdentifierCompareIsBytewise(t *testing.T) {
	a := MustIdentifier("a")
	ab := MustIdentifier("ab")
	b := MustIdentifier("b")

	assert.Negative(t, a.Compare(ab))
	assert.Negative(t, ab.Compare(b))
	assert.Zero(t, b.Compare(MustIdentifier("b")))
	assert.Positive(t, b.Compare(a))
}

func TestNewVertexIsUnique(t *testing.T) {
	person := MustType("person")
	seen := make(map[Identifier]bool)
	for i := 0; i < 100; i++ {
		v := NewVertex(person)
		assert.Equal(t, 16, v.ID.Len())
		assert.False(t, seen[v.ID])
		seen[v.ID] = true
	}
}

func TestEdgeKeyCompare(t *testing.T) {
	knows := MustType("knows")
	likes := MustType("likes")
	a, b := MustIdentifier("a"), MustIdentifier("b")

	ordered := []EdgeKey{
		NewEdgeKey(a, knows, a),
		NewEdgeKey(a, knows, b),
		NewEdgeKey(a, likes, a),
		NewEdgeKey(b, knows, a),
	}
	for i := 1; i < len(ordered); i++ {
		assert.Negative(t, ordered[i-1].Compare(ordered[i]), "%d", i)
	}

	k := NewEdgeKey(a, knows, b)
	assert.Equal(t, NewEdgeKey(b, knows, a), k.Reversed())
	assert.Equal(t, k, k.Reversed().Reversed())
}

func TestVertexJSON(t *testing.T) {
	v := Vertex{ID: MustIdentifier("v1"), Type: MustType("person")}
	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"v1","type":"person"}`, string(b))

	var decoded Vertex
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, v, decoded)

	assert.Error(t, json.Unmarshal([]byte(`{"id":"v1","type":"bad type"}`), &decoded))
}

func TestCompactValue(t *testing.T) {
	v, err := CompactValue(json.RawMessage("{ \"a\" : [1, 2] }"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,2]}`, string(v))

	_, err = CompactValue(json.RawMessage(`{"a":`))
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	v, err = NewValue(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(v))
}

func TestError(t *testing.T) {
	assert.NoError(t, NewError("memory", "op", nil))

	cause := errors.New("disk on fire")
	err := NewError("kv", "get_vertices", cause)
	assert.Equal(t, "kv: get_vertices: disk on fire", err.Error())
	assert.ErrorIs(t, err, cause)

	again := NewError("kv", "outer", err)
	assert.Same(t, err, again)

	bulk := NewBulkError("kv", 4, err)
	assert.ErrorIs(t, bulk, cause)
	assert.Contains(t, bulk.Error(), "item 4")

	wrapped := fmt.Errorf("context: %w", bulk)
	var gerr *Error
	require.True(t, errors.As(wrapped, &gerr))
	assert.Equal(t, "bulk_insert", gerr.Op)
}

func TestParseEdgeDirection(t *testing.T) {
	for _, d := range []EdgeDirection{Outbound, Inbound} {
		parsed, err := ParseEdgeDirection(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, parsed)
	}
	_, err := ParseEdgeDirection("sideways")
	assert.Error(t, err)
}

func TestQueryBuilders(t *testing.T) {
	knows := MustType("knows")
	v := MustIdentifier("v")

	q := OutboundEdges(SingleVertex(v), 5).WithType(knows)
	assert.Equal(t, Outbound, q.Direction)
	assert.Equal(t, knows, *q.TypeFilter)
	assert.Nil(t, q.High)
	assert.Equal(t, uint32(5), q.Limit)

	base := AllVertices(10)
	started := base.WithStart(v)
	assert.Nil(t, base.StartID, "modifiers must not mutate the receiver")
	assert.Equal(t, v, *started.StartID)

	pq := InboundVertices(q, 3)
	assert.Equal(t, Inbound, pq.Direction)
	assert.Equal(t, q, pq.Inner)
}
