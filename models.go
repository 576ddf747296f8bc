package graphstore

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	MaxIdentifierLength = 65535
	MaxTypeLength       = 255
)

var typeValidator = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Identifier is an opaque, byte ordered vertex id.
type Identifier struct {
	value string
}

func NewIdentifier(b []byte) (Identifier, error) {
	if len(b) > MaxIdentifierLength {
		return Identifier{}, &ValidationError{Kind: "identifier", Value: truncate(string(b)), Reason: "identifier is too long"}
	}
	return Identifier{value: string(b)}, nil
}

func ParseIdentifier(s string) (Identifier, error) {
	return NewIdentifier([]byte(s))
}

// MustIdentifier panics on invalid input. Meant for literals and tests.
func MustIdentifier(s string) Identifier {
	id, err := ParseIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (i Identifier) Bytes() []byte  { return []byte(i.value) }
func (i Identifier) String() string { return i.value }
func (i Identifier) Len() int       { return len(i.value) }

// Compare orders identifiers lexicographically on their bytes.
func (i Identifier) Compare(other Identifier) int {
	return bytes.Compare([]byte(i.value), []byte(other.value))
}

func (i Identifier) MarshalText() ([]byte, error) {
	return []byte(i.value), nil
}

func (i *Identifier) UnmarshalText(text []byte) error {
	id, err := NewIdentifier(text)
	if err != nil {
		return err
	}
	*i = id
	return nil
}

// Type names a kind of vertex or edge. Property names follow the same rules.
type Type struct {
	value string
}

func NewType(s string) (Type, error) {
	if len(s) > MaxTypeLength {
		return Type{}, &ValidationError{Kind: "type", Value: truncate(s), Reason: "type is too long"}
	}
	if !typeValidator.MatchString(s) {
		return Type{}, &ValidationError{Kind: "type", Value: truncate(s), Reason: "invalid type"}
	}
	return Type{value: s}, nil
}

func MustType(s string) Type {
	t, err := NewType(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Type) String() string { return t.value }

// IsZero reports whether t is the empty type, which no constructor returns.
func (t Type) IsZero() bool { return t.value == "" }

// Validate rejects the zero Type. Struct literals and decoders that skip a
// field produce it without going through NewType.
func (t Type) Validate() error {
	if t.IsZero() {
		return &ValidationError{Kind: "type", Value: "", Reason: "type is empty"}
	}
	return nil
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.value), nil
}

func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := NewType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type Vertex struct {
	ID   Identifier `json:"id"`
	Type Type       `json:"type"`
}

// NewVertex mints a vertex with a random UUID id.
func NewVertex(t Type) Vertex {
	id := uuid.New()
	return Vertex{
		ID:   Identifier{value: string(id[:])},
		Type: t,
	}
}

// Validate checks that v can be stored.
func (v Vertex) Validate() error {
	return v.Type.Validate()
}

// Equal compares vertices by id only.
func (v Vertex) Equal(other Vertex) bool {
	return v.ID == other.ID
}

type EdgeKey struct {
	OutboundID Identifier `json:"outbound_id"`
	Type       Type       `json:"type"`
	InboundID  Identifier `json:"inbound_id"`
}

func NewEdgeKey(outboundID Identifier, t Type, inboundID Identifier) EdgeKey {
	return EdgeKey{
		OutboundID: outboundID,
		Type:       t,
		InboundID:  inboundID,
	}
}

func (k EdgeKey) Reversed() EdgeKey {
	return EdgeKey{OutboundID: k.InboundID, Type: k.Type, InboundID: k.OutboundID}
}

// Validate checks that k can be stored.
func (k EdgeKey) Validate() error {
	return k.Type.Validate()
}

// Compare orders keys by outbound id, then type, then inbound id.
func (k EdgeKey) Compare(other EdgeKey) int {
	if c := k.OutboundID.Compare(other.OutboundID); c != 0 {
		return c
	}
	if k.Type.value != other.Type.value {
		if k.Type.value < other.Type.value {
			return -1
		}
		return 1
	}
	return k.InboundID.Compare(other.InboundID)
}

type Edge struct {
	Key             EdgeKey   `json:"key"`
	UpdateTimestamp time.Time `json:"update_timestamp"`
}

type VertexProperty struct {
	ID    Identifier      `json:"id"`
	Value json.RawMessage `json:"value"`
}

type EdgeProperty struct {
	Key   EdgeKey         `json:"key"`
	Value json.RawMessage `json:"value"`
}

// NamedProperty is one property of an entity, as returned by
// GetAllVertexProperties and GetAllEdgeProperties.
type NamedProperty struct {
	Name  Type            `json:"name"`
	Value json.RawMessage `json:"value"`
}

// VertexWithProperties pairs a vertex with every property it has, ordered
// by name.
type VertexWithProperties struct {
	Vertex Vertex          `json:"vertex"`
	Props  []NamedProperty `json:"props"`
}

// EdgeWithProperties pairs an edge with every property it has, ordered by
// name.
type EdgeWithProperties struct {
	Edge  Edge            `json:"edge"`
	Props []NamedProperty `json:"props"`
}

// SortNamedProperties orders props by name.
func SortNamedProperties(props []NamedProperty) {
	sort.Slice(props, func(i, j int) bool {
		return props[i].Name.value < props[j].Name.value
	})
}

func truncate(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}
