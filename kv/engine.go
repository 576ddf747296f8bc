package kv

// Reader reads one consistent view of the store.
type Reader interface {
	// Get returns the value under key in namespace ns.
	Get(ns string, key []byte) ([]byte, bool, error)
	// Iterate visits keys of ns that start with prefix, in ascending byte
	// order, beginning at from (or at prefix when from is nil). It stops
	// when fn returns false or an error.
	Iterate(ns string, from, prefix []byte, fn func(key, value []byte) (bool, error)) error
}

// Engine is an ordered key-value store with atomic batches.
type Engine interface {
	View(fn func(Reader) error) error
	Write(batch *Batch) error
	Sync() error
	Close() error
}

type OpKind int

const (
	OpPut OpKind = iota
	OpDelete
)

type Op struct {
	Kind      OpKind
	Namespace string
	Key       []byte
	Value     []byte
}

// Batch is applied all or nothing by Engine.Write, in insertion order.
type Batch struct {
	Ops []Op
}

func (b *Batch) Put(ns string, key, value []byte) {
	b.Ops = append(b.Ops, Op{Kind: OpPut, Namespace: ns, Key: key, Value: value})
}

func (b *Batch) Delete(ns string, key []byte) {
	b.Ops = append(b.Ops, Op{Kind: OpDelete, Namespace: ns, Key: key})
}

func (b *Batch) Len() int {
	return len(b.Ops)
}
