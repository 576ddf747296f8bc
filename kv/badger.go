package kv

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v4"
)

type BadgerOptions struct {
	Path string
	// InMemory keeps everything in memory and ignores Path.
	InMemory   bool
	SyncWrites bool
	Logger     *log.Logger
}

// BadgerEngine stores every namespace in one Badger database, each key
// prefixed with its namespace name and a zero byte.
type BadgerEngine struct {
	db *badger.DB
}

func OpenBadger(opts BadgerOptions) (*BadgerEngine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("badger")
	}

	bopts := badger.DefaultOptions(opts.Path).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(badgerLogger{logger})
	if opts.InMemory {
		bopts = bopts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", opts.Path, err)
	}
	return &BadgerEngine{db: db}, nil
}

func namespacedKey(ns string, key []byte) []byte {
	out := make([]byte, 0, len(ns)+1+len(key))
	out = append(out, ns...)
	out = append(out, 0)
	return append(out, key...)
}

func (e *BadgerEngine) View(fn func(Reader) error) error {
	return e.db.View(func(txn *badger.Txn) error {
		return fn(badgerReader{txn})
	})
}

func (e *BadgerEngine) Write(batch *Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	return e.db.Update(func(txn *badger.Txn) error {
		for _, op := range batch.Ops {
			var err error
			switch op.Kind {
			case OpPut:
				err = txn.Set(namespacedKey(op.Namespace, op.Key), op.Value)
			case OpDelete:
				err = txn.Delete(namespacedKey(op.Namespace, op.Key))
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *BadgerEngine) Sync() error {
	return e.db.Sync()
}

func (e *BadgerEngine) Close() error {
	return e.db.Close()
}

type badgerReader struct {
	txn *badger.Txn
}

func (r badgerReader) Get(ns string, key []byte) ([]byte, bool, error) {
	item, err := r.txn.Get(namespacedKey(ns, key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (r badgerReader) Iterate(ns string, from, prefix []byte, fn func(key, value []byte) (bool, error)) error {
	fullPrefix := namespacedKey(ns, prefix)
	start := fullPrefix
	if from != nil {
		start = namespacedKey(ns, from)
	}

	it := r.txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: fullPrefix})
	defer it.Close()

	skip := len(ns) + 1
	for it.Seek(start); it.ValidForPrefix(fullPrefix); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		more, err := fn(item.KeyCopy(nil)[skip:], value)
		if err != nil || !more {
			return err
		}
	}
	return nil
}

// badgerLogger routes Badger's own logging onto a charm logger.
type badgerLogger struct {
	logger *log.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
