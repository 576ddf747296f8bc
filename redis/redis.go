// Package redis stores the kv namespaces in Redis. Each namespace is a
// sorted set of keys, all scored 0 so members order lexicographically, plus
// a hash from key to value. Batches run in MULTI/EXEC.
//
// Redis has no read snapshots: a View observes whatever batches have
// committed by the time each page is fetched.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/abstract-base-method/graphstore"
	"github.com/abstract-base-method/graphstore/kv"
	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const pageSize = 256

type Options struct {
	// Prefix namespaces every Redis key this engine touches.
	Prefix string
	// SaveOnSync issues SAVE on Sync. Leave off when the server persists on
	// its own schedule.
	SaveOnSync bool
	Logger     *log.Logger
}

type Engine struct {
	redis      *redis.Client
	ctx        context.Context
	prefix     string
	saveOnSync bool
	logger     *log.Logger
}

func NewEngine(options *redis.Options, opts Options) (*Engine, error) {
	if opts.Prefix == "" {
		opts.Prefix = "graphstore"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default().WithPrefix("redis")
	}

	e := &Engine{
		redis:      redis.NewClient(options),
		ctx:        context.Background(),
		prefix:     opts.Prefix,
		saveOnSync: opts.SaveOnSync,
		logger:     opts.Logger,
	}
	if err := e.redis.Ping(e.ctx).Err(); err != nil {
		_ = e.redis.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", options.Addr, err)
	}
	return e, nil
}

// NewDatastore opens an engine and wraps it in a kv datastore.
func NewDatastore(options *redis.Options, opts Options) (*kv.Datastore, error) {
	engine, err := NewEngine(options, opts)
	if err != nil {
		return nil, graphstore.NewError("redis", "open", err)
	}
	return kv.NewDatastore(engine, opts.Logger), nil
}

func (e *Engine) View(fn func(kv.Reader) error) error {
	return fn(reader{e})
}

func (e *Engine) Write(batch *kv.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	_, err := e.redis.TxPipelined(e.ctx, func(pipe redis.Pipeliner) error {
		for _, op := range batch.Ops {
			member := string(op.Key)
			switch op.Kind {
			case kv.OpPut:
				pipe.ZAdd(e.ctx, e.namespaceToKeysKey(op.Namespace), redis.Z{Score: 0, Member: member})
				pipe.HSet(e.ctx, e.namespaceToValuesKey(op.Namespace), member, op.Value)
			case kv.OpDelete:
				pipe.ZRem(e.ctx, e.namespaceToKeysKey(op.Namespace), member)
				pipe.HDel(e.ctx, e.namespaceToValuesKey(op.Namespace), member)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Debugf("wrote batch of %d ops", batch.Len())
	return nil
}

func (e *Engine) Sync() error {
	if !e.saveOnSync {
		return nil
	}
	return e.redis.Save(e.ctx).Err()
}

func (e *Engine) Close() error {
	return e.redis.Close()
}

type reader struct {
	e *Engine
}

func (r reader) Get(ns string, key []byte) ([]byte, bool, error) {
	value, err := r.e.redis.HGet(r.e.ctx, r.e.namespaceToValuesKey(ns), string(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (r reader) Iterate(ns string, from, prefix []byte, fn func(key, value []byte) (bool, error)) error {
	start := prefix
	if from != nil {
		start = from
	}
	lower := "[" + string(start)
	if len(start) == 0 {
		lower = "-"
	}
	upper := "+"
	if end, ok := prefixEnd(prefix); ok {
		upper = "(" + string(end)
	}

	keysKey := r.e.namespaceToKeysKey(ns)
	valuesKey := r.e.namespaceToValuesKey(ns)
	for {
		members, err := r.e.redis.ZRangeByLex(r.e.ctx, keysKey, &redis.ZRangeBy{Min: lower, Max: upper, Count: pageSize}).Result()
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return nil
		}

		values, err := r.e.redis.HMGet(r.e.ctx, valuesKey, members...).Result()
		if err != nil {
			return err
		}
		for i, member := range members {
			// deleted between the two reads
			raw, ok := values[i].(string)
			if !ok {
				continue
			}
			more, err := fn([]byte(member), []byte(raw))
			if err != nil || !more {
				return err
			}
		}

		if len(members) < pageSize {
			return nil
		}
		lower = "(" + members[len(members)-1]
	}
}

// prefixEnd returns the smallest key greater than every key starting with
// prefix, or false when no such key exists.
func prefixEnd(prefix []byte) ([]byte, bool) {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1], true
		}
	}
	return nil, false
}

func (e *Engine) namespaceToKeysKey(ns string) string {
	return fmt.Sprintf("%s:%s:keys", e.prefix, ns)
}

func (e *Engine) namespaceToValuesKey(ns string) string {
	return fmt.Sprintf("%s:%s:values", e.prefix, ns)
}
