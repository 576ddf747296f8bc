// Package sqlite is a relational graphstore backend. Query trees compile to
// a single statement of chained CTEs, and the database enforces referential
// integrity through cascading foreign keys.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"runtime"

	"github.com/abstract-base-method/graphstore"
	"github.com/abstract-base-method/graphstore/internal/clock"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const backendName = "sqlite"

type Options struct {
	Path string
	// PoolSize bounds open connections. Zero means twice the CPU count.
	PoolSize int
	// SecureIDs mints random edge ids. When false, edge ids are time
	// ordered, which keeps the primary key index append-mostly.
	SecureIDs bool
	// CreateSchema initialises the schema when the database has none.
	CreateSchema bool
	Logger       *log.Logger
}

type Datastore struct {
	db        *sql.DB
	clock     *clock.Clock
	secureIDs bool
	logger    *log.Logger
}

// dsn builds a file URI for path. The path is percent encoded so '?', '#'
// and '%' in file names survive; SQLite decodes it again when opening.
//
// Transactions begin deferred: readers share the WAL snapshot and only the
// first write takes the write lock, waiting up to busy_timeout for it.
func dsn(path string) string {
	escaped := (&url.URL{Path: path}).EscapedPath()
	return "file:" + escaped + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func openDB(path string, poolSize int) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", path, err)
	}
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)
	return db, nil
}

func defaultPoolSize() int {
	cpus := runtime.NumCPU()
	if cpus > 512 {
		return 1024
	}
	return cpus * 2
}

func Open(opts Options) (*Datastore, error) {
	if opts.PoolSize <= 0 {
		opts.PoolSize = defaultPoolSize()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default().WithPrefix(backendName)
	}

	db, err := openDB(opts.Path, opts.PoolSize)
	if err != nil {
		return nil, graphstore.NewError(backendName, "open", err)
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, graphstore.NewError(backendName, "open", err)
	}
	if opts.CreateSchema {
		exists, err := schemaExists(ctx, db)
		if err == nil && !exists {
			opts.Logger.Info("creating schema", "path", opts.Path)
			err = createSchema(ctx, db)
		}
		if err != nil {
			db.Close()
			return nil, graphstore.NewError(backendName, "create_schema", err)
		}
	}

	return &Datastore{
		db:        db,
		clock:     clock.New(),
		secureIDs: opts.SecureIDs,
		logger:    opts.Logger,
	}, nil
}

// Transaction starts a database transaction. It holds one pooled
// connection until Commit or Rollback.
func (d *Datastore) Transaction() (graphstore.Transaction, error) {
	ctx := context.Background()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, graphstore.NewError(backendName, "begin", err)
	}
	return &Transaction{datastore: d, tx: tx, ctx: ctx}, nil
}

func (d *Datastore) Close() error {
	return graphstore.NewError(backendName, "close", d.db.Close())
}

func (d *Datastore) newEdgeID() ([]byte, error) {
	var id uuid.UUID
	var err error
	if d.secureIDs {
		id, err = uuid.NewRandom()
	} else {
		id, err = uuid.NewV7()
	}
	if err != nil {
		return nil, err
	}
	return id[:], nil
}
