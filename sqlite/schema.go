package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Table, column and constraint names are part of the persisted format.
var schema = []string{
	`CREATE TABLE vertices (
		id BLOB NOT NULL,
		type VARCHAR(1000) NOT NULL,
		CONSTRAINT vertices_pkey PRIMARY KEY (id)
	)`,
	`CREATE TABLE edges (
		id BLOB NOT NULL,
		outbound_id BLOB NOT NULL,
		type VARCHAR(1000) NOT NULL,
		inbound_id BLOB NOT NULL,
		update_timestamp BIGINT NOT NULL,
		CONSTRAINT edges_pkey PRIMARY KEY (id),
		CONSTRAINT edges_outbound_id_type_inbound_id_ukey UNIQUE (outbound_id, type, inbound_id),
		CONSTRAINT edges_outbound_id_fkey FOREIGN KEY (outbound_id) REFERENCES vertices (id) ON DELETE CASCADE,
		CONSTRAINT edges_inbound_id_fkey FOREIGN KEY (inbound_id) REFERENCES vertices (id) ON DELETE CASCADE
	)`,
	`CREATE INDEX ix_edges_update_timestamp ON edges (update_timestamp)`,
	`CREATE INDEX ix_edges_inbound_id ON edges (inbound_id)`,
	`CREATE TABLE vertex_metadata (
		owner_id BLOB NOT NULL,
		name VARCHAR(1024) NOT NULL,
		value TEXT NOT NULL,
		CONSTRAINT vertex_metadata_pkey PRIMARY KEY (owner_id, name),
		CONSTRAINT vertex_metadata_owner_id_fkey FOREIGN KEY (owner_id) REFERENCES vertices (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE edge_metadata (
		owner_id BLOB NOT NULL,
		name VARCHAR(1024) NOT NULL,
		value TEXT NOT NULL,
		CONSTRAINT edge_metadata_pkey PRIMARY KEY (owner_id, name),
		CONSTRAINT edge_metadata_owner_id_fkey FOREIGN KEY (owner_id) REFERENCES edges (id) ON DELETE CASCADE
	)`,
}

// CreateSchema initialises the database at path. It fails if any of the
// tables already exist.
func CreateSchema(path string) error {
	db, err := openDB(path, 1)
	if err != nil {
		return err
	}
	defer db.Close()
	return createSchema(context.Background(), db)
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, statement := range schema {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return tx.Commit()
}

func schemaExists(ctx context.Context, db *sql.DB) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'vertices'`).Scan(&n)
	return n > 0, err
}
