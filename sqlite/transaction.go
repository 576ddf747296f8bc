package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/abstract-base-method/graphstore"
)

type Transaction struct {
	datastore *Datastore
	tx        *sql.Tx
	ctx       context.Context
}

func wrap(op string, err error) error {
	return graphstore.NewError(backendName, op, err)
}

func (t *Transaction) compileVertices(q graphstore.VertexQuery) (*cteBuilder, bool, error) {
	b := &cteBuilder{}
	ok, err := b.vertexQuery(q)
	return b, ok, err
}

func (t *Transaction) compileEdges(q graphstore.EdgeQuery) (*cteBuilder, bool, error) {
	b := &cteBuilder{}
	ok, err := b.edgeQuery(q)
	return b, ok, err
}

func (t *Transaction) exec(query string, params ...any) (sql.Result, error) {
	return t.tx.ExecContext(t.ctx, query, params...)
}

func (t *Transaction) CreateVertex(vertex graphstore.Vertex) (bool, error) {
	if err := vertex.Validate(); err != nil {
		return false, err
	}
	res, err := t.exec(`INSERT INTO vertices (id, type) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		vertex.ID.Bytes(), vertex.Type.String())
	if err != nil {
		return false, wrap("create_vertex", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("create_vertex", err)
	}
	return n == 1, nil
}

func (t *Transaction) SetVertices(vertices []graphstore.Vertex) error {
	for _, v := range vertices {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	for _, v := range vertices {
		_, err := t.exec(`INSERT INTO vertices (id, type) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET type = excluded.type`,
			v.ID.Bytes(), v.Type.String())
		if err != nil {
			return wrap("set_vertices", err)
		}
	}
	return nil
}

func (t *Transaction) GetVertices(q graphstore.VertexQuery) ([]graphstore.Vertex, error) {
	b, ok, err := t.compileVertices(q)
	if err != nil || !ok {
		return nil, wrap("get_vertices", err)
	}
	query, params := b.sql("SELECT id, type FROM %s ORDER BY pos")
	rows, err := t.tx.QueryContext(t.ctx, query, params...)
	if err != nil {
		return nil, wrap("get_vertices", err)
	}
	defer rows.Close()

	var vertices []graphstore.Vertex
	for rows.Next() {
		var rawID []byte
		var rawType string
		if err := rows.Scan(&rawID, &rawType); err != nil {
			return nil, wrap("get_vertices", err)
		}
		v, err := toVertex(rawID, rawType)
		if err != nil {
			return nil, wrap("get_vertices", err)
		}
		vertices = append(vertices, v)
	}
	return vertices, wrap("get_vertices", rows.Err())
}

func (t *Transaction) DeleteVertices(q graphstore.VertexQuery) error {
	b, ok, err := t.compileVertices(q)
	if err != nil || !ok {
		return wrap("delete_vertices", err)
	}
	query, params := b.sql("DELETE FROM vertices WHERE id IN (SELECT id FROM %s)")
	_, err = t.exec(query, params...)
	return wrap("delete_vertices", err)
}

func (t *Transaction) GetVertexCount() (uint64, error) {
	var count uint64
	err := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM vertices`).Scan(&count)
	return count, wrap("get_vertex_count", err)
}

func (t *Transaction) CreateEdge(key graphstore.EdgeKey) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	var found int
	err := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM vertices WHERE id IN (?, ?)`,
		key.OutboundID.Bytes(), key.InboundID.Bytes()).Scan(&found)
	if err != nil {
		return false, wrap("create_edge", err)
	}
	want := 2
	if key.OutboundID == key.InboundID {
		want = 1
	}
	if found != want {
		return false, nil
	}

	id, err := t.datastore.newEdgeID()
	if err != nil {
		return false, wrap("create_edge", err)
	}
	_, err = t.exec(`INSERT INTO edges (id, outbound_id, type, inbound_id, update_timestamp) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (outbound_id, type, inbound_id) DO UPDATE SET update_timestamp = excluded.update_timestamp`,
		id, key.OutboundID.Bytes(), key.Type.String(), key.InboundID.Bytes(), t.datastore.clock.Now().UnixNano())
	if err != nil {
		return false, wrap("create_edge", err)
	}
	return true, nil
}

func (t *Transaction) GetEdges(q graphstore.EdgeQuery) ([]graphstore.Edge, error) {
	b, ok, err := t.compileEdges(q)
	if err != nil || !ok {
		return nil, wrap("get_edges", err)
	}
	query, params := b.sql("SELECT outbound_id, type, inbound_id, update_timestamp FROM %s ORDER BY pos")
	rows, err := t.tx.QueryContext(t.ctx, query, params...)
	if err != nil {
		return nil, wrap("get_edges", err)
	}
	defer rows.Close()

	var edges []graphstore.Edge
	for rows.Next() {
		var out, in []byte
		var rawType string
		var nanos int64
		if err := rows.Scan(&out, &rawType, &in, &nanos); err != nil {
			return nil, wrap("get_edges", err)
		}
		key, err := toEdgeKey(out, rawType, in)
		if err != nil {
			return nil, wrap("get_edges", err)
		}
		edges = append(edges, graphstore.Edge{Key: key, UpdateTimestamp: time.Unix(0, nanos).UTC()})
	}
	return edges, wrap("get_edges", rows.Err())
}

func (t *Transaction) DeleteEdges(q graphstore.EdgeQuery) error {
	b, ok, err := t.compileEdges(q)
	if err != nil || !ok {
		return wrap("delete_edges", err)
	}
	query, params := b.sql("DELETE FROM edges WHERE id IN (SELECT id FROM %s)")
	_, err = t.exec(query, params...)
	return wrap("delete_edges", err)
}

func (t *Transaction) GetEdgeCount(id graphstore.Identifier, typ *graphstore.Type, direction graphstore.EdgeDirection) (uint64, error) {
	column := "outbound_id"
	if direction == graphstore.Inbound {
		column = "inbound_id"
	}
	query := "SELECT COUNT(*) FROM edges WHERE " + column + " = ?"
	params := []any{id.Bytes()}
	if typ != nil {
		query += " AND type = ?"
		params = append(params, typ.String())
	}

	var count uint64
	err := t.tx.QueryRowContext(t.ctx, query, params...).Scan(&count)
	return count, wrap("get_edge_count", err)
}

func (t *Transaction) GetVertexProperties(q graphstore.VertexPropertyQuery) ([]graphstore.VertexProperty, error) {
	b, ok, err := t.compileVertices(q.Inner)
	if err != nil || !ok {
		return nil, wrap("get_vertex_properties", err)
	}
	query, params := b.sql("SELECT p.id, m.value FROM %s AS p JOIN vertex_metadata AS m ON m.owner_id = p.id WHERE m.name = ? ORDER BY p.pos",
		q.Name.String())
	rows, err := t.tx.QueryContext(t.ctx, query, params...)
	if err != nil {
		return nil, wrap("get_vertex_properties", err)
	}
	defer rows.Close()

	var results []graphstore.VertexProperty
	for rows.Next() {
		var rawID []byte
		var value string
		if err := rows.Scan(&rawID, &value); err != nil {
			return nil, wrap("get_vertex_properties", err)
		}
		id, err := graphstore.NewIdentifier(rawID)
		if err != nil {
			return nil, wrap("get_vertex_properties", err)
		}
		results = append(results, graphstore.VertexProperty{ID: id, Value: json.RawMessage(value)})
	}
	return results, wrap("get_vertex_properties", rows.Err())
}

func (t *Transaction) SetVertexProperties(q graphstore.VertexPropertyQuery, value json.RawMessage) error {
	if err := q.Name.Validate(); err != nil {
		return err
	}
	value, err := graphstore.CompactValue(value)
	if err != nil {
		return err
	}
	b, ok, err := t.compileVertices(q.Inner)
	if err != nil || !ok {
		return wrap("set_vertex_properties", err)
	}
	query, params := b.sql(`INSERT INTO vertex_metadata (owner_id, name, value) SELECT DISTINCT id, ?, ? FROM %s WHERE true
		ON CONFLICT (owner_id, name) DO UPDATE SET value = excluded.value`, q.Name.String(), string(value))
	_, err = t.exec(query, params...)
	return wrap("set_vertex_properties", err)
}

func (t *Transaction) DeleteVertexProperties(q graphstore.VertexPropertyQuery) error {
	b, ok, err := t.compileVertices(q.Inner)
	if err != nil || !ok {
		return wrap("delete_vertex_properties", err)
	}
	query, params := b.sql("DELETE FROM vertex_metadata WHERE owner_id IN (SELECT id FROM %s) AND name = ?", q.Name.String())
	_, err = t.exec(query, params...)
	return wrap("delete_vertex_properties", err)
}

func (t *Transaction) GetEdgeProperties(q graphstore.EdgePropertyQuery) ([]graphstore.EdgeProperty, error) {
	b, ok, err := t.compileEdges(q.Inner)
	if err != nil || !ok {
		return nil, wrap("get_edge_properties", err)
	}
	query, params := b.sql("SELECT p.outbound_id, p.type, p.inbound_id, m.value FROM %s AS p JOIN edge_metadata AS m ON m.owner_id = p.id WHERE m.name = ? ORDER BY p.pos",
		q.Name.String())
	rows, err := t.tx.QueryContext(t.ctx, query, params...)
	if err != nil {
		return nil, wrap("get_edge_properties", err)
	}
	defer rows.Close()

	var results []graphstore.EdgeProperty
	for rows.Next() {
		var out, in []byte
		var rawType, value string
		if err := rows.Scan(&out, &rawType, &in, &value); err != nil {
			return nil, wrap("get_edge_properties", err)
		}
		key, err := toEdgeKey(out, rawType, in)
		if err != nil {
			return nil, wrap("get_edge_properties", err)
		}
		results = append(results, graphstore.EdgeProperty{Key: key, Value: json.RawMessage(value)})
	}
	return results, wrap("get_edge_properties", rows.Err())
}

func (t *Transaction) SetEdgeProperties(q graphstore.EdgePropertyQuery, value json.RawMessage) error {
	if err := q.Name.Validate(); err != nil {
		return err
	}
	value, err := graphstore.CompactValue(value)
	if err != nil {
		return err
	}
	b, ok, err := t.compileEdges(q.Inner)
	if err != nil || !ok {
		return wrap("set_edge_properties", err)
	}
	query, params := b.sql(`INSERT INTO edge_metadata (owner_id, name, value) SELECT DISTINCT id, ?, ? FROM %s WHERE true
		ON CONFLICT (owner_id, name) DO UPDATE SET value = excluded.value`, q.Name.String(), string(value))
	_, err = t.exec(query, params...)
	return wrap("set_edge_properties", err)
}

func (t *Transaction) DeleteEdgeProperties(q graphstore.EdgePropertyQuery) error {
	b, ok, err := t.compileEdges(q.Inner)
	if err != nil || !ok {
		return wrap("delete_edge_properties", err)
	}
	query, params := b.sql("DELETE FROM edge_metadata WHERE owner_id IN (SELECT id FROM %s) AND name = ?", q.Name.String())
	_, err = t.exec(query, params...)
	return wrap("delete_edge_properties", err)
}

// GetAllVertexProperties left joins the metadata onto the matched
// vertices. Rows arrive grouped by pos with names ascending.
func (t *Transaction) GetAllVertexProperties(q graphstore.VertexQuery) ([]graphstore.VertexWithProperties, error) {
	b, ok, err := t.compileVertices(q)
	if err != nil || !ok {
		return nil, wrap("get_all_vertex_properties", err)
	}
	query, params := b.sql("SELECT p.pos, p.id, p.type, m.name, m.value FROM %s AS p LEFT JOIN vertex_metadata AS m ON m.owner_id = p.id ORDER BY p.pos, m.name")
	rows, err := t.tx.QueryContext(t.ctx, query, params...)
	if err != nil {
		return nil, wrap("get_all_vertex_properties", err)
	}
	defer rows.Close()

	var results []graphstore.VertexWithProperties
	var lastPos int64
	for rows.Next() {
		var pos int64
		var rawID []byte
		var rawType string
		var name, value sql.NullString
		if err := rows.Scan(&pos, &rawID, &rawType, &name, &value); err != nil {
			return nil, wrap("get_all_vertex_properties", err)
		}
		if len(results) == 0 || pos != lastPos {
			v, err := toVertex(rawID, rawType)
			if err != nil {
				return nil, wrap("get_all_vertex_properties", err)
			}
			results = append(results, graphstore.VertexWithProperties{Vertex: v, Props: []graphstore.NamedProperty{}})
			lastPos = pos
		}
		if name.Valid {
			prop, err := toNamedProperty(name.String, value.String)
			if err != nil {
				return nil, wrap("get_all_vertex_properties", err)
			}
			last := &results[len(results)-1]
			last.Props = append(last.Props, prop)
		}
	}
	return results, wrap("get_all_vertex_properties", rows.Err())
}

func (t *Transaction) GetAllEdgeProperties(q graphstore.EdgeQuery) ([]graphstore.EdgeWithProperties, error) {
	b, ok, err := t.compileEdges(q)
	if err != nil || !ok {
		return nil, wrap("get_all_edge_properties", err)
	}
	query, params := b.sql("SELECT p.pos, p.outbound_id, p.type, p.inbound_id, p.update_timestamp, m.name, m.value FROM %s AS p LEFT JOIN edge_metadata AS m ON m.owner_id = p.id ORDER BY p.pos, m.name")
	rows, err := t.tx.QueryContext(t.ctx, query, params...)
	if err != nil {
		return nil, wrap("get_all_edge_properties", err)
	}
	defer rows.Close()

	var results []graphstore.EdgeWithProperties
	var lastPos int64
	for rows.Next() {
		var pos, nanos int64
		var out, in []byte
		var rawType string
		var name, value sql.NullString
		if err := rows.Scan(&pos, &out, &rawType, &in, &nanos, &name, &value); err != nil {
			return nil, wrap("get_all_edge_properties", err)
		}
		if len(results) == 0 || pos != lastPos {
			key, err := toEdgeKey(out, rawType, in)
			if err != nil {
				return nil, wrap("get_all_edge_properties", err)
			}
			edge := graphstore.Edge{Key: key, UpdateTimestamp: time.Unix(0, nanos).UTC()}
			results = append(results, graphstore.EdgeWithProperties{Edge: edge, Props: []graphstore.NamedProperty{}})
			lastPos = pos
		}
		if name.Valid {
			prop, err := toNamedProperty(name.String, value.String)
			if err != nil {
				return nil, wrap("get_all_edge_properties", err)
			}
			last := &results[len(results)-1]
			last.Props = append(last.Props, prop)
		}
	}
	return results, wrap("get_all_edge_properties", rows.Err())
}

func (t *Transaction) BulkInsert(items []graphstore.BulkInsertItem) error {
	return graphstore.ApplyBulkInsert(backendName, t, items)
}

// Sync commits everything so far and continues in a fresh transaction.
//
// When the commit succeeds but the next BEGIN fails, the writes are durable
// and t is finished: every later call fails with sql.ErrTxDone, and the
// caller has to drop t and start a new Transaction.
func (t *Transaction) Sync() error {
	if err := t.tx.Commit(); err != nil {
		return wrap("sync", err)
	}
	tx, err := t.datastore.db.BeginTx(t.ctx, nil)
	if err != nil {
		return wrap("sync", fmt.Errorf("committed, but failed to begin the next transaction: %w", err))
	}
	t.tx = tx
	return nil
}

func (t *Transaction) Commit() error {
	return wrap("commit", t.tx.Commit())
}

func (t *Transaction) Rollback() error {
	return wrap("rollback", t.tx.Rollback())
}

func toVertex(rawID []byte, rawType string) (graphstore.Vertex, error) {
	id, err := graphstore.NewIdentifier(rawID)
	if err != nil {
		return graphstore.Vertex{}, err
	}
	typ, err := graphstore.NewType(rawType)
	if err != nil {
		return graphstore.Vertex{}, err
	}
	return graphstore.Vertex{ID: id, Type: typ}, nil
}

func toNamedProperty(rawName, value string) (graphstore.NamedProperty, error) {
	name, err := graphstore.NewType(rawName)
	if err != nil {
		return graphstore.NamedProperty{}, err
	}
	return graphstore.NamedProperty{Name: name, Value: json.RawMessage(value)}, nil
}

func toEdgeKey(out []byte, rawType string, in []byte) (graphstore.EdgeKey, error) {
	outID, err := graphstore.NewIdentifier(out)
	if err != nil {
		return graphstore.EdgeKey{}, err
	}
	inID, err := graphstore.NewIdentifier(in)
	if err != nil {
		return graphstore.EdgeKey{}, err
	}
	typ, err := graphstore.NewType(rawType)
	if err != nil {
		return graphstore.EdgeKey{}, err
	}
	return graphstore.NewEdgeKey(outID, typ, inID), nil
}
