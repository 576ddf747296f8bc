package sqlite

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/abstract-base-method/graphstore"
	gojson "github.com/goccy/go-json"
)

// cteBuilder compiles a query tree into chained common table expressions,
// pipe_1 through pipe_n, innermost first. Vertex stages expose
// (id, type, pos) and edge stages (id, outbound_id, type, inbound_id,
// update_timestamp, pos); pos is the result order of each stage.
//
// Id lists are bound as one JSON text parameter and expanded with
// json_each, so their length is not bounded by the variable limit. Ids are
// hex encoded in that document; the array index becomes pos.
type cteBuilder struct {
	stages []string
	params []any
}

// push adds a stage. template receives the name of the previous stage.
func (b *cteBuilder) push(template func(prev string) string, params ...any) {
	prev := b.last()
	name := fmt.Sprintf("pipe_%d", len(b.stages)+1)
	b.stages = append(b.stages, fmt.Sprintf("%s AS (%s)", name, template(prev)))
	b.params = append(b.params, params...)
}

func (b *cteBuilder) last() string {
	if len(b.stages) == 0 {
		return ""
	}
	return fmt.Sprintf("pipe_%d", len(b.stages))
}

// sql wraps statement, which reads from the last stage, in the WITH clause.
// Extra params follow the stage params.
func (b *cteBuilder) sql(statement string, params ...any) (string, []any) {
	query := fmt.Sprintf("WITH %s %s", strings.Join(b.stages, ", "), fmt.Sprintf(statement, b.last()))
	return query, append(append([]any{}, b.params...), params...)
}

// vertexQuery reports false when q can be known empty without a round trip.
func (b *cteBuilder) vertexQuery(q graphstore.VertexQuery) (bool, error) {
	switch q := q.(type) {
	case graphstore.AllVertexQuery:
		if q.Limit == 0 {
			return false, nil
		}
		var where []string
		var params []any
		if q.StartID != nil {
			where = append(where, "id > ?")
			params = append(params, q.StartID.Bytes())
		}
		if q.TypeFilter != nil {
			where = append(where, "type = ?")
			params = append(params, q.TypeFilter.String())
		}
		params = append(params, int64(q.Limit))
		b.push(func(string) string {
			return "SELECT id, type, ROW_NUMBER() OVER (ORDER BY id) AS pos FROM vertices" +
				whereClause(where) + " ORDER BY id LIMIT ?"
		}, params...)
		return true, nil

	case graphstore.SpecificVertexQuery:
		if len(q.IDs) == 0 {
			return false, nil
		}
		ids := make([]string, 0, len(q.IDs))
		for _, id := range q.IDs {
			ids = append(ids, hex.EncodeToString(id.Bytes()))
		}
		doc, err := gojson.Marshal(ids)
		if err != nil {
			return false, err
		}
		b.push(func(string) string {
			return "SELECT v.id, v.type, r.key AS pos FROM json_each(?) AS r JOIN vertices AS v ON v.id = unhex(r.value)"
		}, string(doc))
		return true, nil

	case graphstore.PipeVertexQuery:
		if q.Limit == 0 {
			return false, nil
		}
		ok, err := b.edgeQuery(q.Inner)
		if err != nil || !ok {
			return ok, err
		}
		column := "outbound_id"
		if q.Direction == graphstore.Inbound {
			column = "inbound_id"
		}
		var where []string
		var params []any
		if q.TypeFilter != nil {
			where = append(where, "v.type = ?")
			params = append(params, q.TypeFilter.String())
		}
		params = append(params, int64(q.Limit))
		b.push(func(prev string) string {
			return fmt.Sprintf("SELECT v.id, v.type, MIN(p.pos) AS pos FROM %s AS p JOIN vertices AS v ON v.id = p.%s", prev, column) +
				whereClause(where) + " GROUP BY v.id, v.type ORDER BY pos LIMIT ?"
		}, params...)
		return true, nil

	default:
		return false, fmt.Errorf("unsupported vertex query %T", q)
	}
}

func (b *cteBuilder) edgeQuery(q graphstore.EdgeQuery) (bool, error) {
	switch q := q.(type) {
	case graphstore.SpecificEdgeQuery:
		if len(q.Keys) == 0 {
			return false, nil
		}
		keys := make([][3]string, 0, len(q.Keys))
		for _, key := range q.Keys {
			keys = append(keys, [3]string{
				hex.EncodeToString(key.OutboundID.Bytes()),
				key.Type.String(),
				hex.EncodeToString(key.InboundID.Bytes()),
			})
		}
		doc, err := gojson.Marshal(keys)
		if err != nil {
			return false, err
		}
		b.push(func(string) string {
			return "SELECT e.id, e.outbound_id, e.type, e.inbound_id, e.update_timestamp, r.key AS pos FROM json_each(?) AS r JOIN edges AS e" +
				" ON e.outbound_id = unhex(json_extract(r.value, '$[0]'))" +
				" AND e.type = json_extract(r.value, '$[1]')" +
				" AND e.inbound_id = unhex(json_extract(r.value, '$[2]'))"
		}, string(doc))
		return true, nil

	case graphstore.PipeEdgeQuery:
		if q.Limit == 0 {
			return false, nil
		}
		ok, err := b.vertexQuery(q.Inner)
		if err != nil || !ok {
			return ok, err
		}
		near, far := "outbound_id", "inbound_id"
		if q.Direction == graphstore.Inbound {
			near, far = far, near
		}
		var where []string
		var params []any
		if q.TypeFilter != nil {
			where = append(where, "e.type = ?")
			params = append(params, q.TypeFilter.String())
		}
		if q.High != nil {
			where = append(where, "e.update_timestamp <= ?")
			params = append(params, q.High.UnixNano())
		}
		if q.Low != nil {
			where = append(where, "e.update_timestamp >= ?")
			params = append(params, q.Low.UnixNano())
		}
		params = append(params, int64(q.Limit))
		b.push(func(prev string) string {
			return fmt.Sprintf("SELECT e.id, e.outbound_id, e.type, e.inbound_id, e.update_timestamp, "+
				"ROW_NUMBER() OVER (ORDER BY p.pos, e.update_timestamp DESC, e.type, e.%s) AS pos "+
				"FROM %s AS p JOIN edges AS e ON e.%s = p.id", far, prev, near) +
				whereClause(where) + " ORDER BY pos LIMIT ?"
		}, params...)
		return true, nil

	default:
		return false, fmt.Errorf("unsupported edge query %T", q)
	}
}

func whereClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}
