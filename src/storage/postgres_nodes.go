package storage

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"power-observer/src/helpers"
)

// Node registry kept next to the readings table on Postgres.

const (
	NodeTypeDirect    = "direct"
	NodeTypeReference = "postgres_ref"
)

var nodeRefRegex = regexp.MustCompile(`^(\w+)\.(\w+)\.(\w+)$`)

// NodeMetadata is one row of the node registry.
type NodeMetadata struct {
	Node      string
	Type      string
	RefSchema string
	RefTable  string
	RefField  string
}

// -----------------------------------------------------------------------------

// ParseNodeReference recognizes "schema.table.field" entries in a node list.
func ParseNodeReference(entry string) (NodeMetadata, bool) {
	m := nodeRefRegex.FindStringSubmatch(entry)
	if len(m) != 4 {
		return NodeMetadata{}, false
	}
	return NodeMetadata{
		Node:      entry,
		Type:      NodeTypeReference,
		RefSchema: m[1],
		RefTable:  m[2],
		RefField:  m[3],
	}, true
}

// -----------------------------------------------------------------------------

// ResolveAndRegisterNodes expands "schema.table.field" references into the
// node ids held in that column, registers everything, and returns the direct
// node ids in input order.
func (d *PostgresReadingStore) ResolveAndRegisterNodes(ctx context.Context, entries []string) ([]string, error) {
	var direct []string
	var registry []NodeMetadata

	for _, entry := range entries {
		ref, ok := ParseNodeReference(entry)
		if !ok {
			direct = append(direct, entry)
			registry = append(registry, NodeMetadata{Node: entry, Type: NodeTypeDirect})
			continue
		}

		registry = append(registry, ref)
		loaded, err := d.NodesFromTable(ctx, ref.RefSchema, ref.RefTable, ref.RefField)
		if err != nil {
			return direct, fmt.Errorf("failed to load nodes from %s: %w", entry, err)
		}
		for _, n := range loaded {
			direct = append(direct, n)
			registry = append(registry, NodeMetadata{Node: n, Type: NodeTypeDirect})
		}
	}

	if err := d.RegisterNodes(ctx, registry); err != nil {
		return direct, err
	}
	return direct, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresReadingStore) RegisterNodes(ctx context.Context, nodes []NodeMetadata) error {
	if len(nodes) == 0 {
		return nil
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewDatabaseError("begin register nodes", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (node, type, ref_schema, ref_table, ref_field, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (node) DO UPDATE SET
			type = EXCLUDED.type,
			ref_schema = EXCLUDED.ref_schema,
			ref_table = EXCLUDED.ref_table,
			ref_field = EXCLUDED.ref_field,
			updated_at = EXCLUDED.updated_at
	`, d.table("nodes"))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return helpers.NewDatabaseError("prepare register nodes", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, n := range nodes {
		if _, err := stmt.ExecContext(ctx, n.Node, n.Type, n.RefSchema, n.RefTable, n.RefField, now); err != nil {
			return helpers.NewDatabaseError("register node "+n.Node, err)
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

// NodesFromTable reads node ids from an arbitrary column. The identifiers come
// from nodeRefRegex (\w+ only) and are quoted.
func (d *PostgresReadingStore) NodesFromTable(ctx context.Context, schema, table, field string) ([]string, error) {
	query := fmt.Sprintf(`SELECT "%s" FROM "%s"."%s"`, field, schema, table)
	rows, err := d.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, helpers.NewDatabaseError("query node reference", err)
	}
	return scanStrings(rows)
}
