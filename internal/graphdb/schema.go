package graphdb

import (
	"context"
	"fmt"
	"strings"
)

// SchemaObjectKind distinguishes indexes from constraints.
type SchemaObjectKind string

const (
	SchemaIndex      SchemaObjectKind = "index"
	SchemaConstraint SchemaObjectKind = "constraint"
)

// SchemaObject describes one index or constraint as reported by the server.
type SchemaObject struct {
	Name       string
	Kind       SchemaObjectKind
	Target     string // node label or relationship type
	Properties []string
}

// SchemaDialect produces the schema command text for one server generation.
// Selected once after version detection and held for the client's lifetime.
type SchemaDialect interface {
	ShowIndexes() string
	ShowConstraints() string
	CreateIndex(name, label string, properties []string) string
	CreateConstraint(name, label, property string) string
	DropIndex(name string) string
	DropConstraint(name string) string
}

// DialectForVersion picks the command dialect for a server major version.
func DialectForVersion(v *ServerVersion) SchemaDialect {
	if v != nil && v.Major >= 5 {
		return ModernSchemaDialect{}
	}
	return LegacySchemaDialect{}
}

// escapeName quotes an identifier for interpolation into schema and
// management commands, which cannot take bound parameters.
func escapeName(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// LegacySchemaDialect targets servers before 5.x: procedure-call
// introspection and the ASSERT constraint syntax.
type LegacySchemaDialect struct{}

func (LegacySchemaDialect) ShowIndexes() string {
	return "CALL db.indexes() YIELD name, labelsOrTypes, properties " +
		"RETURN name, labelsOrTypes, properties"
}

func (LegacySchemaDialect) ShowConstraints() string {
	return "CALL db.constraints() YIELD name RETURN name"
}

func (LegacySchemaDialect) CreateIndex(_, label string, properties []string) string {
	return fmt.Sprintf("CREATE INDEX ON :%s(%s)", escapeName(label), strings.Join(properties, ", "))
}

func (LegacySchemaDialect) CreateConstraint(_, label, property string) string {
	return fmt.Sprintf("CREATE CONSTRAINT ON (n:%s) ASSERT n.%s IS UNIQUE",
		escapeName(label), property)
}

func (LegacySchemaDialect) DropIndex(name string) string {
	return "DROP INDEX " + escapeName(name)
}

func (LegacySchemaDialect) DropConstraint(name string) string {
	return "DROP CONSTRAINT " + escapeName(name)
}

// ModernSchemaDialect targets 5.x and later: declarative SHOW introspection
// and idempotent IF EXISTS / IF NOT EXISTS guards.
type ModernSchemaDialect struct{}

func (ModernSchemaDialect) ShowIndexes() string {
	return "SHOW INDEXES YIELD name, entityType, labelsOrTypes, properties " +
		"RETURN name, entityType, labelsOrTypes, properties"
}

func (ModernSchemaDialect) ShowConstraints() string {
	return "SHOW CONSTRAINTS YIELD name, entityType, labelsOrTypes, properties " +
		"RETURN name, entityType, labelsOrTypes, properties"
}

func (ModernSchemaDialect) CreateIndex(name, label string, properties []string) string {
	quoted := make([]string, len(properties))
	for i, p := range properties {
		quoted[i] = "n." + p
	}
	return fmt.Sprintf("CREATE INDEX %s IF NOT EXISTS FOR (n:%s) ON (%s)",
		escapeName(name), escapeName(label), strings.Join(quoted, ", "))
}

func (ModernSchemaDialect) CreateConstraint(name, label, property string) string {
	return fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
		escapeName(name), escapeName(label), property)
}

func (ModernSchemaDialect) DropIndex(name string) string {
	return "DROP INDEX " + escapeName(name) + " IF EXISTS"
}

func (ModernSchemaDialect) DropConstraint(name string) string {
	return "DROP CONSTRAINT " + escapeName(name) + " IF EXISTS"
}

// schemaDialect returns the dialect for the connected server, detecting the
// version on first use.
func (c *Client) schemaDialect(ctx context.Context) (SchemaDialect, error) {
	if c.dialect != nil {
		return c.dialect, nil
	}
	if _, err := c.ServerVersion(ctx); err != nil {
		return nil, err
	}
	return c.dialect, nil
}

// ListIndexes returns all indexes in the active database.
func (c *Client) ListIndexes(ctx context.Context) ([]SchemaObject, error) {
	return c.ListSchemaObjects(ctx, SchemaIndex)
}

// ListConstraints returns all constraints in the active database.
func (c *Client) ListConstraints(ctx context.Context) ([]SchemaObject, error) {
	return c.ListSchemaObjects(ctx, SchemaConstraint)
}

// ListSchemaObjects lists schema objects of one kind using the
// version-appropriate introspection command.
func (c *Client) ListSchemaObjects(ctx context.Context, kind SchemaObjectKind) ([]SchemaObject, error) {
	if c.mode == ModeOffline {
		c.log.Info("offline mode, not listing schema objects", "kind", string(kind))
		return nil, nil
	}

	dialect, err := c.schemaDialect(ctx)
	if err != nil {
		return nil, err
	}

	query := dialect.ShowIndexes()
	if kind == SchemaConstraint {
		query = dialect.ShowConstraints()
	}

	res, err := c.Query(ctx, query, nil, WithRead(), WithRaiseErrors(true))
	if err != nil {
		return nil, fmt.Errorf("listing %ss: %w", kind, err)
	}
	if res == nil {
		return nil, nil
	}

	objects := make([]SchemaObject, 0, len(res.Records))
	for _, record := range res.Records {
		obj := SchemaObject{Kind: kind}
		if raw, ok := record.Get("name"); ok {
			obj.Name, _ = raw.(string)
		}
		if obj.Name == "" {
			continue
		}
		if raw, ok := record.Get("labelsOrTypes"); ok {
			if targets, ok := raw.([]any); ok && len(targets) > 0 {
				obj.Target, _ = targets[0].(string)
			}
		}
		if raw, ok := record.Get("properties"); ok {
			if props, ok := raw.([]any); ok {
				for _, p := range props {
					if s, ok := p.(string); ok {
						obj.Properties = append(obj.Properties, s)
					}
				}
			}
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// CreateIndex creates a node index. The name is only used on servers whose
// dialect supports named indexes.
func (c *Client) CreateIndex(ctx context.Context, name, label string, properties ...string) error {
	if len(properties) == 0 {
		return fmt.Errorf("creating index %s: at least one property is required", name)
	}

	dialect, err := c.schemaDialect(ctx)
	if err != nil {
		return err
	}

	_, err = c.Query(ctx, dialect.CreateIndex(name, label, properties), nil, WithRaiseErrors(true))
	if err != nil {
		return fmt.Errorf("creating index %s: %w", name, err)
	}
	return nil
}

// CreateConstraint creates a uniqueness constraint on one node property.
func (c *Client) CreateConstraint(ctx context.Context, name, label, property string) error {
	dialect, err := c.schemaDialect(ctx)
	if err != nil {
		return err
	}

	_, err = c.Query(ctx, dialect.CreateConstraint(name, label, property), nil, WithRaiseErrors(true))
	if err != nil {
		return fmt.Errorf("creating constraint %s: %w", name, err)
	}
	return nil
}

// DropIndexes drops all indexes in the active database and returns how many
// were dropped. Requires the database to be empty; emptiness is the caller's
// contract, enforced by the server.
func (c *Client) DropIndexes(ctx context.Context) (int, error) {
	return c.dropSchemaObjects(ctx, SchemaIndex)
}

// DropConstraints drops all constraints in the active database and returns
// how many were dropped. Requires the database to be empty.
func (c *Client) DropConstraints(ctx context.Context) (int, error) {
	return c.dropSchemaObjects(ctx, SchemaConstraint)
}

// dropSchemaObjects lists objects of one kind and drops them one by one,
// each guarded so a failed drop never aborts the batch. Drops run during
// wipe/reset sequences that must keep going.
func (c *Client) dropSchemaObjects(ctx context.Context, kind SchemaObjectKind) (int, error) {
	if c.mode == ModeOffline {
		c.log.Info("offline mode, not dropping schema objects", "kind", string(kind))
		return 0, nil
	}

	objects, err := c.ListSchemaObjects(ctx, kind)
	if err != nil {
		return 0, err
	}

	dialect, err := c.schemaDialect(ctx)
	if err != nil {
		return 0, err
	}

	dropped := 0
	names := make([]string, 0, len(objects))
	for _, obj := range objects {
		query := dialect.DropIndex(obj.Name)
		if kind == SchemaConstraint {
			query = dialect.DropConstraint(obj.Name)
		}
		if _, err := c.Query(ctx, query, nil, WithRaiseErrors(true)); err != nil {
			c.log.Warn("failed to drop schema object",
				"kind", string(kind), "name", obj.Name, "error", err)
			continue
		}
		dropped++
		names = append(names, obj.Name)
	}

	c.log.Info("dropped schema objects",
		"kind", string(kind), "count", dropped, "names", strings.Join(names, ", "))
	return dropped, nil
}
