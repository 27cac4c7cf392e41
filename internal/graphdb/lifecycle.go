package graphdb

import (
	"context"
	"fmt"
)

// DatabaseState is the observed lifecycle state of a named database.
type DatabaseState string

const (
	StateNonExistent DatabaseState = "nonexistent"
	StateOffline     DatabaseState = "offline"
	StateOnline      DatabaseState = "online"
)

// Management commands usually must run against the system database; when
// issued against a data database the server rejects them with a client
// error, so client errors join the usual transient triggers here.
var adminFallbackTriggers = []ErrorKind{KindClient, KindTransient, KindUnavailable}

// DatabaseStatus looks a database up in the server catalog. A database with
// no catalog row is StateNonExistent.
func (c *Client) DatabaseStatus(ctx context.Context, name string) (DatabaseState, error) {
	if name == "" {
		name = c.active
	}
	if c.mode == ModeOffline {
		c.log.Info("offline mode, not querying database status", "database", name)
		return "", ErrOffline
	}

	res, err := c.Query(ctx, "SHOW DATABASES WHERE name = $name",
		map[string]any{"name": name},
		WithRead(),
		WithFallbackOn(adminFallbackTriggers...),
		WithRaiseErrors(true),
	)
	if err != nil {
		return "", fmt.Errorf("looking up status of database %s: %w", name, err)
	}
	if res == nil || len(res.Records) == 0 {
		return StateNonExistent, nil
	}

	raw, ok := res.Records[0].Get("currentStatus")
	if !ok {
		return StateNonExistent, fmt.Errorf("database %s catalog row has no currentStatus", name)
	}
	if status, ok := raw.(string); ok && status == "online" {
		return StateOnline, nil
	}
	return StateOffline, nil
}

// DatabaseExists reports whether the named database exists on the server.
func (c *Client) DatabaseExists(ctx context.Context, name string) (bool, error) {
	state, err := c.DatabaseStatus(ctx, name)
	if err != nil {
		return false, err
	}
	return state != StateNonExistent, nil
}

// DatabaseOnline reports whether the named database is online.
func (c *Client) DatabaseOnline(ctx context.Context, name string) (bool, error) {
	state, err := c.DatabaseStatus(ctx, name)
	if err != nil {
		return false, err
	}
	return state == StateOnline, nil
}

// CreateDatabase creates a database if it does not already exist.
func (c *Client) CreateDatabase(ctx context.Context, name string) error {
	return c.manageDatabase(ctx, "CREATE", name, "IF NOT EXISTS")
}

// StartDatabase brings a database online.
func (c *Client) StartDatabase(ctx context.Context, name string) error {
	return c.manageDatabase(ctx, "START", name, "")
}

// StopDatabase takes a database offline.
func (c *Client) StopDatabase(ctx context.Context, name string) error {
	return c.manageDatabase(ctx, "STOP", name, "")
}

// DropDatabase deletes a database if it exists.
func (c *Client) DropDatabase(ctx context.Context, name string) error {
	return c.manageDatabase(ctx, "DROP", name, "IF EXISTS")
}

// manageDatabase issues one database management command, falling back to the
// administrative database(s) when the primary target rejects it.
func (c *Client) manageDatabase(ctx context.Context, verb, name, options string) error {
	if name == "" {
		name = c.active
	}
	if c.mode == ModeOffline {
		c.log.Info("offline mode, not issuing management command",
			"command", verb, "database", name)
		return nil
	}

	query := verb + " DATABASE " + escapeName(name)
	if options != "" {
		query += " " + options
	}

	_, err := c.Query(ctx, query, nil,
		WithFallbackOn(adminFallbackTriggers...),
		WithRaiseErrors(true),
	)
	if err != nil {
		return fmt.Errorf("%s database %s: %w", verb, name, err)
	}
	return nil
}

// EnsureDatabase makes sure the named database exists and is online,
// creating and starting it as needed. Both steps require privileges the
// connected user may not have; those failures surface as errors.
func (c *Client) EnsureDatabase(ctx context.Context, name string) error {
	if name == "" {
		name = c.active
	}
	if c.mode == ModeOffline {
		c.log.Info("offline mode, not ensuring database", "database", name)
		return nil
	}

	state, err := c.DatabaseStatus(ctx, name)
	if err != nil {
		return err
	}

	if state == StateNonExistent {
		if err := c.CreateDatabase(ctx, name); err != nil {
			return err
		}
		if state, err = c.DatabaseStatus(ctx, name); err != nil {
			return err
		}
	}

	if state != StateOnline {
		return c.StartDatabase(ctx, name)
	}
	return nil
}

// Wipe deletes all nodes and relationships in the active database, then
// drops all constraints. Data removal runs first so constraint checks never
// fire against the deletions. On servers that predate constraint-owned
// index cleanup the indexes are dropped explicitly as well.
func (c *Client) Wipe(ctx context.Context) error {
	if c.mode == ModeOffline {
		c.log.Info("offline mode, not wiping database", "database", c.active)
		return nil
	}

	c.log.Info("wiping database", "database", c.active)

	if _, err := c.Query(ctx, "MATCH (n) DETACH DELETE n", nil, WithRaiseErrors(true)); err != nil {
		return fmt.Errorf("deleting all nodes: %w", err)
	}

	if _, err := c.DropConstraints(ctx); err != nil {
		return err
	}

	version, err := c.ServerVersion(ctx)
	if err != nil {
		return err
	}
	if version.Major < 5 {
		if _, err := c.DropIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}
