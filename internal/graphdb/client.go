package graphdb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/neo4j/graphconn/internal/config"
	"github.com/neo4j/graphconn/internal/logger"
)

// Mode is the operating mode of a client.
type Mode int

const (
	// ModeOnline is the normal mode: connection handles are held and
	// queries reach the server.
	ModeOnline Mode = iota

	// ModeOffline means no network call is attempted; every operation
	// becomes a no-op that logs intent. Entered on unrecoverable auth
	// failure or explicit request.
	ModeOffline
)

func (m Mode) String() string {
	if m == ModeOffline {
		return "offline"
	}
	return "online"
}

// ConnectionInfo describes an open connection. It is populated from the same
// parameters used to open it, never introspected from the driver afterwards.
type ConnectionInfo struct {
	URI      string
	Username string
	Database string
}

// QueryRecord is the retained record of a query execution. Two slots are
// kept per client: the last successful and the last failed query.
type QueryRecord struct {
	ID     uuid.UUID
	Cypher string
	Params map[string]any
	At     time.Time
}

func newQueryRecord(cypher string, params map[string]any) *QueryRecord {
	return &QueryRecord{
		ID:     uuid.New(),
		Cypher: cypher,
		Params: params,
		At:     time.Now(),
	}
}

// Client manages connections to a Neo4j server and executes queries against
// its databases. One connection handle is owned per logical database name;
// the handle for the active database serves all sessions.
//
// A Client is not safe for concurrent use; callers needing that must
// serialize access externally. Independent clients are fully isolated.
type Client struct {
	cfg     *config.Config
	log     *logger.Service
	connect Connector

	drivers map[string]Driver // registry: database name -> owned handle
	active  string            // currently active database name
	driver  Driver            // handle for the active database

	mode   Mode
	closed bool

	info     *ConnectionInfo
	version  *ServerVersion
	dialect  SchemaDialect
	fallback []string // active scoped fallback context

	triggers []ErrorKind // fallback trigger kinds resolved from config

	lastGood *QueryRecord
	lastFail *QueryRecord
}

// Option configures a Client.
type Option func(*Client)

// WithConnector substitutes the function used to open driver handles.
func WithConnector(connector Connector) Option {
	return func(c *Client) {
		c.connect = connector
	}
}

// WithOfflineMode starts the client offline: no handle is opened and every
// operation is a logged no-op until GoOnline is called.
func WithOfflineMode() Option {
	return func(c *Client) {
		c.mode = ModeOffline
	}
}

// New creates a client from a resolved configuration. No connection is
// opened until Connect.
func New(cfg *config.Config, log *logger.Service, opts ...Option) *Client {
	if cfg == nil {
		cfg = config.Load(log, "", "", nil)
	}
	if log == nil {
		log = logger.Nop()
	}

	c := &Client{
		cfg:     cfg,
		log:     log.WithComponent("graphdb"),
		connect: DefaultConnector,
		drivers: make(map[string]Driver),
		active:  cfg.Database,
	}

	kinds, rejected := ParseKinds(cfg.FallbackOn)
	for _, r := range rejected {
		c.log.Warn("ignoring unrecognized fallback error kind", "kind", r)
	}
	c.triggers = kinds

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens a connection handle for the active database and registers
// it. In offline mode it logs intent and holds no handle.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	if c.mode == ModeOffline {
		c.log.Info("offline mode, not opening a connection", "uri", c.cfg.URI)
		return nil
	}
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("cannot connect: %w", err)
	}

	c.log.Info("connecting", "uri", c.cfg.URI, "user", c.cfg.Username, "database", c.active)

	driver, err := c.connect(ctx, c.cfg.URI, neo4j.BasicAuth(c.cfg.Username, c.cfg.Password, ""))
	if err != nil {
		return fmt.Errorf("opening connection to %s: %w", c.cfg.URI, err)
	}

	c.register(c.active, driver)
	c.info = &ConnectionInfo{
		URI:      c.cfg.URI,
		Username: c.cfg.Username,
		Database: c.active,
	}

	c.log.Info("opened database connection", "database", c.active)
	return nil
}

// register stores a handle under a database name and makes it the active
// one. Reconnecting to an already-registered database closes the handle it
// replaces.
func (c *Client) register(name string, driver Driver) {
	if previous, ok := c.drivers[name]; ok && previous != driver {
		if err := previous.Close(context.Background()); err != nil {
			c.log.Warn("failed to close replaced connection", "database", name, "error", err)
		}
	}
	c.drivers[name] = driver
	c.driver = driver
}

// SelectDatabase makes name the active database. A handle already
// registered for name is reused without opening a new connection; otherwise
// a fresh connection is opened.
func (c *Client) SelectDatabase(ctx context.Context, name string) error {
	if c.closed {
		return ErrClosed
	}
	if name == c.active {
		return nil
	}

	c.active = name
	if driver, ok := c.drivers[name]; ok {
		c.log.Debug("reusing registered connection", "database", name)
		c.driver = driver
		return nil
	}
	return c.Connect(ctx)
}

// UseDatabase runs fn with the active database switched to name, restoring
// the previously active database afterwards.
func (c *Client) UseDatabase(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	previous := c.active
	if err := c.SelectDatabase(ctx, name); err != nil {
		return err
	}
	defer func() {
		if err := c.SelectDatabase(ctx, previous); err != nil {
			c.log.Warn("failed to restore active database", "database", previous, "error", err)
		}
	}()
	return fn(ctx)
}

// WithFallback runs fn with the given fallback database list active for
// every query executed inside it, restoring the previous context afterwards.
func (c *Client) WithFallback(fallback []string, fn func() error) error {
	previous := c.fallback
	c.fallback = fallback
	defer func() { c.fallback = previous }()
	return fn()
}

// VerifyConnectivity probes the active connection handle.
func (c *Client) VerifyConnectivity(ctx context.Context) error {
	if c.mode == ModeOffline {
		c.log.Info("offline mode, skipping connectivity check")
		return nil
	}
	if c.driver == nil {
		return ErrNotConnected
	}
	return c.driver.VerifyConnectivity(ctx)
}

// Mode returns the current operating mode.
func (c *Client) Mode() Mode {
	return c.mode
}

// Info returns the connection info captured at connect time, nil when no
// connection has been opened.
func (c *Client) Info() *ConnectionInfo {
	return c.info
}

// GoOffline switches the client into offline mode. Held handles are
// released on Close; no further network call is attempted.
func (c *Client) GoOffline() {
	if c.mode == ModeOffline {
		return
	}
	c.mode = ModeOffline
	c.log.Warn("switching to offline mode")
}

// GoOnline leaves offline mode. When cfg is non-nil it replaces the
// client's configuration (re-resolution is the caller's responsibility);
// the server is then re-probed through a fresh connection.
func (c *Client) GoOnline(ctx context.Context, cfg *config.Config) error {
	if c.closed {
		return ErrClosed
	}
	if cfg != nil {
		c.cfg = cfg
		if c.active == "" {
			c.active = cfg.Database
		}
		kinds, rejected := ParseKinds(cfg.FallbackOn)
		for _, r := range rejected {
			c.log.Warn("ignoring unrecognized fallback error kind", "kind", r)
		}
		c.triggers = kinds
	}

	c.mode = ModeOnline
	c.log.Info("switching to online mode", "uri", c.cfg.URI)

	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.VerifyConnectivity(ctx)
}

// Close releases every registered connection handle. Closing twice is a
// no-op.
func (c *Client) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true

	seen := make(map[Driver]bool)
	var firstErr error
	for name, driver := range c.drivers {
		if driver == nil || seen[driver] {
			continue
		}
		seen[driver] = true
		if err := driver.Close(ctx); err != nil {
			c.log.Warn("failed to close connection", "database", name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	c.drivers = nil
	c.driver = nil
	return firstErr
}
