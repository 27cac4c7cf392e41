package graphdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/neo4j/graphconn/internal/planfmt"
)

// QueryResult holds the fully materialized response to a query: the eagerly
// collected records and the server's result summary.
type QueryResult struct {
	Records []*neo4j.Record
	Summary neo4j.ResultSummary
}

type queryOptions struct {
	database    string
	databaseSet bool
	fetchSize   int
	read        bool
	fallback    []string
	fallbackSet bool
	triggers    []ErrorKind
	triggersSet bool
	raise       *bool
}

// QueryOption configures a single query execution.
type QueryOption func(*queryOptions)

// WithDatabase targets the query at a specific database instead of the
// configured one.
func WithDatabase(name string) QueryOption {
	return func(o *queryOptions) {
		o.database = name
		o.databaseSet = true
	}
}

// WithFetchSize overrides the configured fetch size for this query.
func WithFetchSize(n int) QueryOption {
	return func(o *queryOptions) {
		o.fetchSize = n
	}
}

// WithRead routes the query to read servers. The default is write routing.
func WithRead() QueryOption {
	return func(o *queryOptions) {
		o.read = true
	}
}

// WithWrite routes the query to write servers. This is the default.
func WithWrite() QueryOption {
	return func(o *queryOptions) {
		o.read = false
	}
}

// WithFallbackDatabases sets the ordered fallback candidates for this query,
// overriding any active fallback context and the configured default.
func WithFallbackDatabases(names ...string) QueryOption {
	return func(o *queryOptions) {
		o.fallback = names
		o.fallbackSet = true
	}
}

// WithFallbackOn sets the error kinds that trigger a fallback retry for this
// query. Calling it with no kinds disables fallback entirely.
func WithFallbackOn(kinds ...ErrorKind) QueryOption {
	return func(o *queryOptions) {
		o.triggers = kinds
		o.triggersSet = true
	}
}

// WithRaiseErrors overrides the configured error propagation policy for this
// query: true returns terminal failures as errors, false logs and swallows
// them.
func WithRaiseErrors(raise bool) QueryOption {
	return func(o *queryOptions) {
		o.raise = &raise
	}
}

// adminCommandMarkers identify queries that manage databases or create
// schema objects. Those run against the server default database rather than
// the configured one.
var adminCommandMarkers = []string{
	"CREATE DATABASE",
	"DROP DATABASE",
	"START DATABASE",
	"STOP DATABASE",
	"ALTER DATABASE",
	"SHOW DATABASE",
	"SHOW DEFAULT DATABASE",
	"SHOW HOME DATABASE",
	"CREATE INDEX",
	"CREATE CONSTRAINT",
}

func isAdminCommand(cypher string) bool {
	normalized := strings.ToUpper(strings.Join(strings.Fields(cypher), " "))
	for _, marker := range adminCommandMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

// Query executes a Cypher query with bound parameters inside a session
// scoped to this call.
//
// The target database defaults to the active one, except for database
// management and schema creation commands, which are left to the server
// default. On a driver or server failure whose kind matches the effective
// fallback trigger set, the whole operation is retried once per candidate in
// the effective fallback database list; the retry runs with an empty trigger
// set so fallback chains never cascade. Terminal failures are logged and
// recorded; authentication failures additionally force the client offline.
// Whether a terminal failure is returned as an error or swallowed into a
// (nil, nil) response is decided by the raise-errors policy.
func (c *Client) Query(ctx context.Context, cypher string, params map[string]any, opts ...QueryOption) (*QueryResult, error) {
	if c.closed {
		return nil, ErrClosed
	}

	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}

	raise := c.cfg.RaiseErrors
	if o.raise != nil {
		raise = *o.raise
	}

	if c.mode == ModeOffline {
		c.log.Info("offline mode, query not executed", "cypher", cypher)
		return nil, nil
	}

	target := o.database
	if !o.databaseSet && !isAdminCommand(cypher) {
		target = c.active
	}

	fetchSize := o.fetchSize
	if fetchSize <= 0 {
		fetchSize = c.cfg.FetchSize
	}

	if c.driver == nil {
		return c.failQuery(cypher, params, ErrNotConnected, raise)
	}

	records, summary, err := c.runSession(ctx, cypher, params, target, fetchSize, o.read)
	if err == nil {
		c.lastGood = newQueryRecord(cypher, params)
		return &QueryResult{Records: records, Summary: summary}, nil
	}

	// Effective fallback targets and trigger kinds: explicit argument,
	// then the active fallback context, then the configured defaults.
	fallback := c.cfg.FallbackDatabases
	if o.fallbackSet {
		fallback = o.fallback
	} else if c.fallback != nil {
		fallback = c.fallback
	}
	triggers := c.triggers
	if o.triggersSet {
		triggers = o.triggers
	}

	kind := Classify(err)
	if kind.In(triggers) {
		for _, candidate := range fallback {
			if candidate == target {
				continue
			}
			c.log.Warn("retrying query against fallback database",
				"database", candidate, "kind", string(kind), "error", err)

			retryOpts := []QueryOption{
				WithDatabase(candidate),
				WithFetchSize(fetchSize),
				WithFallbackOn(),      // no second-level fallback
				WithRaiseErrors(true), // distinguish failure from empty success
			}
			if o.read {
				retryOpts = append(retryOpts, WithRead())
			}
			res, retryErr := c.Query(ctx, cypher, params, retryOpts...)
			if retryErr == nil && res != nil {
				return res, nil
			}
		}
	}

	return c.failQuery(cypher, params, err, raise)
}

// runSession opens a session scoped to one execution, runs the query and
// materializes records and summary. The session is released on every path.
func (c *Client) runSession(ctx context.Context, cypher string, params map[string]any, database string, fetchSize int, read bool) ([]*neo4j.Record, neo4j.ResultSummary, error) {
	access := neo4j.AccessModeWrite
	if read {
		access = neo4j.AccessModeRead
	}

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: database,
		FetchSize:    fetchSize,
		AccessMode:   access,
	})
	defer func() {
		if cerr := session.Close(ctx); cerr != nil {
			c.log.Warn("failed to close session", "error", cerr)
		}
	}()

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, nil, err
	}

	records, err := result.Collect(ctx)
	if err != nil {
		return nil, nil, err
	}

	summary, err := result.Consume(ctx)
	if err != nil {
		return nil, nil, err
	}

	return records, summary, nil
}

// failQuery is the terminal failure path: record, log, flip offline on auth
// failure, and apply the raise policy.
func (c *Client) failQuery(cypher string, params map[string]any, err error, raise bool) (*QueryResult, error) {
	c.lastFail = newQueryRecord(cypher, params)
	c.log.Error("failed to run query", "error", err, "cypher", cypher)

	if Classify(err).Is(KindAuth) {
		c.log.Warn("authentication failed, credentials presumed invalid until reconfigured")
		c.GoOffline()
	}

	if raise {
		return nil, err
	}
	return nil, nil
}

// Explain runs the query prefixed with EXPLAIN and returns the plan tree
// together with a human-readable rendering.
func (c *Client) Explain(ctx context.Context, cypher string, params map[string]any, opts ...QueryOption) (*planfmt.Node, string, error) {
	res, err := c.Query(ctx, "EXPLAIN "+cypher, params, opts...)
	if err != nil {
		return nil, "", err
	}
	if res == nil || res.Summary == nil {
		return nil, "", fmt.Errorf("no summary available for explained query")
	}

	plan := res.Summary.Plan()
	if plan == nil {
		return nil, "", fmt.Errorf("no plan attached to query summary")
	}

	node := planfmt.FromPlan(plan)
	return node, planfmt.Render(node), nil
}

// Profile runs the query prefixed with PROFILE and returns the profiled
// plan tree together with a rendering headed by the total execution time.
func (c *Client) Profile(ctx context.Context, cypher string, params map[string]any, opts ...QueryOption) (*planfmt.Node, string, error) {
	res, err := c.Query(ctx, "PROFILE "+cypher, params, opts...)
	if err != nil {
		return nil, "", err
	}
	if res == nil || res.Summary == nil {
		return nil, "", fmt.Errorf("no summary available for profiled query")
	}

	profile := res.Summary.Profile()
	if profile == nil {
		return nil, "", fmt.Errorf("no profile attached to query summary")
	}

	elapsed := res.Summary.ResultAvailableAfter() + res.Summary.ResultConsumedAfter()
	node := planfmt.FromProfile(profile)
	header := fmt.Sprintf("Execution time: %d ms", elapsed.Milliseconds())
	return node, planfmt.Render(node, header), nil
}
