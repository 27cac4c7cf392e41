package graphdb

//go:generate mockgen -destination=mocks/mock_graphdb.go -package=mocks github.com/neo4j/graphconn/internal/graphdb Driver,Session,Result

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Driver is the narrow surface of the underlying Neo4j driver used by this
// package. One Driver corresponds to one server connection handle.
type Driver interface {
	// NewSession creates a session scoped to one query execution.
	NewSession(ctx context.Context, config neo4j.SessionConfig) Session

	// VerifyConnectivity checks the driver can reach the server.
	VerifyConnectivity(ctx context.Context) error

	// Close releases the connection handle.
	Close(ctx context.Context) error
}

// Session is a server-side session. It must be closed on every exit path of
// the query execution that opened it.
type Session interface {
	// Run executes a Cypher query with bound parameters.
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)

	// Close releases the session.
	Close(ctx context.Context) error
}

// Result is a lazily streamed query result.
type Result interface {
	// Collect materializes all remaining records eagerly.
	Collect(ctx context.Context) ([]*neo4j.Record, error)

	// Consume discards the stream and returns the result summary.
	Consume(ctx context.Context) (neo4j.ResultSummary, error)
}

// Connector opens a Driver for a connection target. Injectable so tests can
// substitute a fake without touching the network.
type Connector func(ctx context.Context, uri string, auth neo4j.AuthToken) (Driver, error)
