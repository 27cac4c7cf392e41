package graphdb

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// DefaultConnector opens a real driver connection.
func DefaultConnector(_ context.Context, uri string, auth neo4j.AuthToken) (Driver, error) {
	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, err
	}
	return &neo4jDriverAdapter{driver: driver}, nil
}

// neo4jDriverAdapter wraps neo4j.DriverWithContext to implement our Driver
// interface.
type neo4jDriverAdapter struct {
	driver neo4j.DriverWithContext
}

func (a *neo4jDriverAdapter) NewSession(ctx context.Context, config neo4j.SessionConfig) Session {
	return &neo4jSessionAdapter{session: a.driver.NewSession(ctx, config)}
}

func (a *neo4jDriverAdapter) VerifyConnectivity(ctx context.Context) error {
	return a.driver.VerifyConnectivity(ctx)
}

func (a *neo4jDriverAdapter) Close(ctx context.Context) error {
	return a.driver.Close(ctx)
}

// neo4jSessionAdapter wraps neo4j.SessionWithContext to implement our
// Session interface.
type neo4jSessionAdapter struct {
	session neo4j.SessionWithContext
}

func (a *neo4jSessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	result, err := a.session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (a *neo4jSessionAdapter) Close(ctx context.Context) error {
	return a.session.Close(ctx)
}
