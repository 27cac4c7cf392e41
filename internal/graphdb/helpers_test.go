package graphdb_test

import (
	"context"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/neo4j/graphconn/internal/config"
	"github.com/neo4j/graphconn/internal/graphdb"
	"github.com/neo4j/graphconn/internal/graphdb/mocks"
	"github.com/neo4j/graphconn/internal/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		URI:               "neo4j://localhost:7687",
		Username:          "neo4j",
		Password:          "letmein",
		Database:          "neo4j",
		FetchSize:         1000,
		FallbackDatabases: []string{"system"},
		FallbackOn:        []string{"transient", "unavailable"},
	}
}

// queryStep scripts one session: the query it should receive and the outcome
// it produces.
type queryStep struct {
	wantCypher string            // substring the query must contain, empty to skip
	wantAccess *neo4j.AccessMode // session access mode, nil to skip
	records    []*neo4j.Record
	err        error
}

// scriptDriver builds a mock driver that serves the given steps in order,
// one session per step. Every session must be closed. The returned slice
// collects the database each session was opened against.
func scriptDriver(t *testing.T, ctrl *gomock.Controller, steps []queryStep) (*mocks.MockDriver, *[]string) {
	t.Helper()

	driver := mocks.NewMockDriver(ctrl)
	driver.EXPECT().Close(gomock.Any()).Return(nil).AnyTimes()

	databases := &[]string{}
	next := 0
	driver.EXPECT().NewSession(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, sc neo4j.SessionConfig) graphdb.Session {
			require.Less(t, next, len(steps), "more sessions opened than scripted")
			step := steps[next]
			next++
			*databases = append(*databases, sc.DatabaseName)
			if step.wantAccess != nil {
				require.Equal(t, *step.wantAccess, sc.AccessMode)
			}

			session := mocks.NewMockSession(ctrl)
			session.EXPECT().Close(gomock.Any()).Return(nil)
			session.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, cypher string, _ map[string]any) (graphdb.Result, error) {
					if step.wantCypher != "" {
						require.Contains(t, cypher, step.wantCypher)
					}
					if step.err != nil {
						return nil, step.err
					}
					result := mocks.NewMockResult(ctrl)
					result.EXPECT().Collect(gomock.Any()).Return(step.records, nil)
					result.EXPECT().Consume(gomock.Any()).Return(nil, nil)
					return result, nil
				})
			return session
		}).Times(len(steps))

	return driver, databases
}

// newTestClient connects a client backed by the given driver.
func newTestClient(t *testing.T, cfg *config.Config, driver graphdb.Driver, opts ...graphdb.Option) *graphdb.Client {
	t.Helper()

	opts = append([]graphdb.Option{
		graphdb.WithConnector(func(context.Context, string, neo4j.AuthToken) (graphdb.Driver, error) {
			return driver, nil
		}),
	}, opts...)

	client := graphdb.New(cfg, logger.Nop(), opts...)
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return client
}

func record(keys []string, values ...any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

func transientError() error {
	return &neo4j.Neo4jError{Code: "Neo.TransientError.General.MemoryPoolOutOfMemoryError", Msg: "try again"}
}

func clientError() error {
	return &neo4j.Neo4jError{Code: "Neo.ClientError.Statement.SyntaxError", Msg: "bad cypher"}
}

func authError() error {
	return &neo4j.Neo4jError{Code: "Neo.ClientError.Security.Unauthorized", Msg: "invalid credentials"}
}
