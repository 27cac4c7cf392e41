package graphdb_test

import (
	"context"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/neo4j/graphconn/internal/graphdb"
	"github.com/neo4j/graphconn/internal/logger"
)

func TestQuery_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	driver, databases := scriptDriver(t, ctrl, []queryStep{
		{wantCypher: "RETURN 1", records: []*neo4j.Record{record([]string{"n"}, int64(1))}},
	})
	client := newTestClient(t, testConfig(), driver)

	res, err := client.Query(context.Background(), "RETURN 1 AS n", nil)

	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Records, 1)
	assert.Equal(t, []string{"neo4j"}, *databases)

	last := client.LastQuery()
	require.NotNil(t, last)
	assert.Equal(t, "RETURN 1 AS n", last.Cypher)
	assert.Nil(t, client.LastError())
}

func TestQuery_OfflineIsNoop(t *testing.T) {
	connector := func(context.Context, string, neo4j.AuthToken) (graphdb.Driver, error) {
		t.Fatal("connector must not be called in offline mode")
		return nil, nil
	}
	client := graphdb.New(testConfig(), logger.Nop(),
		graphdb.WithConnector(connector), graphdb.WithOfflineMode())
	require.NoError(t, client.Connect(context.Background()))

	// Swallowed even when the caller asked for errors to be raised.
	res, err := client.Query(context.Background(), "RETURN 1", nil, graphdb.WithRaiseErrors(true))

	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestQuery_ClosedClient(t *testing.T) {
	ctrl := gomock.NewController(t)
	driver, _ := scriptDriver(t, ctrl, nil)
	client := newTestClient(t, testConfig(), driver)
	require.NoError(t, client.Close(context.Background()))

	_, err := client.Query(context.Background(), "RETURN 1", nil)

	assert.ErrorIs(t, err, graphdb.ErrClosed)
}

func TestQuery_DatabaseTargeting(t *testing.T) {
	tests := []struct {
		name   string
		cypher string
		opts   []graphdb.QueryOption
		want   string
	}{
		{
			name:   "defaults to the active database",
			cypher: "MATCH (n) RETURN n",
			want:   "neo4j",
		},
		{
			name:   "explicit database wins",
			cypher: "MATCH (n) RETURN n",
			opts:   []graphdb.QueryOption{graphdb.WithDatabase("movies")},
			want:   "movies",
		},
		{
			name:   "management command targets the server default",
			cypher: "CREATE DATABASE movies IF NOT EXISTS",
			want:   "",
		},
		{
			name:   "schema command targets the server default",
			cypher: "CREATE INDEX `i` IF NOT EXISTS FOR (n:`L`) ON (n.p)",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			driver, databases := scriptDriver(t, ctrl, []queryStep{{}})
			client := newTestClient(t, testConfig(), driver)

			_, err := client.Query(context.Background(), tt.cypher, nil, tt.opts...)

			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, *databases)
		})
	}
}

func TestQuery_ReadRouting(t *testing.T) {
	for _, tt := range []struct {
		name string
		opts []graphdb.QueryOption
		want neo4j.AccessMode
	}{
		{"write is the default", nil, neo4j.AccessModeWrite},
		{"read option routes to readers", []graphdb.QueryOption{graphdb.WithRead()}, neo4j.AccessModeRead},
	} {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			want := tt.want
			driver, _ := scriptDriver(t, ctrl, []queryStep{{wantAccess: &want}})
			client := newTestClient(t, testConfig(), driver)

			_, err := client.Query(context.Background(), "RETURN 1", nil, tt.opts...)

			require.NoError(t, err)
		})
	}
}

func TestQuery_FallbackRetriesCandidatesInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	cfg := testConfig()
	cfg.FallbackDatabases = []string{"alpha", "beta"}

	driver, databases := scriptDriver(t, ctrl, []queryStep{
		{err: transientError()},
		{err: transientError()},
		{records: []*neo4j.Record{record([]string{"n"}, int64(1))}},
	})
	client := newTestClient(t, cfg, driver)

	res, err := client.Query(context.Background(), "RETURN 1 AS n", nil)

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []string{"neo4j", "alpha", "beta"}, *databases)
}

func TestQuery_FallbackExhaustedReturnsOriginalError(t *testing.T) {
	ctrl := gomock.NewController(t)
	cfg := testConfig()
	cfg.FallbackDatabases = []string{"alpha"}

	primaryErr := transientError()
	driver, databases := scriptDriver(t, ctrl, []queryStep{
		{err: primaryErr},
		{err: transientError()},
	})
	client := newTestClient(t, cfg, driver)

	res, err := client.Query(context.Background(), "RETURN 1", nil, graphdb.WithRaiseErrors(true))

	assert.Nil(t, res)
	assert.Equal(t, primaryErr, err)
	assert.Equal(t, []string{"neo4j", "alpha"}, *databases)
	assert.NotNil(t, client.LastError())
}

func TestQuery_FallbackNeverCascades(t *testing.T) {
	// A triggering failure on a fallback candidate must not start a second
	// round of fallback from inside the retry.
	ctrl := gomock.NewController(t)
	cfg := testConfig()
	cfg.FallbackDatabases = []string{"alpha", "beta"}

	driver, databases := scriptDriver(t, ctrl, []queryStep{
		{err: transientError()},
		{err: transientError()},
		{err: transientError()},
	})
	client := newTestClient(t, cfg, driver)

	_, err := client.Query(context.Background(), "RETURN 1", nil, graphdb.WithRaiseErrors(true))

	assert.Error(t, err)
	assert.Equal(t, []string{"neo4j", "alpha", "beta"}, *databases)
}

func TestQuery_FallbackSkipsActiveTarget(t *testing.T) {
	ctrl := gomock.NewController(t)
	cfg := testConfig()
	cfg.FallbackDatabases = []string{"neo4j"} // same as the target

	driver, databases := scriptDriver(t, ctrl, []queryStep{
		{err: transientError()},
	})
	client := newTestClient(t, cfg, driver)

	_, err := client.Query(context.Background(), "RETURN 1", nil, graphdb.WithRaiseErrors(true))

	assert.Error(t, err)
	assert.Equal(t, []string{"neo4j"}, *databases)
}

func TestQuery_NoFallbackForNonTriggeringErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	driver, databases := scriptDriver(t, ctrl, []queryStep{
		{err: clientError()},
	})
	client := newTestClient(t, testConfig(), driver)

	_, err := client.Query(context.Background(), "RETURN 1", nil, graphdb.WithRaiseErrors(true))

	assert.Error(t, err)
	assert.Equal(t, []string{"neo4j"}, *databases)
}

func TestQuery_FallbackDisabledPerCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	driver, databases := scriptDriver(t, ctrl, []queryStep{
		{err: transientError()},
	})
	client := newTestClient(t, testConfig(), driver)

	_, err := client.Query(context.Background(), "RETURN 1", nil,
		graphdb.WithFallbackOn(), graphdb.WithRaiseErrors(true))

	assert.Error(t, err)
	assert.Equal(t, []string{"neo4j"}, *databases)
}

func TestQuery_FallbackDatabasesPerCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	driver, databases := scriptDriver(t, ctrl, []queryStep{
		{err: transientError()},
		{records: nil},
	})
	client := newTestClient(t, testConfig(), driver)

	res, err := client.Query(context.Background(), "RETURN 1", nil,
		graphdb.WithFallbackDatabases("scratch"))

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []string{"neo4j", "scratch"}, *databases)
}

func TestQuery_AuthFailureForcesOffline(t *testing.T) {
	ctrl := gomock.NewController(t)
	driver, _ := scriptDriver(t, ctrl, []queryStep{
		{err: authError()},
	})
	client := newTestClient(t, testConfig(), driver)

	res, err := client.Query(context.Background(), "RETURN 1", nil)

	// Swallowed under the default policy, but the client goes offline.
	assert.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, graphdb.ModeOffline, client.Mode())

	// No further session is opened; the script would fail on a second one.
	res, err = client.Query(context.Background(), "RETURN 1", nil)
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestQuery_RaisePolicy(t *testing.T) {
	t.Run("swallowed by default", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		driver, _ := scriptDriver(t, ctrl, []queryStep{{err: clientError()}})
		client := newTestClient(t, testConfig(), driver)

		res, err := client.Query(context.Background(), "RETURN 1", nil)

		assert.NoError(t, err)
		assert.Nil(t, res)
		assert.NotNil(t, client.LastError())
	})

	t.Run("raised when configured", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		cfg := testConfig()
		cfg.RaiseErrors = true
		driver, _ := scriptDriver(t, ctrl, []queryStep{{err: clientError()}})
		client := newTestClient(t, cfg, driver)

		_, err := client.Query(context.Background(), "RETURN 1", nil)

		assert.Error(t, err)
	})

	t.Run("per-call override beats config", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		cfg := testConfig()
		cfg.RaiseErrors = true
		driver, _ := scriptDriver(t, ctrl, []queryStep{{err: clientError()}})
		client := newTestClient(t, cfg, driver)

		res, err := client.Query(context.Background(), "RETURN 1", nil,
			graphdb.WithRaiseErrors(false))

		assert.NoError(t, err)
		assert.Nil(t, res)
	})
}

func TestQuery_EmptyResultIsNotAFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	driver, _ := scriptDriver(t, ctrl, []queryStep{{records: nil}})
	client := newTestClient(t, testConfig(), driver)

	res, err := client.Query(context.Background(), "MATCH (n:Nothing) RETURN n", nil)

	require.NoError(t, err)
	require.NotNil(t, res, "a successful query with no rows still yields a result")
	assert.Empty(t, res.Records)
}
