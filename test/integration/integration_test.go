//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neo4j/graphconn/internal/graphdb"
	"github.com/neo4j/graphconn/internal/logger"
	"github.com/neo4j/graphconn/test/integration/containerrunner"
)

// newClient connects a fresh client to the shared container.
func newClient(t *testing.T) *graphdb.Client {
	t.Helper()

	client := graphdb.New(containerrunner.Connection(), logger.Nop())
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return client
}

// resetData clears the default database between tests.
func resetData(t *testing.T, client *graphdb.Client) {
	t.Helper()
	require.NoError(t, client.Wipe(context.Background()))
}

func TestConnectAndVerify(t *testing.T) {
	client := newClient(t)

	require.NoError(t, client.VerifyConnectivity(context.Background()))

	info := client.Info()
	require.NotNil(t, info)
	assert.Equal(t, "neo4j", info.Database)
}

func TestQueryRoundTrip(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()
	resetData(t, client)

	_, err := client.Query(ctx,
		"CREATE (a:Person {name: $name})-[:KNOWS]->(b:Person {name: 'Bob'})",
		map[string]any{"name": "Alice"},
		graphdb.WithRaiseErrors(true))
	require.NoError(t, err)

	res, err := client.Query(ctx,
		"MATCH (p:Person) RETURN p.name AS name ORDER BY name",
		nil, graphdb.WithRead(), graphdb.WithRaiseErrors(true))
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Records, 2)

	name, ok := res.Records[0].Get("name")
	require.True(t, ok)
	assert.Equal(t, "Alice", name)

	last := client.LastQuery()
	require.NotNil(t, last)
	assert.Contains(t, last.Cypher, "MATCH (p:Person)")
}

func TestQueryFailureIsSwallowedByDefault(t *testing.T) {
	client := newClient(t)

	res, err := client.Query(context.Background(), "THIS IS NOT CYPHER", nil)

	assert.NoError(t, err)
	assert.Nil(t, res)
	require.NotNil(t, client.LastError())
	assert.Equal(t, graphdb.ModeOnline, client.Mode(), "a syntax error does not force the client offline")
}

func TestServerVersionDetection(t *testing.T) {
	client := newClient(t)

	version, err := client.ServerVersion(context.Background())

	require.NoError(t, err)
	assert.GreaterOrEqual(t, version.Major, 4)
	assert.NotEmpty(t, version.Edition)
}

func TestSchemaLifecycle(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()
	resetData(t, client)

	require.NoError(t, client.CreateIndex(ctx, "idx_person_name", "Person", "name"))
	require.NoError(t, client.CreateConstraint(ctx, "uq_person_id", "Person", "id"))

	indexes, err := client.ListIndexes(ctx)
	require.NoError(t, err)
	assert.True(t, containsObject(indexes, "idx_person_name"))

	constraints, err := client.ListConstraints(ctx)
	require.NoError(t, err)
	assert.True(t, containsObject(constraints, "uq_person_id"))

	dropped, err := client.DropConstraints(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, dropped, 1)

	dropped, err = client.DropIndexes(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, dropped, 1)

	// A second pass finds nothing left to drop.
	dropped, err = client.DropConstraints(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, dropped)
}

func containsObject(objects []graphdb.SchemaObject, name string) bool {
	for _, obj := range objects {
		if obj.Name == name {
			return true
		}
	}
	return false
}

func TestDatabaseStatus(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	state, err := client.DatabaseStatus(ctx, "neo4j")
	require.NoError(t, err)
	assert.Equal(t, graphdb.StateOnline, state)

	state, err = client.DatabaseStatus(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, graphdb.StateNonExistent, state)
}

func TestWipe(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	_, err := client.Query(ctx, "CREATE (:Person {name: 'Alice'})", nil,
		graphdb.WithRaiseErrors(true))
	require.NoError(t, err)
	require.NoError(t, client.CreateConstraint(ctx, "uq_wipe", "Person", "id"))

	require.NoError(t, client.Wipe(ctx))

	count, err := client.NodeCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	constraints, err := client.ListConstraints(ctx)
	require.NoError(t, err)
	assert.Empty(t, constraints)
}

func TestCounts(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()
	resetData(t, client)

	_, err := client.Query(ctx,
		"CREATE (:Person {name: 'Alice'})-[:KNOWS]->(:Person {name: 'Bob'})",
		nil, graphdb.WithRaiseErrors(true))
	require.NoError(t, err)

	nodes, err := client.NodeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), nodes)

	relationships, err := client.RelationshipCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), relationships)

	labels, err := client.Labels(ctx)
	require.NoError(t, err)
	assert.Contains(t, labels, "Person")

	types, err := client.RelationshipTypes(ctx)
	require.NoError(t, err)
	assert.Contains(t, types, "KNOWS")
}

func TestExplainAndProfile(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	node, rendered, err := client.Explain(ctx, "MATCH (n) RETURN n", nil,
		graphdb.WithRaiseErrors(true))
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.NotEmpty(t, node.Operator)
	assert.Contains(t, rendered, "Step: ")

	node, rendered, err = client.Profile(ctx, "MATCH (n) RETURN n", nil,
		graphdb.WithRaiseErrors(true))
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Contains(t, rendered, "Execution time:")
	assert.Contains(t, rendered, "DbHits")
}
