//go:build integration

package containerrunner

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/neo4j/graphconn/internal/config"
)

var (
	container testcontainers.Container
	conn      *config.Config
	once      sync.Once
)

// Start initializes the shared Neo4j container for integration tests.
func Start(ctx context.Context) {
	once.Do(func() {
		startOnce(ctx)
	})
}

// Connection returns the resolved connection configuration for the running
// container.
func Connection() *config.Config {
	if conn == nil {
		log.Fatal("container is not initialized")
	}
	clone := *conn
	return &clone
}

func startOnce(ctx context.Context) {
	ctr, boltURI, err := createNeo4jContainer(ctx)
	if err != nil {
		log.Fatalf("failed to start shared neo4j container: %v", err)
	}
	container = ctr

	conn = &config.Config{
		URI:               boltURI,
		Username:          config.GetEnvWithDefault("NEO4J_USERNAME", "neo4j"),
		Password:          config.GetEnvWithDefault("NEO4J_PASSWORD", "password"),
		Database:          config.GetEnvWithDefault("NEO4J_DATABASE", "neo4j"),
		FetchSize:         config.DefaultFetchSize,
		FallbackDatabases: config.DefaultFallbackDatabases,
		FallbackOn:        config.DefaultFallbackOn,
	}

	if err := waitForConnectivity(ctx, ctr); err != nil {
		Close(ctx)
		log.Fatalf("failed to verify connectivity: %v", err)
	}
}

// Close cleans up the shared container.
func Close(ctx context.Context) {
	if container == nil {
		return
	}
	if err := container.Terminate(ctx); err != nil {
		log.Printf("Warning: failed to terminate container: %v", err)
	}
}

// createNeo4jContainer starts a Neo4j container for testing.
func createNeo4jContainer(ctx context.Context) (testcontainers.Container, string, error) {
	req := testcontainers.ContainerRequest{
		Image:        config.GetEnvWithDefault("NEO4J_IMAGE", "neo4j:5.24.2-community"),
		ExposedPorts: []string{"7687/tcp"},
		Env: map[string]string{
			"NEO4J_AUTH": fmt.Sprintf("%s/%s",
				config.GetEnvWithDefault("NEO4J_USERNAME", "neo4j"),
				config.GetEnvWithDefault("NEO4J_PASSWORD", "password")),
		},
		WaitingFor: wait.ForListeningPort("7687/tcp").WithStartupTimeout(119 * time.Second),
	}

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", err
	}

	host, err := ctr.Host(ctx)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, "", err
	}

	port, err := ctr.MappedPort(ctx, "7687/tcp")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, "", err
	}

	boltURI := fmt.Sprintf("bolt://%s:%s", host, port.Port())

	return ctr, boltURI, nil
}

// waitForConnectivity waits for Neo4j connectivity with exponential backoff.
func waitForConnectivity(ctx context.Context, ctr testcontainers.Container) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	driver, err := neo4j.NewDriverWithContext(conn.URI, neo4j.BasicAuth(conn.Username, conn.Password, ""))
	if err != nil {
		return err
	}
	defer func() { _ = driver.Close(context.Background()) }()

	backoff := 100 * time.Millisecond
	maxBackoff := 2 * time.Second

	var lastErr error
	for {
		err := driver.VerifyConnectivity(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}

		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	var logs string
	if ctr != nil {
		rc, err := ctr.Logs(context.Background())
		if err == nil && rc != nil {
			b, rerr := io.ReadAll(rc)
			_ = rc.Close()
			if rerr == nil {
				logs = string(b)
			}
		}
	}

	if logs != "" {
		return fmt.Errorf("neo4j connectivity not ready: %v\ncontainer logs:\n%s", lastErr, logs)
	}
	return fmt.Errorf("neo4j connectivity not ready: %v", lastErr)
}
