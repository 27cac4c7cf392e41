package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/neo4j/graphconn/internal/config"
	"github.com/neo4j/graphconn/internal/graphdb"
	"github.com/neo4j/graphconn/internal/logger"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "graphconn",
	Short: "Connection management and query execution for Neo4j",
	Long: `graphconn manages connections to a Neo4j server and executes Cypher
queries with automatic database fallback, version-gated schema management
and database lifecycle commands.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("uri", "", "Neo4j connection URI (overrides config file)")
	pf.String("username", "", "Neo4j user name")
	pf.String("password", "", "Neo4j password")
	pf.String("database", "", "target database name")
	pf.String("config", "", "path to a YAML config file")
	pf.String("section", "", "config file section to use")
	pf.Bool("raise-errors", false, "return query failures as errors instead of logging them")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(ensureCmd)
	rootCmd.AddCommand(wipeCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(statsCmd)

	queryCmd.Flags().String("params", "", "query parameters as a JSON object")
	queryCmd.Flags().Bool("read", false, "route to read servers")
	explainCmd.Flags().String("params", "", "query parameters as a JSON object")
	profileCmd.Flags().String("params", "", "query parameters as a JSON object")
	wipeCmd.Flags().Bool("force", false, "confirm deleting all data and schema objects")
}

// newClient builds a connected client from flags and config sources.
func newClient(cmd *cobra.Command) (*graphdb.Client, error) {
	flags := cmd.Flags()
	level, _ := flags.GetString("log-level")
	format, _ := flags.GetString("log-format")
	log := logger.New(level, format, os.Stderr)

	uri, _ := flags.GetString("uri")
	username, _ := flags.GetString("username")
	password, _ := flags.GetString("password")
	database, _ := flags.GetString("database")
	configPath, _ := flags.GetString("config")
	section, _ := flags.GetString("section")

	overrides := &config.Overrides{
		URI:      uri,
		Username: username,
		Password: password,
		Database: database,
	}
	if flags.Changed("raise-errors") {
		raise, _ := flags.GetBool("raise-errors")
		overrides.RaiseErrors = &raise
	}

	cfg := config.Load(log, configPath, section, overrides)

	client := graphdb.New(cfg, log)
	if err := client.Connect(cmd.Context()); err != nil {
		return nil, err
	}
	return client, nil
}

func closeClient(ctx context.Context, client *graphdb.Client) {
	if err := client.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close connection: %v\n", err)
	}
}

func queryParams(cmd *cobra.Command) (map[string]any, error) {
	raw, _ := cmd.Flags().GetString("params")
	if raw == "" {
		return nil, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("invalid --params JSON: %w", err)
	}
	return params, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the graphconn version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("graphconn version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [database]",
	Short: "Show the lifecycle status of a database",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer closeClient(cmd.Context(), client)

		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		state, err := client.DatabaseStatus(cmd.Context(), name)
		if err != nil {
			return err
		}
		fmt.Println(state)
		return nil
	},
}

var ensureCmd = &cobra.Command{
	Use:   "ensure <database>",
	Short: "Create and start a database as needed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer closeClient(cmd.Context(), client)

		return client.EnsureDatabase(cmd.Context(), args[0])
	},
}

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete all data and drop all constraints in the target database",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			return fmt.Errorf("wipe deletes all data; re-run with --force to confirm")
		}

		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer closeClient(cmd.Context(), client)

		return client.Wipe(cmd.Context())
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <cypher>",
	Short: "Run a Cypher query and print the result rows as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := queryParams(cmd)
		if err != nil {
			return err
		}

		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer closeClient(cmd.Context(), client)

		opts := []graphdb.QueryOption{}
		if read, _ := cmd.Flags().GetBool("read"); read {
			opts = append(opts, graphdb.WithRead())
		}

		res, err := client.Query(cmd.Context(), args[0], params, opts...)
		if err != nil {
			return err
		}
		if res == nil {
			return nil
		}

		rows := make([]map[string]any, 0, len(res.Records))
		for _, record := range res.Records {
			rows = append(rows, record.AsMap())
		}
		out, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("formatting result rows: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain <cypher>",
	Short: "Print the execution plan of a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := queryParams(cmd)
		if err != nil {
			return err
		}

		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer closeClient(cmd.Context(), client)

		_, rendered, err := client.Explain(cmd.Context(), args[0], params)
		if err != nil {
			return err
		}
		fmt.Print(rendered)
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile <cypher>",
	Short: "Run a query and print its profiled execution plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := queryParams(cmd)
		if err != nil {
			return err
		}

		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer closeClient(cmd.Context(), client)

		_, rendered, err := client.Profile(cmd.Context(), args[0], params)
		if err != nil {
			return err
		}
		fmt.Print(rendered)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print node and relationship counts and the database catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer closeClient(cmd.Context(), client)

		ctx := cmd.Context()
		nodes, err := client.NodeCount(ctx)
		if err != nil {
			return err
		}
		relationships, err := client.RelationshipCount(ctx)
		if err != nil {
			return err
		}
		labels, err := client.Labels(ctx)
		if err != nil {
			return err
		}
		types, err := client.RelationshipTypes(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("nodes: %d\nrelationships: %d\nlabels: %v\nrelationship types: %v\n",
			nodes, relationships, labels, types)
		return nil
	},
}
