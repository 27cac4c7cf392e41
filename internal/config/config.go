package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/neo4j/graphconn/internal/logger"
)

// Built-in defaults, used when neither explicit overrides nor a config file
// provide a value.
const (
	DefaultURI       = "neo4j://localhost:7687"
	DefaultUser      = "neo4j"
	DefaultPassword  = "neo4j"
	DefaultDatabase  = "neo4j"
	DefaultFetchSize = 1000
)

// ConfigFileNames are the recognized config file names, searched in order in
// the current directory and then in the user config directory.
var ConfigFileNames = []string{"neo4j.yaml", "neo4j.yml"}

// DefaultFallbackDatabases is the fallback target list applied when the
// config provides none. Management commands typically must run against the
// system database.
var DefaultFallbackDatabases = []string{"system"}

// DefaultFallbackOn is the default set of error kinds that trigger a
// fallback retry.
var DefaultFallbackOn = []string{"transient", "unavailable"}

// Config is the effective connection configuration.
type Config struct {
	URI               string
	Username          string
	Password          string
	Database          string
	FetchSize         int
	RaiseErrors       bool
	FallbackDatabases []string
	FallbackOn        []string
}

// Overrides holds explicit configuration values. A zero value means "not
// set"; RaiseErrors is a pointer so that an explicit false can be told apart
// from unset.
type Overrides struct {
	URI               string
	Username          string
	Password          string
	Database          string
	FetchSize         int
	RaiseErrors       *bool
	FallbackDatabases []string
	FallbackOn        []string
}

// configKeySynonyms maps alternative config file keys to canonical ones.
var configKeySynonyms = map[string]string{
	"password": "passwd",
	"pw":       "passwd",
	"username": "user",
	"login":    "user",
	"host":     "uri",
	"address":  "uri",
	"server":   "uri",
	"graph":    "db",
	"database": "db",
	"name":     "db",
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("configuration is required but was nil")
	}
	if c.URI == "" {
		return fmt.Errorf("Neo4j URI is required but was empty")
	}
	if c.Username == "" {
		return fmt.Errorf("Neo4j username is required but was empty")
	}
	if c.Password == "" {
		return fmt.Errorf("Neo4j password is required but was empty")
	}
	return nil
}

// Load produces the effective configuration. Resolution order per field:
// explicit override, then the first matching key found in a recognized
// config file, then the built-in default. An already-populated field is
// never overwritten while merging lower-priority sources.
//
// path points at an explicit config file; when empty, ConfigFileNames are
// searched in the current directory and then in the user config directory.
// section selects a top-level section of the file keyed by target name; when
// the section is absent the whole document is used.
//
// A configuration that yields no essential connection values is not an
// error: a warning is logged and the later connection attempt fails
// explicitly instead.
func Load(log *logger.Service, path, section string, ov *Overrides) *Config {
	if log == nil {
		log = logger.Nop()
	}

	vals := map[string]any{}
	put := func(key string, v any) {
		if _, ok := vals[key]; ok {
			return
		}
		if isEmptyValue(v) {
			return
		}
		vals[key] = v
	}

	// Explicit overrides win over everything.
	if ov != nil {
		put("uri", ov.URI)
		put("user", ov.Username)
		put("passwd", ov.Password)
		put("db", ov.Database)
		put("fetch_size", ov.FetchSize)
		if ov.RaiseErrors != nil {
			put("raise_errors", *ov.RaiseErrors)
		}
		put("fallback_db", ov.FallbackDatabases)
		put("fallback_on", ov.FallbackOn)
	}

	if file := findConfigFile(path); file != "" {
		log.Info("reading config file", "path", file)
		if doc, err := readConfigFile(file, section); err != nil {
			log.Warn("failed to read config file", "path", file, "error", err)
		} else {
			for k, v := range doc {
				k = strings.ToLower(k)
				if canonical, ok := configKeySynonyms[k]; ok {
					k = canonical
				}
				put(k, v)
			}
		}
	}

	cfg := &Config{
		URI:               asString(vals["uri"]),
		Username:          asString(vals["user"]),
		Password:          asString(vals["passwd"]),
		Database:          asString(vals["db"]),
		FetchSize:         asInt(vals["fetch_size"]),
		RaiseErrors:       asBool(vals["raise_errors"]),
		FallbackDatabases: asStringList(vals["fallback_db"]),
		FallbackOn:        asStringList(vals["fallback_on"]),
	}

	if cfg.URI == "" || cfg.Username == "" || cfg.Password == "" {
		log.Warn("no complete connection config available, falling back to defaults")
	}

	// Built-in defaults for whatever is still unset.
	if cfg.URI == "" {
		cfg.URI = DefaultURI
	}
	if cfg.Username == "" {
		cfg.Username = DefaultUser
	}
	if cfg.Password == "" {
		cfg.Password = DefaultPassword
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.FetchSize <= 0 {
		cfg.FetchSize = DefaultFetchSize
	}
	if cfg.FallbackDatabases == nil {
		cfg.FallbackDatabases = append([]string(nil), DefaultFallbackDatabases...)
	}
	if cfg.FallbackOn == nil {
		cfg.FallbackOn = append([]string(nil), DefaultFallbackOn...)
	}

	return cfg
}

// GetEnvWithDefault returns the environment value for key, or def when the
// variable is unset or empty.
func GetEnvWithDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// findConfigFile resolves the config file to read: the explicit path when it
// exists, otherwise the first recognized file name found in the current
// directory and then in the user config directory.
func findConfigFile(path string) string {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		return ""
	}

	dirs := []string{"."}
	if userDir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(userDir, "neo4j"))
	}

	for _, dir := range dirs {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}

func readConfigFile(path, section string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if section != "" {
		if sub, ok := doc[section].(map[string]any); ok {
			return sub, nil
		}
	}
	return doc, nil
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case int:
		return t == 0
	case []string:
		return len(t) == 0
	default:
		return false
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return 0
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}
	}
	return false
}

// asStringList accepts a scalar or a sequence; a scalar becomes a
// single-element list.
func asStringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, asString(item))
		}
		return out
	default:
		return []string{asString(t)}
	}
}
