package graphdb

import (
	"errors"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Sentinel errors returned by the client.
var (
	// ErrOffline is returned by strict callers when the client is in
	// offline mode.
	ErrOffline = errors.New("graphdb: client is offline")

	// ErrClosed is returned when operating on a closed client.
	ErrClosed = errors.New("graphdb: client is closed")

	// ErrNotConnected is returned when no connection handle is held.
	ErrNotConnected = errors.New("graphdb: not connected")
)

// ErrorKind is a closed classification of driver and server failures.
// Fallback-trigger matching is a set-membership test over kinds and their
// declared families, not runtime type inspection.
type ErrorKind string

const (
	// KindUnknown covers everything the classifier does not recognize.
	KindUnknown ErrorKind = "unknown"

	// KindConnection is the family of failures establishing or keeping a
	// connection.
	KindConnection ErrorKind = "connection"

	// KindAuth is an authentication failure. Is-a KindConnection.
	// Credentials are presumed permanently invalid until reconfigured, so
	// this kind forces the client offline.
	KindAuth ErrorKind = "auth"

	// KindUnavailable means the server or database cannot be reached or is
	// not accepting work. Is-a KindConnection.
	KindUnavailable ErrorKind = "unavailable"

	// KindServer is the family of server-side execution failures.
	KindServer ErrorKind = "server"

	// KindTransient is a temporary server condition, e.g. a leader
	// election. Is-a KindServer. The canonical fallback trigger.
	KindTransient ErrorKind = "transient"

	// KindClient is the family of request errors: malformed queries,
	// constraint violations, statements issued against the wrong database.
	KindClient ErrorKind = "client"

	// KindDatabaseNotFound means the target database does not exist.
	// Is-a KindClient.
	KindDatabaseNotFound ErrorKind = "database_not_found"
)

// errorKindParents declares the is-a relationships between kinds.
var errorKindParents = map[ErrorKind]ErrorKind{
	KindAuth:             KindConnection,
	KindUnavailable:      KindConnection,
	KindTransient:        KindServer,
	KindDatabaseNotFound: KindClient,
}

// Is reports whether k is other or a descendant of other.
func (k ErrorKind) Is(other ErrorKind) bool {
	for cur := k; cur != ""; cur = errorKindParents[cur] {
		if cur == other {
			return true
		}
	}
	return false
}

// In reports whether k, or any of its ancestor families, is a member of set.
func (k ErrorKind) In(set []ErrorKind) bool {
	for _, candidate := range set {
		if k.Is(candidate) {
			return true
		}
	}
	return false
}

// ParseKind converts a config string into an ErrorKind.
func ParseKind(s string) (ErrorKind, bool) {
	switch ErrorKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindConnection:
		return KindConnection, true
	case KindAuth:
		return KindAuth, true
	case KindUnavailable:
		return KindUnavailable, true
	case KindServer:
		return KindServer, true
	case KindTransient:
		return KindTransient, true
	case KindClient:
		return KindClient, true
	case KindDatabaseNotFound:
		return KindDatabaseNotFound, true
	case KindUnknown:
		return KindUnknown, true
	}
	return KindUnknown, false
}

// ParseKinds converts config strings into kinds, dropping unknown entries.
func ParseKinds(values []string) ([]ErrorKind, []string) {
	kinds := make([]ErrorKind, 0, len(values))
	var rejected []string
	for _, v := range values {
		kind, ok := ParseKind(v)
		if !ok {
			rejected = append(rejected, v)
			continue
		}
		kinds = append(kinds, kind)
	}
	return kinds, rejected
}

// Classify maps a driver error onto the closed kind taxonomy. Server errors
// carry a Neo4j status code ("Neo.<Classification>.<Category>.<Title>");
// connectivity failures are reported by the driver without a code.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var serverErr *neo4j.Neo4jError
	if errors.As(err, &serverErr) {
		return classifyCode(serverErr.Code)
	}

	var usageErr *neo4j.UsageError
	if errors.As(err, &usageErr) {
		return KindClient
	}

	if neo4j.IsConnectivityError(err) {
		return KindUnavailable
	}

	return KindUnknown
}

func classifyCode(code string) ErrorKind {
	switch {
	case strings.HasPrefix(code, "Neo.ClientError.Security."):
		return KindAuth
	case strings.HasPrefix(code, "Neo.TransientError."):
		return KindTransient
	case code == "Neo.ClientError.Database.DatabaseNotFound":
		return KindDatabaseNotFound
	case strings.HasPrefix(code, "Neo.ClientError."):
		return KindClient
	case strings.HasPrefix(code, "Neo.DatabaseError."):
		return KindServer
	default:
		return KindUnknown
	}
}
