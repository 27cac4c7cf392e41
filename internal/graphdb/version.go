package graphdb

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

// ServerVersion is the server version reported by the DBMS, detected once
// per client and cached for all subsequent dialect decisions.
type ServerVersion struct {
	Major   int
	Minor   int
	Patch   int
	Edition string
}

func (v *ServerVersion) String() string {
	if v == nil {
		return "unknown"
	}
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Edition != "" {
		s += " " + v.Edition
	}
	return s
}

const versionQuery = "CALL dbms.components() YIELD name, versions, edition " +
	"RETURN name, versions, edition"

// Aura and calendar-versioned servers report strings like "5.26-aura" or
// "2025.01.0"; the leading numbers are what the dialect decision needs.
var versionPattern = regexp.MustCompile(`^(\d+)(?:\.(\d+))?(?:\.(\d+))?`)

// ServerVersion queries the server for its version on first use and caches
// the result. The schema dialect for this client is selected at the same
// time and held for the client's lifetime.
func (c *Client) ServerVersion(ctx context.Context) (*ServerVersion, error) {
	if c.version != nil {
		return c.version, nil
	}
	if c.mode == ModeOffline {
		return nil, ErrOffline
	}

	res, err := c.Query(ctx, versionQuery, nil, WithRead(), WithRaiseErrors(true))
	if err != nil {
		return nil, fmt.Errorf("detecting server version: %w", err)
	}
	if res == nil || len(res.Records) == 0 {
		return nil, fmt.Errorf("server reported no version components")
	}

	for _, record := range res.Records {
		rawVersions, ok := record.Get("versions")
		if !ok {
			continue
		}
		versions, ok := rawVersions.([]any)
		if !ok || len(versions) == 0 {
			continue
		}
		versionStr, ok := versions[0].(string)
		if !ok {
			continue
		}

		version, err := parseVersion(versionStr)
		if err != nil {
			return nil, err
		}
		if rawEdition, ok := record.Get("edition"); ok {
			if edition, ok := rawEdition.(string); ok {
				version.Edition = edition
			}
		}

		c.version = version
		c.dialect = DialectForVersion(version)
		c.log.Info("detected server version", "version", version.String())
		return version, nil
	}

	return nil, fmt.Errorf("no parseable version in server components")
}

func parseVersion(s string) (*ServerVersion, error) {
	match := versionPattern.FindStringSubmatch(s)
	if match == nil {
		return nil, fmt.Errorf("unparseable server version %q", s)
	}

	version := &ServerVersion{}
	version.Major, _ = strconv.Atoi(match[1])
	if match[2] != "" {
		version.Minor, _ = strconv.Atoi(match[2])
	}
	if match[3] != "" {
		version.Patch, _ = strconv.Atoi(match[3])
	}
	return version, nil
}
