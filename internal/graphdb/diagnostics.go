package graphdb

import (
	"context"
	"fmt"
)

// LastQuery returns the record of the most recent successful query, nil if
// none succeeded yet.
func (c *Client) LastQuery() *QueryRecord {
	return c.lastGood
}

// LastError returns the record of the most recent failed query, nil if none
// failed yet.
func (c *Client) LastError() *QueryRecord {
	return c.lastFail
}

// NodeCount returns the number of nodes in the active database.
func (c *Client) NodeCount(ctx context.Context) (int64, error) {
	return c.countQuery(ctx, "MATCH (n) RETURN count(n) AS count")
}

// RelationshipCount returns the number of relationships in the active
// database.
func (c *Client) RelationshipCount(ctx context.Context) (int64, error) {
	return c.countQuery(ctx, "MATCH ()-[r]->() RETURN count(r) AS count")
}

// Labels returns the distinct node labels present in the active database.
func (c *Client) Labels(ctx context.Context) ([]string, error) {
	return c.stringColumn(ctx, "CALL db.labels() YIELD label RETURN label", "label")
}

// RelationshipTypes returns the distinct relationship types present in the
// active database.
func (c *Client) RelationshipTypes(ctx context.Context) ([]string, error) {
	return c.stringColumn(ctx,
		"CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType",
		"relationshipType")
}

// PropertyKeys returns the property keys known to the active database.
func (c *Client) PropertyKeys(ctx context.Context) ([]string, error) {
	return c.stringColumn(ctx,
		"CALL db.propertyKeys() YIELD propertyKey RETURN propertyKey",
		"propertyKey")
}

func (c *Client) countQuery(ctx context.Context, cypher string) (int64, error) {
	res, err := c.Query(ctx, cypher, nil, WithRead(), WithRaiseErrors(true))
	if err != nil {
		return 0, err
	}
	if res == nil || len(res.Records) == 0 {
		return 0, nil
	}

	raw, ok := res.Records[0].Get("count")
	if !ok {
		return 0, fmt.Errorf("count query returned no count column")
	}
	count, ok := raw.(int64)
	if !ok {
		return 0, fmt.Errorf("count query returned %T, expected int64", raw)
	}
	return count, nil
}

func (c *Client) stringColumn(ctx context.Context, cypher, column string) ([]string, error) {
	res, err := c.Query(ctx, cypher, nil, WithRead(), WithRaiseErrors(true))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}

	values := make([]string, 0, len(res.Records))
	for _, record := range res.Records {
		raw, ok := record.Get(column)
		if !ok {
			continue
		}
		if s, ok := raw.(string); ok {
			values = append(values, s)
		}
	}
	return values, nil
}
