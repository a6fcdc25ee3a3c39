package connpager

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Connection is the single row returned by a compiled query. Page info fields
// are nil when they were not requested.
type Connection struct {
	Data            json.RawMessage `json:"data"`
	HasNextPage     *bool           `json:"hasNextPage,omitempty"`
	HasPreviousPage *bool           `json:"hasPreviousPage,omitempty"`
	TotalCount      *int64          `json:"totalCount,omitempty"`
}

// Edge is a node of the page together with its cursor.
type Edge struct {
	Cursor Cursor
	Node   map[string]any
}

// PageInfo is the Relay page info of a connection.
type PageInfo struct {
	HasNextPage     bool   `json:"hasNextPage"`
	HasPreviousPage bool   `json:"hasPreviousPage"`
	StartCursor     string `json:"startCursor,omitempty"`
	EndCursor       string `json:"endCursor,omitempty"`
}

// DecodeConnection parses a FormatObject row.
func DecodeConnection(data []byte) (*Connection, error) {
	ret := new(Connection)
	if err := json.Unmarshal(data, ret); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal connection object")
	}

	return ret, nil
}

// Edges decodes the page rows in page order.
func (c *Connection) Edges() ([]Edge, error) {
	if c == nil || len(c.Data) == 0 {
		return nil, nil
	}

	decoded, err := decodeJSON(c.Data)
	if err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal connection data")
	}

	// Drivers returning JSON columns as text may double encode the array.
	if s, ok := decoded.(string); ok {
		if decoded, err = decodeJSON([]byte(s)); err != nil {
			return nil, errors.Wrap(err, "cannot unmarshal connection data")
		}
	}

	rows, ok := decoded.([]any)
	if !ok {
		return nil, errors.Errorf("connection data is %T, not a list", decoded)
	}

	ret := make([]Edge, 0, len(rows))
	for i, row := range rows {
		node, ok := row.(map[string]any)
		if !ok {
			return nil, errors.Errorf("connection row %d is %T, not an object", i, row)
		}

		cursor, ok := node[cursorColumn].([]any)
		if !ok {
			return nil, errors.Errorf("connection row %d has no cursor", i)
		}
		delete(node, cursorColumn)

		ret = append(ret, Edge{Cursor: cursor, Node: node})
	}

	return ret, nil
}

// PageInfo builds the Relay page info. Start and end cursors are the tokens
// of the first and last edge.
func (c *Connection) PageInfo() (PageInfo, error) {
	edges, err := c.Edges()
	if err != nil {
		return PageInfo{}, err
	}

	ret := PageInfo{}
	if c != nil {
		ret.HasNextPage = lo.FromPtr(c.HasNextPage)
		ret.HasPreviousPage = lo.FromPtr(c.HasPreviousPage)
	}

	if len(edges) > 0 {
		ret.StartCursor = edges[0].Cursor.String()
		ret.EndCursor = lo.LastOrEmpty(edges).Cursor.String()
	}

	return ret, nil
}
