// Package client talks to a running server over its HTTP interface and
// provides the interactive shell on top of it.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mesh-intelligence/larder/internal/database"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// Client issues queries against a server. Condition values travel as plain
// literals in the query string; the server types them against the schema.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{}}
}

// Schema fetches the database schema.
func (c *Client) Schema() (*types.Schema, error) {
	var schema types.Schema
	if err := c.do(http.MethodGet, "/.schema", nil, nil, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

// Select returns the rows of table matching the given raw conditions.
func (c *Client) Select(table string, conditions map[string]string) ([]types.Row, error) {
	var rows []types.Row
	if err := c.do(http.MethodGet, "/"+table, conditions, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Insert stores one row.
func (c *Client) Insert(table string, row types.Row) (types.Row, error) {
	var stored types.Row
	if err := c.do(http.MethodPost, "/"+table, nil, row, &stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// Update overwrites the set columns of every matching row and returns the
// affected count.
func (c *Client) Update(table string, set types.Row, conditions map[string]string) (int, error) {
	var result database.Result
	if err := c.do(http.MethodPut, "/"+table, conditions, set, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

// Delete removes every matching row and returns the count.
func (c *Client) Delete(table string, conditions map[string]string) (int, error) {
	var result database.Result
	if err := c.do(http.MethodDelete, "/"+table, conditions, nil, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

// Create makes a new table with the given ordered columns.
func (c *Client) Create(table string, columns []types.Column) error {
	return c.do(http.MethodPost, "/"+table+"/create", nil, columns, nil)
}

// Drop removes a table.
func (c *Client) Drop(table string) error {
	return c.do(http.MethodDelete, "/"+table+"/drop", nil, nil, nil)
}

// Alter renames columns.
func (c *Client) Alter(table string, rename map[string]string) error {
	pairs := make([]string, 0, len(rename))
	for old, new := range rename {
		pairs = append(pairs, old+":"+new)
	}
	params := map[string]string{"renamings": strings.Join(pairs, ",")}
	return c.do(http.MethodPut, "/"+table+"/alter", params, nil, nil)
}

// do runs one request. A non-2xx response is decoded as {"error": msg} and
// surfaced as an error.
func (c *Client) do(method, path string, params map[string]string, body, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		u += "?" + values.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			return fmt.Errorf("server returned %s", resp.Status)
		}
		return fmt.Errorf("%s", e.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
