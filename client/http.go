package client

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
)

// errorBody is the JSON error response of the node.
type errorBody struct {
	Error string `json:"error"`
}

// do sends a request and decodes the JSON response when the status is accepted.
func (c *Client) do(method, path, contentType string, body []byte, result any, accepted ...int) (int, error) {
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%s %s:\n%w", method, path, err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s:\n%w", method, path, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	for _, code := range accepted {
		if resp.StatusCode != code {
			continue
		}

		if result == nil {
			return resp.StatusCode, nil
		}

		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response:\n%w", path, err)
		}

		return resp.StatusCode, nil
	}

	var e errorBody
	_ = json.NewDecoder(resp.Body).Decode(&e)

	return resp.StatusCode, &StatusError{Method: method, Path: path, Status: resp.StatusCode, Message: e.Error}
}

// postJSON marshals body and posts it.
func (c *Client) postJSON(path string, body, result any, accepted ...int) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal body:\n%w", err)
	}

	return c.do(http.MethodPost, path, "application/json", data, result, accepted...)
}

// StatusError is returned when the node answers with an unexpected status.
type StatusError struct {
	Method  string // Method is the HTTP method
	Path    string // Path is the request path
	Status  int    // Status is the response status code
	Message string // Message is the node's error message, if any
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}
