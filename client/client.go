// Package client submits batches, contracts and identities to a DocBatch node.
package client

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"DocBatch/internal/batch"
	"DocBatch/internal/identifier"
	"DocBatch/internal/identity"
)

// Client connects to a DocBatch node via HTTP.
type Client struct {
	baseURL string       // baseURL is the node root (e.g. "http://127.0.0.1:8080")
	http    *http.Client // http sends requests
}

// ErrorEntry is one validation error reported by the node.
type ErrorEntry struct {
	Kind    string `json:"kind"`    // Kind is the stable error kind
	Code    int    `json:"code"`    // Code is the numeric error code
	Message string `json:"message"` // Message describes the failure
}

// Result is a validation outcome reported by the node.
type Result struct {
	Valid  bool         `json:"valid"`  // Valid is true when no errors were found
	Errors []ErrorEntry `json:"errors"` // Errors lists the failures in order
}

// Kinds returns the kind of every error.
func (r *Result) Kinds() []string {
	kinds := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		kinds[i] = e.Kind
	}
	return kinds
}

// NewClient creates a client for the node at nodeAddr and checks it is healthy.
// nodeAddr may be a host:port or a full URL.
func NewClient(nodeAddr string) (*Client, error) {
	base := nodeAddr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	c := &Client{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}

	if err := c.Health(); err != nil {
		return nil, fmt.Errorf("node %s:\n%w", nodeAddr, err)
	}

	return c, nil
}

// Health checks GET /health.
func (c *Client) Health() error {
	var resp struct {
		Status string `json:"status"`
	}

	if _, err := c.do(http.MethodGet, "/health", "", nil, &resp, http.StatusOK); err != nil {
		return err
	}

	if resp.Status != "ok" {
		return fmt.Errorf("node status %q", resp.Status)
	}

	return nil
}

// ValidateBatch submits a batch. Invalid batches are reported in the result, not as errors.
func (c *Client) ValidateBatch(raw batch.Raw) (*Result, error) {
	var res Result

	if _, err := c.postJSON("/batch/validate", raw, &res, http.StatusOK, http.StatusUnprocessableEntity); err != nil {
		return nil, err
	}

	return &res, nil
}

// RegisterContract registers a contract definition (YAML or JSON) and returns its id.
// A definition rejected by the meta-schema is returned as a result with errors.
func (c *Client) RegisterContract(definition []byte) (identifier.Identifier, *Result, error) {
	var resp struct {
		ID     identifier.Identifier `json:"id"`
		Valid  bool                  `json:"valid"`
		Errors []ErrorEntry          `json:"errors"`
	}

	status, err := c.do(http.MethodPost, "/contracts", "application/yaml", definition, &resp,
		http.StatusCreated, http.StatusUnprocessableEntity)
	if err != nil {
		return identifier.Zero, nil, err
	}

	if status == http.StatusUnprocessableEntity {
		return identifier.Zero, &Result{Valid: false, Errors: resp.Errors}, nil
	}

	return resp.ID, &Result{Valid: true}, nil
}

// GetContract returns the canonical form of a registered contract, or nil when unknown.
func (c *Client) GetContract(id identifier.Identifier) (map[string]any, error) {
	var out map[string]any

	status, err := c.do(http.MethodGet, "/contracts/"+id.String(), "", nil, &out, http.StatusOK, http.StatusNotFound)
	if err != nil {
		return nil, err
	}

	if status == http.StatusNotFound {
		return nil, nil
	}

	return out, nil
}

// RegisterIdentity stores an identity on the node.
func (c *Client) RegisterIdentity(ident *identity.Identity) error {
	keys := make([]map[string]any, len(ident.PublicKeys))
	for i, k := range ident.PublicKeys {
		keys[i] = map[string]any{
			"id":       k.ID,
			"type":     k.Type.String(),
			"data":     k.Data,
			"disabled": k.Disabled,
		}
	}

	body := map[string]any{
		"id":         ident.ID,
		"revision":   ident.Revision,
		"publicKeys": keys,
	}

	_, err := c.postJSON("/identities", body, nil, http.StatusCreated)
	return err
}
