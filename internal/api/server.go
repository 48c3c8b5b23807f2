// Package api serves batch validation and registration over HTTP.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"DocBatch/internal/batch"
	"DocBatch/internal/contract"
	"DocBatch/internal/identifier"
	"DocBatch/internal/identity"
	"DocBatch/internal/logger"
	"DocBatch/internal/validation"
)

const (
	// maxBodySize is the maximum request body size in bytes.
	maxBodySize = 1 << 20 // 1 MB

	// requestIDHeader carries the request id in both directions.
	requestIDHeader = "X-Request-Id"
)

// BatchValidator validates decoded batches.
type BatchValidator interface {
	ValidateBatch(ctx context.Context, raw batch.Raw) (*validation.Result, error)
}

// ContractRegistry registers and resolves contracts.
type ContractRegistry interface {
	Register(c *contract.Contract) (*validation.Result, error)
	FetchContract(ctx context.Context, id identifier.Identifier) (*contract.Contract, error)
}

// IdentityRegistry stores identities.
type IdentityRegistry interface {
	Put(ident *identity.Identity) error
}

// Server is the HTTP API server.
type Server struct {
	addr       string           // addr is the HTTP listen address
	validator  BatchValidator   // validator checks submitted batches
	contracts  ContractRegistry // contracts registers and serves contracts
	identities IdentityRegistry // identities stores submitter identities; optional
	server     *http.Server     // server is the underlying HTTP server
}

// New creates a new HTTP API server. identities may be nil to disable POST /identities.
func New(addr string, validator BatchValidator, contracts ContractRegistry, identities IdentityRegistry) *Server {
	return &Server{
		addr:       addr,
		validator:  validator,
		contracts:  contracts,
		identities: identities,
	}
}

// Handler returns the routed handler with request ids attached.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /batch/validate", s.handleValidateBatch)
	mux.HandleFunc("POST /contracts", s.handleRegisterContract)
	mux.HandleFunc("GET /contracts/{id}", s.handleGetContract)
	mux.HandleFunc("GET /health", s.handleHealth)

	if s.identities != nil {
		mux.HandleFunc("POST /identities", s.handlePutIdentity)
	}

	return withRequestID(mux)
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http api started", "addr", s.addr)

		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// handleValidateBatch handles POST /batch/validate requests.
func (s *Server) handleValidateBatch(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	raw, err := batch.DecodeWire(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.validator.ValidateBatch(r.Context(), raw)
	if err != nil {
		requestLogger(r).Error("batch validation fault", "error", err)
		writeError(w, http.StatusInternalServerError, "validation failed")
		return
	}

	requestLogger(r).Debug("batch checked", "valid", res.IsValid(), "errors", len(res.Errors()))

	writeResult(w, res)
}

// handleRegisterContract handles POST /contracts requests (JSON or YAML).
func (s *Server) handleRegisterContract(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	c, err := contract.LoadYAML(bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.contracts.Register(c)
	if err != nil {
		requestLogger(r).Error("contract registration fault", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	if !res.IsValid() {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}

	cid, err := c.ID().CID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	requestLogger(r).Info("contract registered", "id", c.ID().Short())

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":  c.ID().String(),
		"cid": cid.String(),
	})
}

// handleGetContract handles GET /contracts/{id} requests.
func (s *Server) handleGetContract(w http.ResponseWriter, r *http.Request) {
	id, err := identifier.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid contract id: %v", err))
		return
	}

	c, err := s.contracts.FetchContract(r.Context(), id)
	if err != nil {
		requestLogger(r).Error("contract lookup fault", "id", id.Short(), "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	if c == nil {
		writeError(w, http.StatusNotFound, "contract not found")
		return
	}

	writeJSON(w, http.StatusOK, c.CanonicalForm())
}

// handlePutIdentity handles POST /identities requests.
func (s *Server) handlePutIdentity(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	ident, err := decodeIdentity(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = s.identities.Put(ident)
	switch {
	case errors.Is(err, identity.ErrStaleRevision):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, identity.ErrDuplicateKey), errors.Is(err, identity.ErrUnknownKeyType), errors.Is(err, identity.ErrInvalidKey):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		requestLogger(r).Error("identity store fault", "error", err)
		writeError(w, http.StatusInternalServerError, "store failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       ident.ID.String(),
		"revision": ident.Revision,
	})
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// readBody reads a bounded, non-empty request body. It writes the error response itself.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return nil, false
	}

	if len(body) > maxBodySize {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return nil, false
	}

	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty body")
		return nil, false
	}

	return body, true
}

// requestIDKey is the context key of the request id.
type requestIDKey struct{}

// withRequestID assigns every request an id, echoes it and stores it in the context.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, id)

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// requestLogger returns a logger carrying the request id.
func requestLogger(r *http.Request) *slog.Logger {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return logger.With("request", id, "path", r.URL.Path)
}

// writeResult writes a validation result: 200 when valid, 422 otherwise.
func writeResult(w http.ResponseWriter, res *validation.Result) {
	status := http.StatusOK
	if !res.IsValid() {
		status = http.StatusUnprocessableEntity
	}

	writeJSON(w, status, res)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
