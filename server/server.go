// Package server is the REST front door over the persistence layer. Every
// response is wrapped in a fixed envelope; the one exception is a document
// read with includeContent=true, which returns the raw stored body.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jchristn/lattice/core"
	"github.com/jchristn/lattice/core/persistence"
)

// ResponseEnvelope is the fixed wrapper around every JSON response.
type ResponseEnvelope struct {
	Success          bool   `json:"success"`
	StatusCode       int    `json:"statusCode"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
	Data             any    `json:"data"`
	GUID             string `json:"guid"`
	TimestampUTC     string `json:"timestampUtc"`
	ProcessingTimeMs int64  `json:"processingTimeMs"`
}

// Server wraps the persistence layer with HTTP handlers.
type Server struct {
	persistence *persistence.Persistence
	logger      *zap.Logger
	mux         *http.ServeMux
}

// New creates a server instance over a persistence layer.
func New(p *persistence.Persistence, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		persistence: p,
		logger:      logger,
		mux:         http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /v1.0/health", s.handleHealth)

	s.mux.HandleFunc("PUT /v1.0/collections", s.handleCollectionCreate)
	s.mux.HandleFunc("GET /v1.0/collections", s.handleCollectionList)
	s.mux.HandleFunc("GET /v1.0/collections/{id}", s.handleCollectionGet)
	s.mux.HandleFunc("HEAD /v1.0/collections/{id}", s.handleCollectionHead)
	s.mux.HandleFunc("DELETE /v1.0/collections/{id}", s.handleCollectionDelete)

	s.mux.HandleFunc("GET /v1.0/collections/{id}/constraints", s.handleConstraintsGet)
	s.mux.HandleFunc("PUT /v1.0/collections/{id}/constraints", s.handleConstraintsPut)
	s.mux.HandleFunc("GET /v1.0/collections/{id}/indexing", s.handleIndexingGet)
	s.mux.HandleFunc("PUT /v1.0/collections/{id}/indexing", s.handleIndexingPut)
	s.mux.HandleFunc("POST /v1.0/collections/{id}/indexes/rebuild", s.handleIndexRebuild)

	s.mux.HandleFunc("PUT /v1.0/collections/{cid}/documents", s.handleDocumentIngest)
	s.mux.HandleFunc("GET /v1.0/collections/{cid}/documents/{did}", s.handleDocumentGet)
	s.mux.HandleFunc("HEAD /v1.0/collections/{cid}/documents/{did}", s.handleDocumentHead)
	s.mux.HandleFunc("DELETE /v1.0/collections/{cid}/documents/{did}", s.handleDocumentDelete)
	s.mux.HandleFunc("POST /v1.0/collections/{cid}/documents/search", s.handleDocumentSearch)

	s.mux.HandleFunc("GET /v1.0/schemas", s.handleSchemaList)
	s.mux.HandleFunc("GET /v1.0/schemas/{id}", s.handleSchemaGet)
	s.mux.HandleFunc("GET /v1.0/schemas/{id}/elements", s.handleSchemaElements)

	s.mux.HandleFunc("GET /v1.0/tables", s.handleTableList)
}

// Start runs the server on the given address until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting REST server", zap.String("address", addr))
	return http.ListenAndServe(addr, s)
}

func (s *Server) parseJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) writeEnvelope(w http.ResponseWriter, start time.Time, statusCode int, success bool, errorMessage string, data any) {
	envelope := ResponseEnvelope{
		Success:          success,
		StatusCode:       statusCode,
		ErrorMessage:     errorMessage,
		Data:             data,
		GUID:             uuid.New().String(),
		TimestampUTC:     time.Now().UTC().Format(time.RFC3339Nano),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeData(w http.ResponseWriter, start time.Time, data any) {
	s.writeEnvelope(w, start, http.StatusOK, true, "", data)
}

// writeError maps the typed error kinds onto HTTP status codes. NotFound is
// not handled here: GET handlers surface it as success with null data, and
// HEAD/DELETE handlers as an explicit 404.
func (s *Server) writeError(w http.ResponseWriter, start time.Time, err error) {
	var verr *core.ValidationError
	var unsupported *core.UnsupportedOperationError

	switch {
	case errors.As(err, &verr):
		s.writeEnvelope(w, start, http.StatusBadRequest, false, verr.Error(), verr.Errors)
	case errors.As(err, &unsupported):
		s.writeEnvelope(w, start, http.StatusBadRequest, false, unsupported.Message, nil)
	case errors.Is(err, core.ErrNotFound):
		s.writeNotFound(w, start)
	default:
		s.logger.Error("Request failed", zap.Error(err))
		s.writeEnvelope(w, start, http.StatusInternalServerError, false, err.Error(), nil)
	}
}

func (s *Server) writeNotFound(w http.ResponseWriter, start time.Time) {
	s.writeEnvelope(w, start, http.StatusNotFound, false, "not found", nil)
}

func (s *Server) writeBadRequest(w http.ResponseWriter, start time.Time, message string) {
	s.writeEnvelope(w, start, http.StatusBadRequest, false, message, nil)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := s.persistence.Ping(r.Context()); err != nil {
		s.writeEnvelope(w, start, http.StatusServiceUnavailable, false, err.Error(), nil)
		return
	}
	s.writeData(w, start, nil)
}
