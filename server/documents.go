package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jchristn/lattice/core"
	"github.com/jchristn/lattice/core/persistence"
	"github.com/jchristn/lattice/core/query"
)

// SearchRequest is the body of the document search endpoint: either a
// structured query or a SQL-like expression.
type SearchRequest struct {
	query.SearchQuery
	SQLExpression string `json:"sqlExpression,omitempty"`
}

func (s *Server) handleDocumentIngest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		s.writeBadRequest(w, start, "failed to read request body")
		return
	}

	params := r.URL.Query()
	opts := core.IngestOptions{
		Name:   params.Get("name"),
		Labels: params["label"],
	}
	// Tags arrive as repeated ?tag=key=value pairs.
	for _, pair := range params["tag"] {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			s.writeBadRequest(w, start, "tag parameters must be key=value pairs")
			return
		}
		if opts.Tags == nil {
			opts.Tags = make(map[string]string)
		}
		opts.Tags[key] = value
	}

	doc, err := s.persistence.Ingest(r.Context(), r.PathValue("cid"), body, opts)
	if err != nil {
		s.writeError(w, start, err)
		return
	}
	s.writeData(w, start, doc)
}

func (s *Server) handleDocumentGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	params := r.URL.Query()
	opts := persistence.ReadOptions{
		IncludeContent: queryBool(params.Get("includeContent")),
		IncludeLabels:  queryBool(params.Get("includeLabels")),
		IncludeTags:    queryBool(params.Get("includeTags")),
	}

	doc, err := s.persistence.GetDocument(r.Context(), r.PathValue("cid"), r.PathValue("did"), opts)
	if errors.Is(err, core.ErrNotFound) {
		s.writeData(w, start, nil)
		return
	}
	if err != nil {
		s.writeError(w, start, err)
		return
	}

	// includeContent returns the raw stored body without the envelope;
	// metadata requires a second call without the flag.
	if opts.IncludeContent {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(doc.Content); err != nil {
			s.logger.Error("Failed to write document body", zap.Error(err))
		}
		return
	}
	s.writeData(w, start, doc)
}

func (s *Server) handleDocumentHead(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	exists, err := s.persistence.DocumentExists(r.Context(), r.PathValue("cid"), r.PathValue("did"))
	if err != nil {
		s.writeError(w, start, err)
		return
	}
	if !exists {
		s.writeNotFound(w, start)
		return
	}
	s.writeData(w, start, nil)
}

func (s *Server) handleDocumentDelete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	err := s.persistence.DeleteDocument(r.Context(), r.PathValue("cid"), r.PathValue("did"))
	if err != nil {
		s.writeError(w, start, err)
		return
	}
	s.writeData(w, start, nil)
}

func (s *Server) handleDocumentSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req SearchRequest
	if err := s.parseJSONBody(r, &req); err != nil {
		s.writeBadRequest(w, start, "invalid JSON in request body")
		return
	}

	collectionID := r.PathValue("cid")
	var result *query.SearchResult
	var err error
	if req.SQLExpression != "" {
		result, err = s.persistence.SearchSQL(r.Context(), collectionID, req.SQLExpression)
	} else {
		req.CollectionID = collectionID
		result, err = s.persistence.Search(r.Context(), &req.SearchQuery)
	}
	if err != nil {
		s.writeError(w, start, err)
		return
	}
	s.writeData(w, start, result)
}

func queryBool(value string) bool {
	return strings.EqualFold(value, "true")
}
