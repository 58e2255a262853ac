package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/jchristn/lattice/core"
)

// ConstraintConfig is the request/response body of the constraints
// endpoint.
type ConstraintConfig struct {
	SchemaEnforcementMode core.SchemaEnforcementMode `json:"schemaEnforcementMode"`
	FieldConstraints      []core.FieldConstraint     `json:"fieldConstraints"`
}

// IndexingConfig is the request/response body of the indexing endpoint.
type IndexingConfig struct {
	IndexingMode   core.IndexingMode `json:"indexingMode"`
	IndexedFields  []string          `json:"indexedFields"`
	RebuildIndexes bool              `json:"rebuildIndexes,omitempty"`
}

// RebuildRequest is the request body of the index rebuild endpoint.
type RebuildRequest struct {
	DropUnusedIndexes bool `json:"dropUnusedIndexes"`
}

func (s *Server) handleCollectionCreate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var opts core.CreateCollectionOptions
	if err := s.parseJSONBody(r, &opts); err != nil {
		s.writeBadRequest(w, start, "invalid JSON in request body")
		return
	}

	col, err := s.persistence.CreateCollection(r.Context(), &opts)
	if err != nil {
		s.writeError(w, start, err)
		return
	}
	s.writeData(w, start, col)
}

func (s *Server) handleCollectionList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	cols, err := s.persistence.ListCollections(r.Context())
	if err != nil {
		s.writeError(w, start, err)
		return
	}
	s.writeData(w, start, cols)
}

func (s *Server) handleCollectionGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	col, err := s.persistence.GetCollection(r.Context(), r.PathValue("id"))
	if errors.Is(err, core.ErrNotFound) {
		s.writeData(w, start, nil)
		return
	}
	if err != nil {
		s.writeError(w, start, err)
		return
	}
	s.writeData(w, start, col)
}

func (s *Server) handleCollectionHead(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	exists, err := s.persistence.CollectionExists(r.Context(), r.PathValue("id"))
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

func (s *Server) handleCollectionDelete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := s.persistence.DeleteCollection(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, start, err)
		return
	}
	s.writeData(w, start, nil)
}

func (s *Server) handleConstraintsGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	mode, constraints, err := s.persistence.GetConstraints(r.Context(), r.PathValue("id"))
	if errors.Is(err, core.ErrNotFound) {
		s.writeData(w, start, nil)
		return
	}
	if err != nil {
		s.writeError(w, start, err)
		return
	}
	s.writeData(w, start, ConstraintConfig{
		SchemaEnforcementMode: mode,
		FieldConstraints:      constraints,
	})
}

func (s *Server) handleConstraintsPut(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var config ConstraintConfig
	if err := s.parseJSONBody(r, &config); err != nil {
		s.writeBadRequest(w, start, "invalid JSON in request body")
		return
	}

	err := s.persistence.UpdateConstraints(r.Context(), r.PathValue("id"),
		config.SchemaEnforcementMode, config.FieldConstraints)
	if err != nil {
		s.writeError(w, start, err)
		return
	}
	s.writeData(w, start, nil)
}

func (s *Server) handleIndexingGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	mode, fields, err := s.persistence.GetIndexing(r.Context(), r.PathValue("id"))
	if errors.Is(err, core.ErrNotFound) {
		s.writeData(w, start, nil)
		return
	}
	if err != nil {
		s.writeError(w, start, err)
		return
	}

	paths := make([]string, 0, len(fields))
	for _, field := range fields {
		paths = append(paths, field.FieldPath)
	}
	s.writeData(w, start, IndexingConfig{IndexingMode: mode, IndexedFields: paths})
}

func (s *Server) handleIndexingPut(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var config IndexingConfig
	if err := s.parseJSONBody(r, &config); err != nil {
		s.writeBadRequest(w, start, "invalid JSON in request body")
		return
	}

	result, err := s.persistence.UpdateIndexing(r.Context(), r.PathValue("id"),
		config.IndexingMode, config.IndexedFields, config.RebuildIndexes)
	if err != nil {
		s.writeError(w, start, err)
		return
	}
	if result != nil {
		s.writeData(w, start, result)
		return
	}
	s.writeData(w, start, nil)
}

func (s *Server) handleIndexRebuild(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req RebuildRequest
	if err := s.parseJSONBody(r, &req); err != nil {
		s.writeBadRequest(w, start, "invalid JSON in request body")
		return
	}

	result, err := s.persistence.RebuildIndexes(r.Context(), r.PathValue("id"), req.DropUnusedIndexes)
	if err != nil {
		s.writeError(w, start, err)
		return
	}
	s.writeData(w, start, result)
}

func (s *Server) handleSchemaList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	schemas, err := s.persistence.ListSchemas(r.Context())
	if err != nil {
		s.writeError(w, start, err)
		return
	}
	s.writeData(w, start, schemas)
}

func (s *Server) handleSchemaGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sch, err := s.persistence.GetSchema(r.Context(), r.PathValue("id"))
	if errors.Is(err, core.ErrNotFound) {
		s.writeData(w, start, nil)
		return
	}
	if err != nil {
		s.writeError(w, start, err)
		return
	}
	s.writeData(w, start, sch)
}

func (s *Server) handleSchemaElements(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	elements, err := s.persistence.GetSchemaElements(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, start, err)
		return
	}
	s.writeData(w, start, elements)
}

func (s *Server) handleTableList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	mappings, err := s.persistence.ListIndexTables(r.Context())
	if err != nil {
		s.writeError(w, start, err)
		return
	}
	s.writeData(w, start, mappings)
}
