package web

import (
	"net/http"

	"github.com/JonMunkholm/automationdb/internal/core"
	"github.com/JonMunkholm/automationdb/internal/logging"
	"github.com/go-chi/chi/v5"
)

// editFieldRequest is the body of an inline single-field edit.
// A null or empty value clears the field.
type editFieldRequest struct {
	Field string  `json:"field"`
	Value *string `json:"value"`
}

// handleCreateRecord creates one automation from a JSON body.
func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var rec core.Record
	if err := decodeJSON(w, r, &rec); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	created, err := s.service.CreateRecord(r.Context(), rec)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	logging.FromContext(r.Context()).Info("automation created", "air_id", created.AirID)
	writeJSON(w, http.StatusCreated, created)
}

// handleReplaceRecord replaces an automation. The path id wins over the body.
func (s *Server) handleReplaceRecord(w http.ResponseWriter, r *http.Request) {
	airID := chi.URLParam(r, "airID")

	var rec core.Record
	if err := decodeJSON(w, r, &rec); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	updated, err := s.service.ReplaceRecord(r.Context(), airID, rec)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleEditField changes a single field in place.
func (s *Server) handleEditField(w http.ResponseWriter, r *http.Request) {
	airID := chi.URLParam(r, "airID")

	var req editFieldRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	var value string
	if req.Value != nil {
		value = *req.Value
	}

	updated, err := s.service.EditField(r.Context(), airID, req.Field, value)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	logging.FromContext(r.Context()).Info("automation field edited", "air_id", airID, "field", req.Field)
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteRecord deletes one automation.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	airID := chi.URLParam(r, "airID")

	if err := s.service.DeleteRecord(r.Context(), airID); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	logging.FromContext(r.Context()).Info("automation deleted", "air_id", airID)
	w.WriteHeader(http.StatusNoContent)
}
