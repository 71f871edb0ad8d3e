package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/automationdb/internal/core"
	"github.com/JonMunkholm/automationdb/internal/fileio"
	"github.com/go-chi/chi/v5"
)

// viewResponse is a filtered and sorted page of the snapshot.
type viewResponse struct {
	Records []core.Record `json:"records"`
	Total   int           `json:"total"`
}

// handleListRecords refetches the collection and returns it.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.Refresh(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleGetRecord returns one automation from the backend.
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.GetRecord(r.Context(), chi.URLParam(r, "airID"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleSearch proxies a ranked search to the backend.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := s.service.Search(r.Context(), core.SearchParams{
		Query: q.Get("q"),
		Limit: parseIntParam(q, "limit", core.DefaultSearchLimit),
		Fuzzy: parseBoolParam(q, "fuzzy", true),
	})
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAuditLogs proxies the backend audit-log listing verbatim.
func (s *Server) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	raw, err := s.service.AuditLogs(r.Context(), r.URL.Query())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

// handleView filters and sorts the in-memory snapshot.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	records, err := s.viewFromQuery(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, viewResponse{Records: records, Total: len(records)})
}

// handleUnique returns the distinct values of one field.
func (s *Server) handleUnique(w http.ResponseWriter, r *http.Request) {
	values, err := s.service.Unique(r.Context(), chi.URLParam(r, "field"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

// handleExport downloads the snapshot, narrowed by the same filters as view.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := fileio.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	records, err := s.viewFromQuery(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	// Render fully before writing headers so a failure can still be reported.
	var buf bytes.Buffer
	if err := fileio.Export(&buf, format, records); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	writeAttachment(w, format, fileio.ExportFileName(format, time.Now()), buf.Bytes())
}

// handleTemplate downloads an empty import template with one sample row.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	format, err := fileio.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := fileio.Template(&buf, format); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	writeAttachment(w, format, fileio.TemplateFileName(format), buf.Bytes())
}

func (s *Server) viewFromQuery(r *http.Request) ([]core.Record, error) {
	q := r.URL.Query()
	fs, err := parseFilters(q)
	if err != nil {
		return nil, err
	}
	return s.service.View(r.Context(), fs, parseSorts(q))
}

func writeAttachment(w http.ResponseWriter, format fileio.Format, filename string, body []byte) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Write(body)
}
