package web

// handlers_upload.go drives the sync flow over HTTP: upload and analyze a
// file, execute the stored session, stream progress and fetch the tally.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/automationdb/internal/core"
	"github.com/JonMunkholm/automationdb/internal/fileio"
	"github.com/JonMunkholm/automationdb/internal/logging"
	"github.com/JonMunkholm/automationdb/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead is allowed on top of the file size for form boundaries
// and the other fields.
const multipartOverhead = 64 << 10

var errNoFile = errors.New("no file provided")

// executeRequest carries the answers to a preview. HTMX sends form fields,
// API clients send JSON.
type executeRequest struct {
	Acknowledge bool `json:"acknowledge"`
	Confirm     bool `json:"confirm"`
}

// executeResponse is returned when a run starts.
type executeResponse struct {
	RunID string `json:"runId"`
}

// handleSyncPreview decodes an uploaded file and stores the analyzed plan.
func (s *Server) handleSyncPreview(w http.ResponseWriter, r *http.Request) {
	mode, ok := core.ParseSyncMode(r.URL.Query().Get("mode"))
	if !ok {
		s.respondError(w, r, fmt.Errorf("%w: %q", core.ErrInvalidMode, r.URL.Query().Get("mode")), http.StatusBadRequest)
		return
	}

	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		if isTooLarge(err) {
			s.respondError(w, r, fmt.Errorf("file too large: limit is %d bytes", maxSize), http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %w", errNoFile, err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		s.respondError(w, r, fmt.Errorf("file too large: limit is %d bytes", maxSize), http.StatusRequestEntityTooLarge)
		return
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w", err), http.StatusBadRequest)
		return
	}

	rows, err := fileio.Decode(header.Filename, buf.Bytes())
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	sess, err := s.service.Analyze(r.Context(), header.Filename, rows, mode)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	logging.FromContext(r.Context()).Info("sync preview",
		"session_id", sess.ID,
		"file", header.Filename,
		"mode", mode,
		"rows", len(rows),
		"operations", sess.Plan.Total(),
	)

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		templates.SyncPreview(sess).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleGetSession returns a stored preview session.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.GetSession(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleSyncExecute starts the batch for a session.
func (s *Server) handleSyncExecute(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	req, err := parseExecuteRequest(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	runID, err := s.service.Execute(ctx, sessionID, core.ExecuteOptions{
		Acknowledge: req.Acknowledge,
		Confirm:     req.Confirm,
	})
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusAccepted)
		templates.RunStarted(runID).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusAccepted, executeResponse{RunID: runID})
}

// isTooLarge reports whether err came from the MaxBytesReader. Some
// multipart paths flatten the error, so the message is checked too.
func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large")
}

func parseExecuteRequest(r *http.Request) (executeRequest, error) {
	var req executeRequest
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return req, fmt.Errorf("%w: %w", core.ErrInvalidRecord, err)
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("%w: %w", core.ErrInvalidRecord, err)
	}
	req.Acknowledge = formBool(r.Form.Get("acknowledge"))
	req.Confirm = formBool(r.Form.Get("confirm"))
	return req, nil
}

// formBool accepts checkbox values ("on") as well as strconv booleans.
func formBool(v string) bool {
	if strings.EqualFold(v, "on") {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

// handleSyncProgress streams progress events for a run using Server-Sent Events.
//
// Event ids are the operation counter, so a reconnecting client sending
// Last-Event-ID skips events it already saw. With ?view=html the data is
// a rendered progress bar instead of JSON. The stream ends with a
// "complete" event carrying the tally.
func (s *Server) handleSyncProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	lastEventID := -1
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			lastEventID = id
		}
	}
	asHTML := r.URL.Query().Get("view") == "html"

	progressCh, err := s.service.SubscribeProgress(runID)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)

	for {
		select {
		case p, ok := <-progressCh:
			if !ok {
				s.writeComplete(w, r, runID, asHTML)
				rc.Flush()
				return
			}

			if p.Current < lastEventID {
				continue
			}

			var data []byte
			if asHTML {
				var buf bytes.Buffer
				templates.ProgressBar(p).Render(r.Context(), &buf)
				data = buf.Bytes()
			} else {
				data, _ = json.Marshal(p)
			}

			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", p.Current, data)
			if err := rc.Flush(); err != nil {
				logging.FromContext(r.Context()).Warn("sse flush failed", "run_id", runID, "error", err)
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

// writeComplete sends the final event. The run has finished, so Result
// returns without blocking.
func (s *Server) writeComplete(w io.Writer, r *http.Request, runID string, asHTML bool) {
	tally, err := s.service.Result(r.Context(), runID)
	if tally == nil {
		if err == nil {
			err = core.ErrRunNotFound
		}
		data, _ := json.Marshal(ErrorResponse{Error: err.Error(), Code: core.MapError(err).Code})
		fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
		return
	}

	var data []byte
	if asHTML {
		var buf bytes.Buffer
		templates.SyncResult(tally).Render(r.Context(), &buf)
		data = buf.Bytes()
	} else {
		data, _ = json.Marshal(tally)
	}
	fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
}

// handleSyncResult returns the tally, waiting for the run if it is still going.
func (s *Server) handleSyncResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	tally, err := s.service.Result(r.Context(), runID)
	if tally == nil {
		if err == nil {
			err = fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
		}
		s.respondError(w, r, err, 0)
		return
	}
	if err != nil {
		// The batch finished but the refetch failed; the tally says so.
		logging.FromContext(r.Context()).Warn("sync run finished with error", "run_id", runID, "error", err)
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		templates.SyncResult(tally).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, tally)
}

// handleSyncCancel requests cancellation of a running batch.
func (s *Server) handleSyncCancel(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.service.Cancel(runID); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling", "runId": runID})
}

// handleSyncHistory lists finished runs, newest first.
func (s *Server) handleSyncHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r.URL.Query(), "limit", core.DefaultHistoryLimit)
	runs, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleSyncStatus reports how many batches are running.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.RunStatus())
}
