package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modelbay/modelbay/internal/domain"
)

// handleListDownloads serves GET /v1/downloads: every live transfer plus
// at-rest paused and failed ones, in enqueue order.
func (s *Server) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	states := s.downloads.States()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transfers": states,
		"count":     len(states),
	})
}

type enqueueRequest struct {
	Model string `json:"model"`
}

// handleEnqueue serves POST /v1/downloads. The body names a catalog id;
// enqueueing a model that is already downloading returns the existing
// handle rather than an error.
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "missing required field: model")
		return
	}

	desc, ok := s.catalog.Lookup(req.Model)
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrModelNotFound.Error())
		return
	}

	st, err := s.downloads.Enqueue(desc)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// transferAction wraps a scheduler transition as a handler and responds with
// the post-transition state.
func (s *Server) transferAction(action func(id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := action(id); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		st, err := s.downloads.Get(id)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// handleDismiss serves DELETE /v1/downloads/{id}: drop a terminal transfer
// from the list. The downloaded artifact, if any, stays on disk.
func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.downloads.Dismiss(id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"dismissed": id})
}

// handleEvents serves GET /v1/downloads/events as SSE. Each frame carries one
// TransferEvent; the stream runs until the client disconnects or the
// scheduler shuts down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events, cancel := s.downloads.Subscribe()
	defer cancel()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
