package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/modelbay/modelbay/internal/domain"
	"github.com/modelbay/modelbay/internal/infra/catalog"
)

// catalogEntry is one descriptor plus its live compatibility verdict.
// Verdicts are computed per request against the captured machine profile,
// never stored in the snapshot.
type catalogEntry struct {
	domain.ModelDescriptor
	Verdict domain.Verdict `json:"verdict"`
}

type catalogResponse struct {
	Models      []catalogEntry `json:"models"`
	Count       int            `json:"count"`
	RefreshedAt *time.Time     `json:"refreshed_at,omitempty"`
}

// handleCatalog serves GET /v1/catalog. Optional filters: q (name or tag
// substring), runtime, compat (verdict).
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Current()

	q := strings.ToLower(r.URL.Query().Get("q"))
	runtime := domain.Runtime(r.URL.Query().Get("runtime"))
	compat := r.URL.Query().Get("compat")

	entries := make([]catalogEntry, 0, snap.Len())
	for _, d := range snap.Models {
		if q != "" && !matchesQuery(d, q) {
			continue
		}
		if runtime != "" && !d.SupportsRuntime(runtime) {
			continue
		}
		verdict := catalog.Score(d, s.profile)
		if compat != "" && string(verdict) != compat {
			continue
		}
		entries = append(entries, catalogEntry{ModelDescriptor: d, Verdict: verdict})
	}

	resp := catalogResponse{Models: entries, Count: len(entries)}
	if at, ok := s.catalog.LastRefresh(); ok {
		resp.RefreshedAt = &at
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh serves POST /v1/catalog/refresh: a synchronous rebuild from
// all hosts. A refresh where every source failed reports 502 and leaves the
// previous snapshot in place.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.catalog.Refresh(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models":       snap.Len(),
		"refreshed_at": snap.RefreshedAt,
	})
}

// handleLibrary serves GET /v1/library: installed, verified artifacts.
func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	models, err := s.library.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models": models,
		"count":  len(models),
	})
}

// matchesQuery reports whether the descriptor's name or any tag contains the
// lowercased query.
func matchesQuery(d domain.ModelDescriptor, q string) bool {
	if strings.Contains(strings.ToLower(d.Name), q) {
		return true
	}
	for _, tag := range d.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}
