package hosts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/modelbay/modelbay/internal/domain"
)

// libraryJSON builds a registry listing response body.
func libraryJSON(next string, models ...map[string]interface{}) []byte {
	b, _ := json.Marshal(map[string]interface{}{
		"models": models,
		"next":   next,
	})
	return b
}

func registryEntry(name string, size int64) map[string]interface{} {
	return map[string]interface{}{
		"name":           name,
		"parameter_size": "3B",
		"quantization":   "q4_k_m",
		"format":         "GGUF",
		"size":           size,
		"digest":         "sha256:feedface",
		"visibility":     "public",
		"tags":           []string{"chat"},
	}
}

func TestRegistryListPage_MapsRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "llama" {
			t.Errorf("q param = %q, want llama", got)
		}
		w.Write(libraryJSON("", registryEntry("tiny-llama", 2048)))
	}))
	defer srv.Close()

	a := NewRegistryAdapter(srv.URL, time.Millisecond)
	records, next, err := a.ListPage(context.Background(), "llama", "")
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if next != "" {
		t.Errorf("next = %q, want empty", next)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	rec := records[0]
	if rec.Source != domain.SourceRegistry {
		t.Errorf("Source = %q, want registry", rec.Source)
	}
	if rec.Name != "tiny-llama" {
		t.Errorf("Name = %q", rec.Name)
	}
	if rec.Quantization != "Q4_K_M" {
		t.Errorf("Quantization = %q, want Q4_K_M", rec.Quantization)
	}
	if rec.Format != "gguf" {
		t.Errorf("Format = %q, want gguf", rec.Format)
	}
	if rec.Digest != "sha256:feedface" {
		t.Errorf("Digest = %q", rec.Digest)
	}
	wantURL := srv.URL + "/v2/tiny-llama/blobs/sha256:feedface"
	if rec.SourceURL != wantURL {
		t.Errorf("SourceURL = %q, want %q", rec.SourceURL, wantURL)
	}
	// parameter_size folded into tags for search
	found := false
	for _, tag := range rec.Tags {
		if tag == "3B" {
			found = true
		}
	}
	if !found {
		t.Errorf("Tags = %v, want to include 3B", rec.Tags)
	}
}

func TestRegistryListPage_Pagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "":
			w.Write(libraryJSON("2", registryEntry("one", 1)))
		case "2":
			w.Write(libraryJSON("", registryEntry("two", 2)))
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer srv.Close()

	a := NewRegistryAdapter(srv.URL, time.Millisecond)

	records, next, err := a.ListPage(context.Background(), "", "")
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(records) != 1 || next != "2" {
		t.Fatalf("page 1: %d records, next %q", len(records), next)
	}

	records, next, err = a.ListPage(context.Background(), "", next)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(records) != 1 || next != "" {
		t.Fatalf("page 2: %d records, next %q", len(records), next)
	}
}

func TestRegistryListPage_PrivateIsGated(t *testing.T) {
	private := registryEntry("internal-model", 1)
	private["visibility"] = "private"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(libraryJSON("", private))
	}))
	defer srv.Close()

	a := NewRegistryAdapter(srv.URL, time.Millisecond)
	records, _, err := a.ListPage(context.Background(), "", "")
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if len(records) != 1 || !records[0].Gated {
		t.Errorf("private visibility should mark the record gated: %+v", records)
	}
}

func TestRegistryListPage_NoDigestNotDownloadable(t *testing.T) {
	entry := registryEntry("no-blob", 1)
	entry["digest"] = ""

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(libraryJSON("", entry))
	}))
	defer srv.Close()

	a := NewRegistryAdapter(srv.URL, time.Millisecond)
	records, _, err := a.ListPage(context.Background(), "", "")
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if records[0].SourceURL != "" {
		t.Errorf("SourceURL = %q, want empty for digestless record", records[0].SourceURL)
	}
}

func TestRegistryListPage_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewRegistryAdapter(srv.URL, time.Millisecond)
	_, _, err := a.ListPage(context.Background(), "", "")
	if !domain.IsFetchKind(err, domain.FetchServerError) {
		t.Errorf("err = %v, want serverError", err)
	}
}
