package hosts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/modelbay/modelbay/internal/domain"
)

// ─── Registry Adapter ───────────────────────────────────────────────────────
// Talks to an Ollama-style registry: GET {base}/api/library returns a JSON
// object with a models array and an explicit next-page token. Artifacts are
// content-addressed, so the download URL is the blob endpoint for the
// record's digest.

// DefaultRegistryURL is the public registry endpoint.
const DefaultRegistryURL = "https://registry.ollama.ai"

const registryPageSize = 50

// RegistryAdapter lists models from a registry-style source.
type RegistryAdapter struct {
	baseURL string
	client  *http.Client
	th      *throttle
}

// NewRegistryAdapter creates a registry adapter. interval <= 0 selects the
// default self-throttle of DefaultRequestInterval.
func NewRegistryAdapter(baseURL string, interval time.Duration) *RegistryAdapter {
	if baseURL == "" {
		baseURL = DefaultRegistryURL
	}
	return &RegistryAdapter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  newHTTPClient(),
		th:      newThrottle(interval),
	}
}

// Source identifies this adapter.
func (a *RegistryAdapter) Source() domain.Source { return domain.SourceRegistry }

// registryPage is the registry's listing response shape.
type registryPage struct {
	Models []registryModel `json:"models"`
	Next   string          `json:"next"`
}

type registryModel struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	ParameterSize string   `json:"parameter_size"`
	Quantization  string   `json:"quantization"`
	Format        string   `json:"format"`
	Size          int64    `json:"size"`
	Digest        string   `json:"digest"`
	Visibility    string   `json:"visibility"`
	Tags          []string `json:"tags"`
	UpdatedAt     string   `json:"updated_at"`
}

// ListPage fetches one page of registry records.
func (a *RegistryAdapter) ListPage(ctx context.Context, query, pageToken string) ([]domain.RawModelRecord, string, error) {
	if err := a.th.wait(ctx); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.listURL(query, pageToken), nil)
	if err != nil {
		return nil, "", fetchTransportError(a.Source(), err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, "", fetchTransportError(a.Source(), err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fetchStatusError(a.Source(), resp.StatusCode)
	}

	var page registryPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, "", fetchDecodeError(a.Source(), err)
	}

	records := make([]domain.RawModelRecord, 0, len(page.Models))
	for _, m := range page.Models {
		records = append(records, a.toRecord(m))
	}
	return records, page.Next, nil
}

func (a *RegistryAdapter) listURL(query, pageToken string) string {
	params := url.Values{}
	params.Set("page_size", strconv.Itoa(registryPageSize))
	if query != "" {
		params.Set("q", query)
	}
	if pageToken != "" {
		params.Set("page", pageToken)
	}
	return a.baseURL + "/api/library?" + params.Encode()
}

// toRecord converts one registry entry into a raw record. Tags double as
// free-form labels here; the parameter size travels with them so search can
// match on it.
func (a *RegistryAdapter) toRecord(m registryModel) domain.RawModelRecord {
	tags := m.Tags
	if m.ParameterSize != "" {
		tags = append(append([]string(nil), tags...), m.ParameterSize)
	}

	rec := domain.RawModelRecord{
		Source:       a.Source(),
		Name:         m.Name,
		Version:      m.Digest,
		SizeBytes:    m.Size,
		Quantization: strings.ToUpper(m.Quantization),
		Format:       strings.ToLower(m.Format),
		Tags:         tags,
		Digest:       m.Digest,
		Gated:        m.Visibility != "" && m.Visibility != "public",
	}
	if m.Digest != "" {
		rec.SourceURL = a.baseURL + "/v2/" + m.Name + "/blobs/" + m.Digest
	}
	return rec
}
