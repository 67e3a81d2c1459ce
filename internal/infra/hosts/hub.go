package hosts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/modelbay/modelbay/internal/domain"
)

// ─── Hub Adapter ────────────────────────────────────────────────────────────
// Talks to a Hugging-Face-style hub: GET {base}/api/models returns a JSON
// array of repository records; the next page is announced via a
// Link: <...cursor=...>; rel="next" response header.

// DefaultHubURL is the public hub endpoint.
const DefaultHubURL = "https://huggingface.co"

const hubPageSize = 100

// HubAdapter lists models from a hub-style source.
type HubAdapter struct {
	baseURL string
	client  *http.Client
	th      *throttle
}

// NewHubAdapter creates a hub adapter. interval <= 0 selects the default
// self-throttle of DefaultRequestInterval.
func NewHubAdapter(baseURL string, interval time.Duration) *HubAdapter {
	if baseURL == "" {
		baseURL = DefaultHubURL
	}
	return &HubAdapter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  newHTTPClient(),
		th:      newThrottle(interval),
	}
}

// Source identifies this adapter.
func (a *HubAdapter) Source() domain.Source { return domain.SourceHub }

// hubModel is the hub's listing record shape.
type hubModel struct {
	ID           string       `json:"id"` // "owner/name"
	Author       string       `json:"author"`
	SHA          string       `json:"sha"`
	LastModified string       `json:"lastModified"`
	Private      bool         `json:"private"`
	Gated        gatedFlag    `json:"gated"`
	Tags         []string     `json:"tags"`
	Siblings     []hubSibling `json:"siblings"`
}

// hubSibling is one file inside a hub repository. Size and LFS metadata are
// present only when the hub includes file metadata in the listing.
type hubSibling struct {
	Rfilename string  `json:"rfilename"`
	Size      int64   `json:"size,omitempty"`
	LFS       *hubLFS `json:"lfs,omitempty"`
}

type hubLFS struct {
	OID  string `json:"oid"`
	Size int64  `json:"size"`
}

// gatedFlag models the hub's mixed-type gated field: JSON false, or a string
// gating mode ("auto", "manual"). Anything but an explicit false is gated.
type gatedFlag bool

func (g *gatedFlag) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*g = gatedFlag(t)
	case nil:
		*g = false
	case string:
		*g = gatedFlag(t != "" && !strings.EqualFold(t, "false"))
	default:
		*g = true
	}
	return nil
}

// ListPage fetches one page of hub records.
func (a *HubAdapter) ListPage(ctx context.Context, query, pageToken string) ([]domain.RawModelRecord, string, error) {
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

	var models []hubModel
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return nil, "", fetchDecodeError(a.Source(), err)
	}

	records := make([]domain.RawModelRecord, 0, len(models))
	for _, m := range models {
		records = append(records, a.toRecord(m))
	}
	return records, parseNextCursor(resp.Header.Get("Link")), nil
}

// listURL builds the listing request. A query of the form "owner:NAME"
// filters by author; any other term is a free-text search.
func (a *HubAdapter) listURL(query, pageToken string) string {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(hubPageSize))
	params.Set("full", "true")
	if owner, ok := strings.CutPrefix(query, "owner:"); ok {
		params.Set("author", owner)
	} else if query != "" {
		params.Set("search", query)
	}
	if pageToken != "" {
		params.Set("cursor", pageToken)
	}
	return a.baseURL + "/api/models?" + params.Encode()
}

// toRecord converts one hub repository into a raw record. The primary
// artifact is the largest recognized weight file; a repository without one
// still produces a record, it is just not downloadable.
func (a *HubAdapter) toRecord(m hubModel) domain.RawModelRecord {
	file, size, digest := primaryArtifact(m.Siblings)

	rec := domain.RawModelRecord{
		Source:    a.Source(),
		Name:      m.ID,
		Version:   m.SHA,
		SizeBytes: size,
		Tags:      m.Tags,
		Digest:    digest,
		Gated:     m.Private || bool(m.Gated),
	}
	if file != "" {
		rec.Format = strings.TrimPrefix(strings.ToLower(path.Ext(file)), ".")
		rec.Quantization = quantFromFilename(file)
		rec.SourceURL = a.baseURL + "/" + m.ID + "/resolve/main/" + file
	}
	return rec
}

// weightExts are the file extensions that count as model weights.
var weightExts = map[string]bool{
	".gguf":        true,
	".safetensors": true,
	".bin":         true,
	".onnx":        true,
}

// primaryArtifact picks the weight file a download would fetch: the largest
// known weight sibling, falling back to the first one when no sizes are
// published.
func primaryArtifact(siblings []hubSibling) (file string, size int64, digest string) {
	for _, s := range siblings {
		ext := strings.ToLower(path.Ext(s.Rfilename))
		if !weightExts[ext] {
			continue
		}
		sz := s.Size
		var dg string
		if s.LFS != nil {
			if sz == 0 {
				sz = s.LFS.Size
			}
			dg = normalizeDigest(s.LFS.OID)
		}
		if file == "" || sz > size {
			file, size, digest = s.Rfilename, sz, dg
		}
	}
	return file, size, digest
}

// normalizeDigest coerces a hub LFS oid into "sha256:<hex>" form.
func normalizeDigest(oid string) string {
	if oid == "" {
		return ""
	}
	if strings.Contains(oid, ":") {
		return oid
	}
	return "sha256:" + oid
}

// quantPattern matches quantization tokens inside artifact filenames:
// Q4_K_M, IQ2_XS, Q8_0, F16, BF16 and friends.
var quantPattern = regexp.MustCompile(`^(?i)(i?q[0-9](_[0-9a-z]+)*|bf16|fp?16|fp?32)$`)

// quantFromFilename extracts the quantization tag from an artifact filename.
// Tokens are split on dots, dashes and spaces; underscores stay inside a
// token because tags like Q4_K_M depend on them.
func quantFromFilename(name string) string {
	base := strings.TrimSuffix(name, path.Ext(name))
	tokens := strings.FieldsFunc(base, func(r rune) bool {
		return r == '.' || r == '-' || r == ' ' || r == '/'
	})
	for _, tok := range tokens {
		if quantPattern.MatchString(tok) {
			return strings.ToUpper(tok)
		}
	}
	return ""
}

// parseNextCursor extracts the next-page cursor from a Link response header:
//
//	<https://hub/api/models?cursor=abc&limit=100>; rel="next"
func parseNextCursor(link string) string {
	for _, part := range strings.Split(link, ",") {
		segs := strings.Split(part, ";")
		if len(segs) < 2 {
			continue
		}
		isNext := false
		for _, attr := range segs[1:] {
			if strings.TrimSpace(attr) == `rel="next"` {
				isNext = true
				break
			}
		}
		if !isNext {
			continue
		}
		raw := strings.Trim(strings.TrimSpace(segs[0]), "<>")
		u, err := url.Parse(raw)
		if err != nil {
			return ""
		}
		return u.Query().Get("cursor")
	}
	return ""
}
