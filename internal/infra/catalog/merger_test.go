package catalog

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/modelbay/modelbay/internal/domain"
)

// fakeAdapter serves scripted pages per query. A token is the page index.
type fakeAdapter struct {
	source domain.Source
	pages  map[string][][]domain.RawModelRecord
	errAt  int // page index that fails; -1 = never
	err    error
	calls  atomic.Int32
}

func newFakeAdapter(source domain.Source) *fakeAdapter {
	return &fakeAdapter{
		source: source,
		pages:  make(map[string][][]domain.RawModelRecord),
		errAt:  -1,
	}
}

func (f *fakeAdapter) Source() domain.Source { return f.source }

func (f *fakeAdapter) ListPage(ctx context.Context, query, token string) ([]domain.RawModelRecord, string, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	idx := 0
	if token != "" {
		idx, _ = strconv.Atoi(token)
	}
	if f.errAt >= 0 && idx == f.errAt {
		err := f.err
		if err == nil {
			err = &domain.FetchError{Source: f.source, Kind: domain.FetchServerError, Status: 500}
		}
		return nil, "", err
	}

	pages := f.pages[query]
	if idx >= len(pages) {
		return nil, "", nil
	}
	next := ""
	if idx+1 < len(pages) {
		next = strconv.Itoa(idx + 1)
	}
	return pages[idx], next, nil
}

func rawRec(source domain.Source, name string, size int64, tags ...string) domain.RawModelRecord {
	return domain.RawModelRecord{
		Source:    source,
		Name:      name,
		SizeBytes: size,
		Format:    "gguf",
		Tags:      tags,
	}
}

// ─── Merge Scenarios ────────────────────────────────────────────────────────

func TestRefresh_MergesAcrossAdaptersWithOverlap(t *testing.T) {
	// A: 2 pages (3 + 2 records). B: 1 page (4 records), one id overlapping A.
	a := newFakeAdapter(domain.SourceHub)
	a.pages[""] = [][]domain.RawModelRecord{
		{rawRec(domain.SourceHub, "o/m1", 1), rawRec(domain.SourceHub, "o/m2", 2), rawRec(domain.SourceHub, "o/m3", 3)},
		{rawRec(domain.SourceHub, "o/m4", 4), rawRec(domain.SourceHub, "o/m5", 5)},
	}
	b := newFakeAdapter(domain.SourceHub)
	b.pages[""] = [][]domain.RawModelRecord{
		{rawRec(domain.SourceHub, "o/m5", 5), rawRec(domain.SourceHub, "o/m6", 6), rawRec(domain.SourceHub, "o/m7", 7), rawRec(domain.SourceHub, "o/m8", 8)},
	}

	m := NewMerger([]domain.HostAdapter{a, b}, nil, 0)
	snap, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if snap.Len() != 8 {
		t.Fatalf("got %d descriptors, want 8 (3+2+4-1)", snap.Len())
	}

	seen := make(map[string]bool)
	for _, d := range snap.Models {
		if seen[d.ID] {
			t.Errorf("duplicate id %q in snapshot", d.ID)
		}
		seen[d.ID] = true
	}
}

func TestRefresh_FiltersGated(t *testing.T) {
	gated := rawRec(domain.SourceHub, "o/secret", 1)
	gated.Gated = true

	a := newFakeAdapter(domain.SourceHub)
	a.pages[""] = [][]domain.RawModelRecord{{gated, rawRec(domain.SourceHub, "o/open", 2)}}

	m := NewMerger([]domain.HostAdapter{a}, nil, 0)
	snap, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if snap.Len() != 1 {
		t.Fatalf("got %d descriptors, want 1", snap.Len())
	}
	if snap.Models[0].Name != "o/open" {
		t.Errorf("kept %q, want o/open", snap.Models[0].Name)
	}
}

func TestRefresh_DedupPrefersRicherMetadata(t *testing.T) {
	sparse := rawRec(domain.SourceHub, "o/model", 0) // no size, no tags
	sparse.Tags = nil
	rich := rawRec(domain.SourceHub, "o/model", 4096, "chat", "tiny")
	rich.Digest = "sha256:aa"

	a := newFakeAdapter(domain.SourceHub)
	a.pages[""] = [][]domain.RawModelRecord{{sparse}}
	b := newFakeAdapter(domain.SourceHub)
	b.pages[""] = [][]domain.RawModelRecord{{rich}}

	m := NewMerger([]domain.HostAdapter{a, b}, nil, 0)
	snap, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if snap.Len() != 1 {
		t.Fatalf("got %d descriptors, want 1", snap.Len())
	}
	if snap.Models[0].SizeBytes != 4096 {
		t.Errorf("dedup kept the sparse record: %+v", snap.Models[0])
	}
}

func TestRefresh_DedupTieKeepsEarlierSource(t *testing.T) {
	first := rawRec(domain.SourceHub, "o/model", 100, "chat")
	first.Version = "from-first"
	second := rawRec(domain.SourceHub, "o/model", 100, "chat")
	second.Version = "from-second"

	a := newFakeAdapter(domain.SourceHub)
	a.pages[""] = [][]domain.RawModelRecord{{first}}
	b := newFakeAdapter(domain.SourceHub)
	b.pages[""] = [][]domain.RawModelRecord{{second}}

	m := NewMerger([]domain.HostAdapter{a, b}, nil, 0)
	snap, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if snap.Models[0].Version != "from-first" {
		t.Errorf("tie-break kept %q, want from-first", snap.Models[0].Version)
	}
}

func TestRefresh_Idempotent(t *testing.T) {
	a := newFakeAdapter(domain.SourceHub)
	a.pages[""] = [][]domain.RawModelRecord{
		{rawRec(domain.SourceHub, "o/m1", 1, "x"), rawRec(domain.SourceHub, "o/m2", 2)},
	}

	m := NewMerger([]domain.HostAdapter{a}, nil, 0)
	first, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	second, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if !reflect.DeepEqual(first.Models, second.Models) {
		t.Errorf("unchanged upstream produced different snapshots:\n%+v\n%+v", first.Models, second.Models)
	}
}

func TestRefresh_UnknownSizeRetained(t *testing.T) {
	a := newFakeAdapter(domain.SourceHub)
	a.pages[""] = [][]domain.RawModelRecord{{rawRec(domain.SourceHub, "o/nosize", 0)}}

	m := NewMerger([]domain.HostAdapter{a}, nil, 0)
	snap, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if snap.Len() != 1 {
		t.Fatalf("record with unknown size was dropped")
	}
	if v := Score(snap.Models[0], domain.ResourceProfile{TotalMemoryBytes: 1 << 34}); v != domain.VerdictUnknown {
		t.Errorf("verdict = %s, want unknown", v)
	}
}

// ─── Failure Policy ─────────────────────────────────────────────────────────

func TestRefresh_OneFailingAdapterDegrades(t *testing.T) {
	good := newFakeAdapter(domain.SourceHub)
	good.pages[""] = [][]domain.RawModelRecord{{rawRec(domain.SourceHub, "o/ok", 1)}}
	bad := newFakeAdapter(domain.SourceRegistry)
	bad.errAt = 0

	m := NewMerger([]domain.HostAdapter{good, bad}, nil, 0)
	snap, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh should degrade, got error: %v", err)
	}
	if snap.Len() != 1 {
		t.Errorf("got %d descriptors, want 1 from the healthy adapter", snap.Len())
	}
}

func TestRefresh_MidDrainFailureKeepsEarlierPages(t *testing.T) {
	a := newFakeAdapter(domain.SourceHub)
	a.pages[""] = [][]domain.RawModelRecord{
		{rawRec(domain.SourceHub, "o/m1", 1), rawRec(domain.SourceHub, "o/m2", 2)},
		{rawRec(domain.SourceHub, "o/m3", 3)},
	}
	a.errAt = 1 // page 2 fails

	m := NewMerger([]domain.HostAdapter{a}, nil, 0)
	snap, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if snap.Len() != 2 {
		t.Errorf("got %d descriptors, want the 2 from page 1", snap.Len())
	}
}

func TestRefresh_AllFailedIsPartialRefreshError(t *testing.T) {
	a := newFakeAdapter(domain.SourceHub)
	a.errAt = 0
	b := newFakeAdapter(domain.SourceRegistry)
	b.errAt = 0

	m := NewMerger([]domain.HostAdapter{a, b}, nil, 0)
	_, err := m.Refresh(context.Background())

	var pre *domain.PartialRefreshError
	if !errors.As(err, &pre) {
		t.Fatalf("err = %v, want PartialRefreshError", err)
	}
	if len(pre.Causes) != 2 {
		t.Errorf("causes = %d, want 2", len(pre.Causes))
	}
}

func TestRefresh_EmptyUpstreamIsNotAnError(t *testing.T) {
	a := newFakeAdapter(domain.SourceHub) // no pages scripted: empty listing
	m := NewMerger([]domain.HostAdapter{a}, nil, 0)
	snap, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("empty healthy listing should not fail: %v", err)
	}
	if snap.Len() != 0 {
		t.Errorf("got %d descriptors, want 0", snap.Len())
	}
}

func TestRefresh_Cancelled(t *testing.T) {
	a := newFakeAdapter(domain.SourceHub)
	a.pages[""] = [][]domain.RawModelRecord{{rawRec(domain.SourceHub, "o/m1", 1)}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMerger([]domain.HostAdapter{a}, nil, 0)
	_, err := m.Refresh(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// ─── Normalization ──────────────────────────────────────────────────────────

func TestInferRuntimes(t *testing.T) {
	cases := []struct {
		format, quant string
		want          domain.Runtime
	}{
		{"gguf", "", domain.RuntimeGGUF},
		{"GGUF", "Q4_K_M", domain.RuntimeGGUF},
		{"mlx", "", domain.RuntimeMLX},
		{"onnx", "", domain.RuntimeONNX},
		{"", "Q5_K_M", domain.RuntimeGGUF},
		{"", "IQ2_XS", domain.RuntimeGGUF},
		{"safetensors", "", domain.RuntimeUnspecified},
		{"", "", domain.RuntimeUnspecified},
	}
	for _, tc := range cases {
		got := inferRuntimes(tc.format, tc.quant)
		if len(got) != 1 || got[0] != tc.want {
			t.Errorf("inferRuntimes(%q, %q) = %v, want [%s]", tc.format, tc.quant, got, tc.want)
		}
	}
}

func TestNormalize_StableID(t *testing.T) {
	rec := rawRec(domain.SourceHub, "TheOrg/Mixed-Case", 1)
	d := normalize(rec)
	if d.ID != "hub:theorg/mixed-case" {
		t.Errorf("ID = %q, want hub:theorg/mixed-case", d.ID)
	}
	if d.Name != "TheOrg/Mixed-Case" {
		t.Errorf("Name should keep original casing, got %q", d.Name)
	}
}
