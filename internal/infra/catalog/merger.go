// Package catalog builds and holds the merged model catalog.
// The merger fans out over every configured (adapter, query) pair, drains
// their pages, then filters, normalizes and de-duplicates the raw records
// into one immutable snapshot. The store publishes snapshots to readers.
package catalog

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/modelbay/modelbay/internal/domain"
	"github.com/modelbay/modelbay/internal/infra/metrics"
)

// DefaultFanout bounds how many (adapter, query) drains run concurrently.
const DefaultFanout = 4

// Merger merges records from all configured host adapters.
type Merger struct {
	adapters []domain.HostAdapter
	queries  []string
	fanout   int
}

// NewMerger creates a merger over the given adapters and query terms.
// Adapter order matters: it is the dedup tie-break (earlier source wins).
func NewMerger(adapters []domain.HostAdapter, queries []string, fanout int) *Merger {
	if fanout <= 0 {
		fanout = DefaultFanout
	}
	if len(queries) == 0 {
		queries = []string{""}
	}
	return &Merger{adapters: adapters, queries: queries, fanout: fanout}
}

// Refresh drains every (adapter, query) pair and merges the results into a
// new snapshot. Pair failures degrade the result and are logged, never fatal;
// the refresh fails only when cancelled, or with *domain.PartialRefreshError
// when every pair failed and nothing at all was obtained.
func (m *Merger) Refresh(ctx context.Context) (domain.Snapshot, error) {
	start := time.Now()

	type pair struct {
		adapter domain.HostAdapter
		query   string
	}
	var pairs []pair
	for _, a := range m.adapters {
		for _, q := range m.queries {
			pairs = append(pairs, pair{adapter: a, query: q})
		}
	}

	// Indexed result slots: no lock needed, and flattening in pair order
	// preserves the earlier-source tie-break.
	results := make([][]domain.RawModelRecord, len(pairs))
	failures := make([]error, len(pairs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(m.fanout)

	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			recs, err := drainPages(gCtx, p.adapter, p.query)
			results[i] = recs
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				log.Printf("[merger] %s query %q: %v (kept %d records)",
					p.adapter.Source(), p.query, err, len(recs))
				failures[i] = err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Cancellation aborts the whole refresh; no partial merge is applied.
		metrics.CatalogRefreshes.WithLabelValues("cancelled").Inc()
		return domain.Snapshot{}, err
	}

	var all []domain.RawModelRecord
	var causes []error
	for i := range pairs {
		all = append(all, results[i]...)
		if failures[i] != nil {
			causes = append(causes, failures[i])
		}
	}

	if len(all) == 0 && len(causes) > 0 {
		metrics.CatalogRefreshes.WithLabelValues("failed").Inc()
		return domain.Snapshot{}, &domain.PartialRefreshError{Causes: causes}
	}

	snap := mergeRecords(all)
	snap.RefreshedAt = time.Now()

	metrics.CatalogRefreshes.WithLabelValues("ok").Inc()
	metrics.CatalogRefreshDuration.Observe(time.Since(start).Seconds())
	metrics.CatalogModels.Set(float64(len(snap.Models)))

	log.Printf("[merger] refresh complete: %d records from %d pairs -> %d descriptors (%d pair failures) in %v",
		len(all), len(pairs), len(snap.Models), len(causes), time.Since(start).Round(time.Millisecond))
	return snap, nil
}

// drainPages walks one (adapter, query) listing to its end. Pages are
// strictly sequential: each next token comes from the previous response.
// Records gathered before a mid-drain failure are kept.
func drainPages(ctx context.Context, a domain.HostAdapter, query string) ([]domain.RawModelRecord, error) {
	var out []domain.RawModelRecord
	token := ""
	for {
		records, next, err := a.ListPage(ctx, query, token)
		metrics.AdapterRequests.WithLabelValues(string(a.Source()), outcomeLabel(err)).Inc()
		if err != nil {
			return out, err
		}
		out = append(out, records...)
		if next == "" {
			return out, nil
		}
		token = next
	}
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ─── Merge Pipeline ─────────────────────────────────────────────────────────

// mergeRecords filters gated records, normalizes the rest and de-duplicates
// by stable id. On an id collision the record with richer metadata wins;
// equal richness keeps the first seen, which is the earlier-listed source.
func mergeRecords(records []domain.RawModelRecord) domain.Snapshot {
	byID := make(map[string]domain.ModelDescriptor, len(records))
	order := make([]string, 0, len(records))

	for _, rec := range records {
		if rec.Gated {
			continue
		}
		d := normalize(rec)
		existing, seen := byID[d.ID]
		if !seen {
			byID[d.ID] = d
			order = append(order, d.ID)
			continue
		}
		if d.MetadataRichness() > existing.MetadataRichness() {
			byID[d.ID] = d
		}
	}

	sort.Strings(order)
	models := make([]domain.ModelDescriptor, 0, len(order))
	for _, id := range order {
		models = append(models, byID[id])
	}
	return domain.Snapshot{Models: models}
}

// normalize turns one raw record into a canonical descriptor.
func normalize(rec domain.RawModelRecord) domain.ModelDescriptor {
	tags := make([]string, 0, len(rec.Tags))
	for _, t := range rec.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	return domain.ModelDescriptor{
		ID:           domain.DescriptorID(rec.Source, rec.Name),
		Name:         rec.Name,
		Version:      rec.Version,
		Source:       rec.Source,
		SizeBytes:    rec.SizeBytes,
		Quantization: rec.Quantization,
		Runtimes:     inferRuntimes(rec.Format, rec.Quantization),
		Tags:         tags,
		SourceURL:    rec.SourceURL,
		Digest:       rec.Digest,
	}
}

// inferRuntimes maps a file format hint, or failing that a quantization tag,
// to the runtimes that can load the artifact. Records that resist inference
// stay in the catalog as unspecified rather than being dropped.
func inferRuntimes(format, quant string) []domain.Runtime {
	switch strings.ToLower(format) {
	case "gguf", "ggml":
		return []domain.Runtime{domain.RuntimeGGUF}
	case "mlx":
		return []domain.Runtime{domain.RuntimeMLX}
	case "onnx":
		return []domain.Runtime{domain.RuntimeONNX}
	}
	// Llama.cpp quantization schemes imply a GGUF artifact even when the
	// source did not declare a format.
	q := strings.ToUpper(quant)
	if strings.HasPrefix(q, "Q") || strings.HasPrefix(q, "IQ") {
		return []domain.Runtime{domain.RuntimeGGUF}
	}
	return []domain.Runtime{domain.RuntimeUnspecified}
}
