package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// RawModelRecord is one listing entry as an adapter saw it, before
// normalization. Field meanings are uniform; field coverage varies by source.
type RawModelRecord struct {
	Source       Source
	Name         string // "owner/name" for hub sources, plain name for registries
	Version      string // upstream revision or digest, may be empty
	SizeBytes    int64  // 0 = not declared by the source
	Quantization string
	Format       string // file format hint: "gguf", "safetensors", "mlx", ...
	Tags         []string
	SourceURL    string
	Digest       string
	Gated        bool
}

// HostAdapter turns one external model source's paginated listing protocol
// into a uniform record stream. Implemented by infra/hosts; consumed by the
// catalog merger.
type HostAdapter interface {
	// Source identifies which registry this adapter talks to.
	Source() Source

	// ListPage fetches one page of records for a source-specific query.
	// An empty pageToken requests the first page. An empty next token means
	// end of listing; an empty page with no next token is not an error.
	// Failures are reported as *FetchError.
	ListPage(ctx context.Context, query, pageToken string) (records []RawModelRecord, next string, err error)
}

// ModelRuntime is the opaque inference collaborator. It receives completed,
// verified artifacts; what it does with them is out of scope here.
type ModelRuntime interface {
	// ModelReady hands the runtime a verified local file path plus the
	// originating descriptor metadata.
	ModelReady(ctx context.Context, m InstalledModel) error
}

// TransferStore abstracts persistent resume state, keyed by destination path.
// Implemented by infra/sqlite.
type TransferStore interface {
	SaveTransfer(st TransferState) error
	DeleteTransfer(destPath string) error
	ListTransfers() ([]TransferState, error)
}

// LibraryStore abstracts persistent installed-artifact records.
// Implemented by infra/sqlite.
type LibraryStore interface {
	InsertArtifact(m InstalledModel) error
	GetArtifact(name string) (*InstalledModel, error)
	ListArtifacts() ([]InstalledModel, error)
	DeleteArtifact(name string) error
}
