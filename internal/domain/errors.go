package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure, no infrastructure dependency.

var (
	// Catalog errors
	ErrModelNotFound = errors.New("model not found in catalog")
	ErrCatalogEmpty  = errors.New("catalog is empty, run a refresh first")

	// Transfer errors
	ErrTransferNotFound  = errors.New("transfer not found")
	ErrTransferTerminal  = errors.New("transfer already reached a terminal state")
	ErrInvalidTransition = errors.New("invalid transfer state transition")
	ErrDestinationInUse  = errors.New("destination path owned by another transfer")

	// Library errors
	ErrArtifactNotFound = errors.New("artifact not installed")
	ErrArtifactExists   = errors.New("artifact already installed")
)

// ─── Fetch Errors (adapter layer) ───────────────────────────────────────────

// FetchKind classifies a host adapter failure.
type FetchKind string

const (
	FetchRateLimited        FetchKind = "rateLimited"
	FetchNotFound           FetchKind = "notFound"
	FetchServerError        FetchKind = "serverError"
	FetchMalformedResponse  FetchKind = "malformedResponse"
	FetchNetworkUnreachable FetchKind = "networkUnreachable"
)

// FetchError is a typed failure from one adapter request. The merger logs
// these per query and keeps going; they never abort a whole refresh.
type FetchError struct {
	Source Source
	Kind   FetchKind
	Status int   // HTTP status when one was received
	Err    error // underlying cause, may be nil
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Source, e.Kind, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchKind reports whether err is a FetchError of the given kind.
func IsFetchKind(err error, kind FetchKind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == kind
}

// ─── Refresh Errors (merger layer) ──────────────────────────────────────────

// PartialRefreshError is raised only when every (adapter, query) pair of a
// refresh produced zero records. Individual pair failures merely degrade the
// snapshot and are logged, not surfaced.
type PartialRefreshError struct {
	Causes []error
}

func (e *PartialRefreshError) Error() string {
	return fmt.Sprintf("catalog refresh obtained no records from any source (%d failures)", len(e.Causes))
}

// ─── Transfer Errors (download layer) ───────────────────────────────────────

// TransferErrKind classifies why a transfer failed.
type TransferErrKind string

const (
	TransferNetworkError        TransferErrKind = "networkError"
	TransferDigestMismatch      TransferErrKind = "digestMismatch"
	TransferInsufficientStorage TransferErrKind = "insufficientStorage"
	TransferServerRejectedRange TransferErrKind = "serverRejectedRange"
)

// TransferError is attached to a failed transfer for user-visible diagnosis.
// A networkError resumes from the last offset on retry; digestMismatch and
// serverRejectedRange restart from zero.
type TransferError struct {
	Kind TransferErrKind
	Err  error
}

func (e *TransferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transfer failed: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("transfer failed: %s", e.Kind)
}

func (e *TransferError) Unwrap() error { return e.Err }

// ResumableAfter reports whether a retry may continue from the last byte
// offset. Digest mismatches and rejected ranges must restart clean.
func (e *TransferError) ResumableAfter() bool {
	return e.Kind == TransferNetworkError
}

// IsTransferKind reports whether err is a TransferError of the given kind.
func IsTransferKind(err error, kind TransferErrKind) bool {
	var te *TransferError
	return errors.As(err, &te) && te.Kind == kind
}
