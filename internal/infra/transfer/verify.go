package transfer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/modelbay/modelbay/internal/domain"
	"github.com/modelbay/modelbay/internal/infra/metrics"
)

// Verifier checks downloaded artifacts against their expected digests.
// It streams the file through SHA-256; it never loads the artifact into
// memory. The caller decides what to do with a corrupt file.
type Verifier struct{}

// NewVerifier creates a Verifier.
func NewVerifier() *Verifier { return &Verifier{} }

// Digest computes the content digest of a file as "sha256:<hex>".
func (v *Verifier) Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

// Verify compares the file at path against want, which is either
// "sha256:<hex>" or bare hex. A mismatch is reported as a
// *domain.TransferError with kind digestMismatch carrying got and want.
func (v *Verifier) Verify(path, want string) error {
	got, err := v.Digest(path)
	if err != nil {
		return err
	}
	if !digestEqual(got, want) {
		metrics.VerifyFailures.Inc()
		return &domain.TransferError{
			Kind: domain.TransferDigestMismatch,
			Err:  fmt.Errorf("got %s, want %s", got, normalizeWant(want)),
		}
	}
	return nil
}

func digestEqual(got, want string) bool {
	return strings.EqualFold(normalizeWant(got), normalizeWant(want))
}

func normalizeWant(d string) string {
	d = strings.TrimSpace(d)
	if !strings.Contains(d, ":") {
		d = "sha256:" + d
	}
	return strings.ToLower(d)
}
