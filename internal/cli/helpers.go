package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/modelbay/modelbay/internal/daemon"
	"github.com/modelbay/modelbay/internal/domain"
)

// findModel resolves a model reference against the catalog, refreshing first
// when no snapshot exists yet.
func findModel(d *daemon.Daemon, ref string) (domain.ModelDescriptor, error) {
	if _, ok := d.Catalog.LastRefresh(); !ok {
		fmt.Fprintln(os.Stderr, "catalog empty, refreshing...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := d.Catalog.Refresh(ctx); err != nil {
			return domain.ModelDescriptor{}, err
		}
	}

	desc, ok := d.Catalog.Find(ref)
	if !ok {
		return domain.ModelDescriptor{}, fmt.Errorf("%s: %w", ref, domain.ErrModelNotFound)
	}
	return desc, nil
}

// resolveTransfer accepts a transfer id, a unique id prefix, or a model
// reference and returns the matching transfer.
func resolveTransfer(d *daemon.Daemon, ref string) (domain.TransferState, error) {
	if st, err := d.Scheduler.Get(ref); err == nil {
		return st, nil
	}

	lowered := strings.ToLower(ref)
	var prefixed domain.TransferState
	prefixes := 0
	for _, st := range d.Scheduler.States() {
		if st.DescriptorID == lowered || strings.EqualFold(st.Name, ref) {
			return st, nil
		}
		if strings.HasPrefix(st.ID, ref) {
			prefixed = st
			prefixes++
		}
	}
	if prefixes == 1 {
		return prefixed, nil
	}
	if prefixes > 1 {
		return domain.TransferState{}, fmt.Errorf("%s matches %d transfers, use a longer id", ref, prefixes)
	}
	return domain.TransferState{}, fmt.Errorf("%s: %w", ref, domain.ErrTransferNotFound)
}

// joinRuntimes renders a runtime list for table cells.
func joinRuntimes(runtimes []domain.Runtime) string {
	if len(runtimes) == 0 {
		return "-"
	}
	parts := make([]string, len(runtimes))
	for i, rt := range runtimes {
		parts[i] = string(rt)
	}
	return strings.Join(parts, ",")
}

// sizeCell renders a byte count for table cells, with "?" for unknown.
func sizeCell(v int64) string {
	if v <= 0 {
		return "?"
	}
	return domain.HumanSize(v)
}
