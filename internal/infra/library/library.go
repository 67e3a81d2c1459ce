// Package library manages the installed-artifact collection: completed,
// verified downloads recorded in the store and announced to the runtime
// collaborator.
package library

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/modelbay/modelbay/internal/domain"
)

// Resolver looks up descriptor metadata for an installing artifact.
// Satisfied by the catalog store.
type Resolver interface {
	Lookup(id string) (domain.ModelDescriptor, bool)
}

// Manager owns the installed-model records and their on-disk artifacts.
type Manager struct {
	store    domain.LibraryStore
	resolver Resolver
	runtime  domain.ModelRuntime
}

// NewManager creates a library manager. The runtime collaborator defaults to
// a logging no-op until SetRuntime wires a real one.
func NewManager(store domain.LibraryStore, resolver Resolver) *Manager {
	return &Manager{store: store, resolver: resolver, runtime: noopRuntime{}}
}

// SetRuntime wires the inference collaborator that receives installed
// artifacts. Set during wiring.
func (m *Manager) SetRuntime(rt domain.ModelRuntime) {
	if rt != nil {
		m.runtime = rt
	}
}

// Install records a completed transfer as an installed artifact and hands it
// to the runtime. A runtime refusal is logged, not propagated: the artifact
// is on disk and verified regardless of what inference does with it.
func (m *Manager) Install(ctx context.Context, st domain.TransferState) error {
	installed := domain.InstalledModel{
		DescriptorID: st.DescriptorID,
		Name:         st.Name,
		Path:         st.DestPath,
		SizeBytes:    st.BytesReceived,
		Digest:       st.ExpectedDigest,
		InstalledAt:  time.Now(),
	}
	if m.resolver != nil {
		// The catalog may have been replaced since enqueue; a vanished
		// descriptor just means no runtime metadata to attach.
		if d, ok := m.resolver.Lookup(st.DescriptorID); ok {
			installed.Runtimes = d.Runtimes
		}
	}

	if err := m.store.InsertArtifact(installed); err != nil {
		return fmt.Errorf("record artifact %s: %w", st.Name, err)
	}
	log.Printf("[library] installed %s (%s)", installed.Name, domain.HumanSize(installed.SizeBytes))

	if err := m.runtime.ModelReady(ctx, installed); err != nil {
		log.Printf("[library] runtime rejected %s: %v", installed.Name, err)
	}
	return nil
}

// Get returns one installed artifact by model name.
func (m *Manager) Get(name string) (domain.InstalledModel, error) {
	art, err := m.store.GetArtifact(name)
	if err != nil {
		return domain.InstalledModel{}, err
	}
	if art == nil {
		return domain.InstalledModel{}, fmt.Errorf("%s: %w", name, domain.ErrArtifactNotFound)
	}
	return *art, nil
}

// List returns all installed artifacts, newest first.
func (m *Manager) List() ([]domain.InstalledModel, error) {
	return m.store.ListArtifacts()
}

// Remove deletes an installed artifact: the record first, then the file.
// A file that is already gone does not fail the removal.
func (m *Manager) Remove(name string) error {
	art, err := m.store.GetArtifact(name)
	if err != nil {
		return err
	}
	if art == nil {
		return fmt.Errorf("%s: %w", name, domain.ErrArtifactNotFound)
	}
	if err := m.store.DeleteArtifact(name); err != nil {
		return err
	}
	if err := os.Remove(art.Path); err != nil && !os.IsNotExist(err) {
		log.Printf("[library] remove artifact file %s: %v", art.Path, err)
	}
	log.Printf("[library] removed %s", name)
	return nil
}

// noopRuntime stands in until a real inference collaborator is wired.
type noopRuntime struct{}

func (noopRuntime) ModelReady(_ context.Context, m domain.InstalledModel) error {
	log.Printf("[library] model ready: %s at %s", m.Name, m.Path)
	return nil
}
