package sqlite

import (
	"database/sql"
	"strings"
	"time"

	"github.com/modelbay/modelbay/internal/domain"
)

// ─── Library Repository ─────────────────────────────────────────────────────
// Implements domain.LibraryStore: completed, verified artifacts keyed by
// model name.

// InsertArtifact records an installed artifact. Re-installing the same name
// overwrites the previous record (the file was re-downloaded and verified).
func (d *DB) InsertArtifact(m domain.InstalledModel) error {
	_, err := d.db.Exec(
		`INSERT INTO library (name, descriptor_id, path, size_bytes, digest, runtimes, installed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			descriptor_id=excluded.descriptor_id,
			path=excluded.path,
			size_bytes=excluded.size_bytes,
			digest=excluded.digest,
			runtimes=excluded.runtimes,
			installed_at=excluded.installed_at`,
		m.Name, m.DescriptorID, m.Path, m.SizeBytes, m.Digest,
		joinRuntimes(m.Runtimes), m.InstalledAt.Unix(),
	)
	return err
}

// GetArtifact retrieves one installed artifact by name.
func (d *DB) GetArtifact(name string) (*domain.InstalledModel, error) {
	row := d.db.QueryRow(
		`SELECT name, descriptor_id, path, size_bytes, digest, runtimes, installed_at
		 FROM library WHERE name = ?`, name,
	)
	return scanArtifact(row)
}

// ListArtifacts returns all installed artifacts, newest first.
func (d *DB) ListArtifacts() ([]domain.InstalledModel, error) {
	rows, err := d.db.Query(
		`SELECT name, descriptor_id, path, size_bytes, digest, runtimes, installed_at
		 FROM library ORDER BY installed_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []domain.InstalledModel
	for rows.Next() {
		m, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, *m)
	}
	return artifacts, rows.Err()
}

// DeleteArtifact removes an installed artifact record.
func (d *DB) DeleteArtifact(name string) error {
	result, err := d.db.Exec(`DELETE FROM library WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrArtifactNotFound
	}
	return nil
}

func scanArtifact(s scanner) (*domain.InstalledModel, error) {
	var m domain.InstalledModel
	var runtimes string
	var installedAt int64

	err := s.Scan(&m.Name, &m.DescriptorID, &m.Path, &m.SizeBytes,
		&m.Digest, &runtimes, &installedAt)
	if err == sql.ErrNoRows {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, err
	}

	m.Runtimes = splitRuntimes(runtimes)
	m.InstalledAt = time.Unix(installedAt, 0)
	return &m, nil
}

func joinRuntimes(rts []domain.Runtime) string {
	parts := make([]string, len(rts))
	for i, r := range rts {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

func splitRuntimes(s string) []domain.Runtime {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	rts := make([]domain.Runtime, len(parts))
	for i, p := range parts {
		rts[i] = domain.Runtime(p)
	}
	return rts
}
