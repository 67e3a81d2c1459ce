package sqlite

import (
	"database/sql"
	"time"

	"github.com/modelbay/modelbay/internal/domain"
)

// ─── Transfer Repository ────────────────────────────────────────────────────
// Implements domain.TransferStore. One row per transfer, keyed by
// destination path; the scheduler persists on progress ticks and state
// transitions, and reloads non-terminal rows on startup.

// SaveTransfer inserts or updates a transfer's resume state.
func (d *DB) SaveTransfer(st domain.TransferState) error {
	_, err := d.db.Exec(
		`INSERT INTO transfers (dest_path, id, descriptor_id, name, source_url,
			bytes_received, total_bytes, resume_token, expected_digest,
			status, last_error, enqueued_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(dest_path) DO UPDATE SET
			id=excluded.id,
			descriptor_id=excluded.descriptor_id,
			name=excluded.name,
			source_url=excluded.source_url,
			bytes_received=excluded.bytes_received,
			total_bytes=excluded.total_bytes,
			resume_token=excluded.resume_token,
			expected_digest=excluded.expected_digest,
			status=excluded.status,
			last_error=excluded.last_error,
			enqueued_at=excluded.enqueued_at,
			updated_at=excluded.updated_at`,
		st.DestPath, st.ID, st.DescriptorID, st.Name, st.SourceURL,
		st.BytesReceived, st.TotalBytes, st.ResumeToken, st.ExpectedDigest,
		string(st.Status), st.LastError, st.EnqueuedAt.Unix(), st.UpdatedAt.Unix(),
	)
	return err
}

// DeleteTransfer removes a transfer's resume state.
func (d *DB) DeleteTransfer(destPath string) error {
	_, err := d.db.Exec(`DELETE FROM transfers WHERE dest_path = ?`, destPath)
	return err
}

// ListTransfers returns all persisted transfers, oldest enqueue first so a
// reload preserves admission order.
func (d *DB) ListTransfers() ([]domain.TransferState, error) {
	rows, err := d.db.Query(
		`SELECT dest_path, id, descriptor_id, name, source_url,
			bytes_received, total_bytes, resume_token, expected_digest,
			status, last_error, enqueued_at, updated_at
		 FROM transfers ORDER BY enqueued_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []domain.TransferState
	for rows.Next() {
		st, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, *st)
	}
	return transfers, rows.Err()
}

func scanTransfer(s scanner) (*domain.TransferState, error) {
	var st domain.TransferState
	var status string
	var enqueuedAt, updatedAt int64

	err := s.Scan(&st.DestPath, &st.ID, &st.DescriptorID, &st.Name, &st.SourceURL,
		&st.BytesReceived, &st.TotalBytes, &st.ResumeToken, &st.ExpectedDigest,
		&status, &st.LastError, &enqueuedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, err
	}

	st.Status = domain.TransferStatus(status)
	st.EnqueuedAt = time.Unix(enqueuedAt, 0)
	st.UpdatedAt = time.Unix(updatedAt, 0)
	return &st, nil
}
