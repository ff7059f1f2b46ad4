package persist

import (
	"context"
	"fmt"
)

// DigestRow is the state digest of a session at one tick.
type DigestRow struct {
	Tick   uint64
	Digest string
}

type DigestRepo struct {
	db *DB
}

func NewDigestRepo(db *DB) *DigestRepo {
	return &DigestRepo{db: db}
}

// RecordBatch writes digests in a single transaction. Re-recording a tick
// overwrites it.
func (r *DigestRepo) RecordBatch(ctx context.Context, session int64, rows []DigestRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("digest begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, d := range rows {
		if _, err := tx.Exec(ctx,
			`INSERT INTO state_digests (session_id, tick, digest) VALUES ($1, $2, $3)
			 ON CONFLICT (session_id, tick) DO UPDATE SET digest = EXCLUDED.digest`,
			session, int64(d.Tick), d.Digest,
		); err != nil {
			return fmt.Errorf("digest insert: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// Load returns all digests of a session keyed by tick.
func (r *DigestRepo) Load(ctx context.Context, session int64) (map[uint64]string, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT tick, digest FROM state_digests WHERE session_id = $1 ORDER BY tick`, session)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uint64]string)
	for rows.Next() {
		var tick int64
		var digest string
		if err := rows.Scan(&tick, &digest); err != nil {
			return nil, err
		}
		out[uint64(tick)] = digest
	}
	return out, rows.Err()
}
