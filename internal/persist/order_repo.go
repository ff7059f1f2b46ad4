package persist

import (
	"context"
	"fmt"
)

// OrderRecord is one encoded order of a session's order log.
type OrderRecord struct {
	Seq     int32
	Tick    uint64
	Payload []byte
}

// OrderLogRepo stores the order stream of a session so a desync can be
// replayed.
type OrderLogRepo struct {
	db *DB
}

func NewOrderLogRepo(db *DB) *OrderLogRepo {
	return &OrderLogRepo{db: db}
}

// Append atomically writes a batch of orders.
func (r *OrderLogRepo) Append(ctx context.Context, session int64, records []OrderRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("order log begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range records {
		if _, err := tx.Exec(ctx,
			`INSERT INTO order_log (session_id, seq, tick, payload) VALUES ($1, $2, $3, $4)`,
			session, rec.Seq, int64(rec.Tick), rec.Payload,
		); err != nil {
			return fmt.Errorf("order log insert: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// Load returns a session's orders in sequence order.
func (r *OrderLogRepo) Load(ctx context.Context, session int64) ([]OrderRecord, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT seq, tick, payload FROM order_log WHERE session_id = $1 ORDER BY seq`, session)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var rec OrderRecord
		var tick int64
		if err := rows.Scan(&rec.Seq, &tick, &rec.Payload); err != nil {
			return nil, err
		}
		rec.Tick = uint64(tick)
		out = append(out, rec)
	}
	return out, rows.Err()
}
