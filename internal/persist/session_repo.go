package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// SessionRow is one recorded simulation run.
type SessionRow struct {
	ID          int64
	MapName     string
	Scenario    string
	StartedAt   time.Time
	EndedAt     *time.Time
	FinalTick   *int64
	FinalDigest *string
}

type SessionRepo struct {
	db *DB
}

func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create opens a new session and returns its id.
func (r *SessionRepo) Create(ctx context.Context, mapName, scenario string) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO sessions (map_name, scenario) VALUES ($1, $2) RETURNING id`,
		mapName, scenario,
	).Scan(&id)
	return id, err
}

// Finish stores the last tick and digest of a session.
func (r *SessionRepo) Finish(ctx context.Context, id int64, tick uint64, digest string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE sessions SET ended_at = now(), final_tick = $2, final_digest = $3 WHERE id = $1`,
		id, int64(tick), digest,
	)
	return err
}

// Load returns a session, or nil if it does not exist.
func (r *SessionRepo) Load(ctx context.Context, id int64) (*SessionRow, error) {
	row := &SessionRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, map_name, scenario, started_at, ended_at, final_tick, final_digest
		 FROM sessions WHERE id = $1`, id,
	).Scan(&row.ID, &row.MapName, &row.Scenario, &row.StartedAt, &row.EndedAt, &row.FinalTick, &row.FinalDigest)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}
