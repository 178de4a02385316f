package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefinitionRepository stores configuration records as JSONB rows keyed by
// (data_type, id). Disabled rows are kept but never loaded.
type DefinitionRepository struct {
	pool *pgxpool.Pool
}

func NewDefinitionRepository(pool *pgxpool.Pool) *DefinitionRepository {
	return &DefinitionRepository{pool: pool}
}

// LoadDefinitions returns the enabled payloads of dataType keyed by id.
func (r *DefinitionRepository) LoadDefinitions(ctx context.Context, dataType string) (map[string][]byte, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, payload FROM definitions
		 WHERE data_type = $1 AND enabled
		 ORDER BY id`, dataType)
	if err != nil {
		return nil, fmt.Errorf("loading %s definitions: %w", dataType, err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scanning %s definition: %w", dataType, err)
		}
		out[id] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s definitions: %w", dataType, err)
	}
	return out, nil
}

// Ping checks that the database is reachable.
func (r *DefinitionRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Upsert inserts or replaces one definition. payload must be a JSON document.
func (r *DefinitionRepository) Upsert(ctx context.Context, dataType, id string, payload []byte, enabled bool) error {
	if !json.Valid(payload) {
		return fmt.Errorf("upserting %s/%s: payload is not valid JSON", dataType, id)
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO definitions (data_type, id, payload, enabled, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (data_type, id) DO UPDATE
		 SET payload = EXCLUDED.payload, enabled = EXCLUDED.enabled, updated_at = now()`,
		dataType, id, payload, enabled,
	)
	if err != nil {
		return fmt.Errorf("upserting %s/%s: %w", dataType, id, err)
	}
	return nil
}

// SetEnabled toggles a definition without touching its payload.
// Returns false if the row does not exist.
func (r *DefinitionRepository) SetEnabled(ctx context.Context, dataType, id string, enabled bool) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE definitions SET enabled = $3, updated_at = now()
		 WHERE data_type = $1 AND id = $2`,
		dataType, id, enabled,
	)
	if err != nil {
		return false, fmt.Errorf("updating %s/%s: %w", dataType, id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes a definition. Returns false if the row did not exist.
func (r *DefinitionRepository) Delete(ctx context.Context, dataType, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM definitions WHERE data_type = $1 AND id = $2`, dataType, id)
	if err != nil {
		return false, fmt.Errorf("deleting %s/%s: %w", dataType, id, err)
	}
	return tag.RowsAffected() > 0, nil
}
