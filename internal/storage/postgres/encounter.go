package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/henhouse/internal/game/session"
	"github.com/cory-johannsen/henhouse/internal/game/spawn"
)

// ErrOutcomeNotTerminal is returned when recording an encounter whose outcome
// is not a terminal state.
var ErrOutcomeNotTerminal = errors.New("encounter outcome is not terminal")

// EncounterRepository stores finished predator encounters.
type EncounterRepository struct {
	db *pgxpool.Pool
}

// NewEncounterRepository creates an EncounterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewEncounterRepository(db *pgxpool.Pool) *EncounterRepository {
	return &EncounterRepository{db: db}
}

const insertEncounter = `INSERT INTO encounters
	(session_id, predator_id, species, player_id, outcome, spawned_at, ended_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (session_id, predator_id) DO NOTHING`

// Record stores e. Recording the same predator of the same session twice is a no-op.
//
// Precondition: e.Outcome must be terminal.
// Postcondition: Returns true if a new row was written.
func (r *EncounterRepository) Record(ctx context.Context, e session.Encounter) (bool, error) {
	if !e.Outcome.IsTerminal() {
		return false, fmt.Errorf("recording predator %s: %w", e.PredatorID, ErrOutcomeNotTerminal)
	}
	tag, err := r.db.Exec(ctx, insertEncounter, encounterArgs(e)...)
	if err != nil {
		return false, fmt.Errorf("inserting encounter: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordBatch stores every encounter in one round trip.
//
// Precondition: every outcome must be terminal.
// Postcondition: Returns the number of new rows written.
func (r *EncounterRepository) RecordBatch(ctx context.Context, encounters []session.Encounter) (int, error) {
	if len(encounters) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, e := range encounters {
		if !e.Outcome.IsTerminal() {
			return 0, fmt.Errorf("recording predator %s: %w", e.PredatorID, ErrOutcomeNotTerminal)
		}
		batch.Queue(insertEncounter, encounterArgs(e)...)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for range encounters {
		tag, err := results.Exec()
		if err != nil {
			return written, fmt.Errorf("inserting encounter batch: %w", err)
		}
		written += int(tag.RowsAffected())
	}
	return written, nil
}

// ListByPlayer returns the most recent encounters that targeted playerID,
// newest first.
//
// Precondition: limit > 0.
func (r *EncounterRepository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]session.Encounter, error) {
	rows, err := r.db.Query(ctx,
		`SELECT session_id, predator_id, species, player_id, outcome, spawned_at, ended_at
		 FROM encounters
		 WHERE player_id = $1
		 ORDER BY ended_at DESC, id DESC
		 LIMIT $2`,
		playerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying encounters: %w", err)
	}
	defer rows.Close()

	var out []session.Encounter
	for rows.Next() {
		var (
			e       session.Encounter
			outcome string
		)
		if err := rows.Scan(&e.SessionID, &e.PredatorID, &e.Species, &e.PlayerID, &outcome, &e.SpawnedAt, &e.EndedAt); err != nil {
			return nil, fmt.Errorf("scanning encounter: %w", err)
		}
		if e.Outcome, err = spawn.ParseCoarseState(outcome); err != nil {
			return nil, fmt.Errorf("scanning encounter %s: %w", e.PredatorID, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating encounters: %w", err)
	}
	return out, nil
}

// OutcomeCounts returns how many of playerID's encounters ended in each outcome.
func (r *EncounterRepository) OutcomeCounts(ctx context.Context, playerID string) (map[spawn.CoarseState]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT outcome, COUNT(*) FROM encounters WHERE player_id = $1 GROUP BY outcome`,
		playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("counting encounters: %w", err)
	}
	defer rows.Close()

	counts := make(map[spawn.CoarseState]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scanning outcome count: %w", err)
		}
		state, err := spawn.ParseCoarseState(outcome)
		if err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

func encounterArgs(e session.Encounter) []any {
	return []any{e.SessionID, e.PredatorID, e.Species, e.PlayerID, e.Outcome.String(), e.SpawnedAt, e.EndedAt}
}
