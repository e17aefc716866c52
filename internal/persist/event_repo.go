package persist

import (
	"context"
	"fmt"
	"time"
)

// Event kinds stored in game_events.kind.
const (
	EventOptions = "options"
	EventScene   = "scene"
	EventReady   = "ready"
)

// Event is one lobby event of a game.
type Event struct {
	GameCode int32
	ClientID int32
	Kind     string
	Detail   string
	At       time.Time

	// Set for EventOptions only.
	Options    []byte
	MaxPlayers byte
	MapID      byte
	Impostors  byte
}

type EventRepo struct {
	store *Store
}

func NewEventRepo(store *Store) *EventRepo {
	return &EventRepo{store: store}
}

// WriteEvents atomically writes a batch of events in a single transaction.
// Options events also upsert the game's current settings row.
func (r *EventRepo) WriteEvents(ctx context.Context, events []Event) error {
	tx, err := r.store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("events begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range events {
		if _, err := tx.Exec(ctx,
			`INSERT INTO game_events (game_code, client_id, kind, detail, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			e.GameCode, e.ClientID, e.Kind, e.Detail, e.At,
		); err != nil {
			return fmt.Errorf("events insert: %w", err)
		}
		if e.Kind != EventOptions {
			continue
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO games (code, max_players, map_id, impostors, options, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (code) DO UPDATE SET
			   max_players = EXCLUDED.max_players,
			   map_id = EXCLUDED.map_id,
			   impostors = EXCLUDED.impostors,
			   options = EXCLUDED.options,
			   updated_at = EXCLUDED.updated_at`,
			e.GameCode, int16(e.MaxPlayers), int16(e.MapID), int16(e.Impostors), e.Options, e.At,
		); err != nil {
			return fmt.Errorf("games upsert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GameEvents returns the events of one game in insertion order.
func (r *EventRepo) GameEvents(ctx context.Context, code int32) ([]Event, error) {
	rows, err := r.store.pool.Query(ctx,
		`SELECT game_code, client_id, kind, detail, created_at
		 FROM game_events WHERE game_code = $1 ORDER BY id`,
		code,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.GameCode, &e.ClientID, &e.Kind, &e.Detail, &e.At); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
