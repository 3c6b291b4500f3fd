package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arialabs/aria/internal/turn"
)

// SessionKey is the composite identity of one durable session.
type SessionKey struct {
	App       string
	UserID    string
	SessionID string
}

func (k SessionKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.App, k.UserID, k.SessionID)
}

// SessionStore persists per-session turn state between turns. Load returns
// (nil, nil) when no session exists yet; the per-document atomicity of the
// backing store is what isolates concurrent turns of different sessions.
type SessionStore interface {
	Load(ctx context.Context, key SessionKey) (*turn.State, error)
	Save(ctx context.Context, key SessionKey, st *turn.State) error
}

// Load fetches a session's state blob.
func (s *Store) Load(ctx context.Context, key SessionKey) (*turn.State, error) {
	var blob []byte
	err := s.db.QueryRow(ctx, `
		SELECT state
		FROM sessions
		WHERE app_name = $1 AND user_id = $2 AND session_id = $3`,
		key.App, key.UserID, key.SessionID,
	).Scan(&blob)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", key, err)
	}

	var st turn.State
	if err := json.Unmarshal(blob, &st); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", key, err)
	}
	return &st, nil
}

// Save upserts a session's state blob. Last write wins per session document.
func (s *Store) Save(ctx context.Context, key SessionKey, st *turn.State) error {
	blob, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", key, err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO sessions (app_name, user_id, session_id, state, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (app_name, user_id, session_id)
		DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		key.App, key.UserID, key.SessionID, blob, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", key, err)
	}
	return nil
}
