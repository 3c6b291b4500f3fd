package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arialabs/aria/internal/turn"
)

// TurnRecord is one row of the turn audit log: what the orchestrator decided
// and answered for a single user utterance.
type TurnRecord struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	SessionID  string           `json:"session_id"`
	Intent     turn.Intent      `json:"intent"`
	Plan       string           `json:"plan"`
	Reflection *turn.Reflection `json:"reflection,omitempty"`
	Response   string           `json:"response"`
	CreatedAt  time.Time        `json:"created_at"`
}

// RecordTurn appends a turn to the audit log.
func (s *Store) RecordTurn(ctx context.Context, rec TurnRecord) error {
	var reflJSON []byte
	if rec.Reflection != nil {
		var err error
		reflJSON, err = json.Marshal(rec.Reflection)
		if err != nil {
			return fmt.Errorf("marshal reflection: %w", err)
		}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO turns (id, user_id, session_id, intent, plan, reflection, response)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.UserID, rec.SessionID, string(rec.Intent), rec.Plan, reflJSON, rec.Response,
	)
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

// RecentTurns returns the latest turns for a session, newest first.
func (s *Store) RecentTurns(ctx context.Context, userID, sessionID string, limit int) ([]TurnRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, session_id, intent, plan, reflection, response, created_at
		FROM turns
		WHERE user_id = $1 AND session_id = $2
		ORDER BY created_at DESC
		LIMIT $3`, userID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	defer rows.Close()

	var recs []TurnRecord
	for rows.Next() {
		var rec TurnRecord
		var intent string
		var reflJSON []byte
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.SessionID, &intent,
			&rec.Plan, &reflJSON, &rec.Response, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		rec.Intent = turn.Intent(intent)
		if len(reflJSON) > 0 {
			json.Unmarshal(reflJSON, &rec.Reflection)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
