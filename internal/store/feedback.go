package store

import (
	"context"
	"fmt"
)

// Feedback is one user rating of an assistant turn.
type Feedback struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	TurnID    string `json:"turn_id"`
	Rating    int    `json:"rating"`
	Notes     string `json:"notes,omitempty"`
}

// AddFeedback records a rating for a turn.
func (s *Store) AddFeedback(ctx context.Context, fb Feedback) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO feedback (id, user_id, session_id, turn_id, rating, notes)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)`,
		fb.UserID, fb.SessionID, fb.TurnID, fb.Rating, fb.Notes,
	)
	if err != nil {
		return fmt.Errorf("add feedback: %w", err)
	}
	return nil
}
