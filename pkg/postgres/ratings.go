package postgres

import (
	"context"
	"fmt"

	"github.com/jakechorley/charity-hub/pkg/db"
)

// InsertRating inserts a new rating
func (t *tx) InsertRating(ctx context.Context, rating *db.Rating) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO ratings (id, rater_id, rated_entity_id, rated_entity_type, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rating.ID, rating.RaterID, rating.RatedEntityID, string(rating.RatedEntityType), rating.Value,
		rating.Comment, rating.CreatedAt.UTC())
	if err != nil {
		return wrapErr("insert rating", err)
	}
	return nil
}

// ListRatingsForTarget retrieves all ratings of one entity, oldest first
func (t *tx) ListRatingsForTarget(ctx context.Context, entityType db.RatedEntityType, entityID string) ([]db.Rating, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, rater_id, rated_entity_id, rated_entity_type, rating, comment, created_at
		FROM ratings WHERE rated_entity_type = $1 AND rated_entity_id = $2
		ORDER BY created_at, id
	`, string(entityType), entityID)
	if err != nil {
		return nil, wrapErr("query ratings", err)
	}
	defer rows.Close()

	var ratings []db.Rating
	for rows.Next() {
		var r db.Rating
		var ratedType string
		if err := rows.Scan(&r.ID, &r.RaterID, &r.RatedEntityID, &ratedType, &r.Value, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		r.RatedEntityType = db.RatedEntityType(ratedType)
		ratings = append(ratings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate ratings", err)
	}
	return ratings, nil
}

// DeleteRatingsForTarget removes every rating of one entity
func (t *tx) DeleteRatingsForTarget(ctx context.Context, entityType db.RatedEntityType, entityID string) error {
	_, err := t.tx.Exec(ctx, `
		DELETE FROM ratings WHERE rated_entity_type = $1 AND rated_entity_id = $2
	`, string(entityType), entityID)
	if err != nil {
		return wrapErr("delete ratings", err)
	}
	return nil
}

// InsertMessage inserts a new team message
func (t *tx) InsertMessage(ctx context.Context, message *db.Message) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO messages (id, team_id, sender_id, content, sent_at) VALUES ($1, $2, $3, $4, $5)
	`, message.ID, message.TeamID, message.SenderID, message.Content, message.SentAt.UTC())
	if err != nil {
		return wrapErr("insert message", err)
	}
	return nil
}

// ListMessages retrieves the latest messages of a team in sent order.
// A non-positive limit returns every message.
func (t *tx) ListMessages(ctx context.Context, teamID string, limit int) ([]db.Message, error) {
	query := `
		SELECT id, team_id, sender_id, content, sent_at FROM (
			SELECT seq, id, team_id, sender_id, content, sent_at FROM messages
			WHERE team_id = $1 ORDER BY sent_at DESC, seq DESC LIMIT $2
		) latest ORDER BY sent_at, seq
	`
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	rows, err := t.tx.Query(ctx, query, teamID, limitArg)
	if err != nil {
		return nil, wrapErr("query messages", err)
	}
	defer rows.Close()

	var messages []db.Message
	for rows.Next() {
		var m db.Message
		if err := rows.Scan(&m.ID, &m.TeamID, &m.SenderID, &m.Content, &m.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate messages", err)
	}
	return messages, nil
}
