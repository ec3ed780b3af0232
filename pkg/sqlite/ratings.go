package sqlite

import (
	"context"
	"fmt"

	"github.com/jakechorley/charity-hub/pkg/db"
)

func (t *tx) InsertRating(ctx context.Context, rating *db.Rating) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO ratings (id, rater_id, rated_entity_id, rated_entity_type, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rating.ID, rating.RaterID, rating.RatedEntityID, string(rating.RatedEntityType), rating.Value,
		rating.Comment, toMillis(rating.CreatedAt))
	if err != nil {
		return wrapErr("insert rating", err)
	}
	return nil
}

func (t *tx) ListRatingsForTarget(ctx context.Context, entityType db.RatedEntityType, entityID string) ([]db.Rating, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, rater_id, rated_entity_id, rated_entity_type, rating, comment, created_at
		FROM ratings WHERE rated_entity_type = ? AND rated_entity_id = ?
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
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.RaterID, &r.RatedEntityID, &ratedType, &r.Value, &r.Comment, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		r.RatedEntityType = db.RatedEntityType(ratedType)
		r.CreatedAt = fromMillis(createdAt)
		ratings = append(ratings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate ratings", err)
	}
	return ratings, nil
}

func (t *tx) DeleteRatingsForTarget(ctx context.Context, entityType db.RatedEntityType, entityID string) error {
	_, err := t.tx.ExecContext(ctx, `
		DELETE FROM ratings WHERE rated_entity_type = ? AND rated_entity_id = ?
	`, string(entityType), entityID)
	if err != nil {
		return wrapErr("delete ratings", err)
	}
	return nil
}

func (t *tx) InsertMessage(ctx context.Context, message *db.Message) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO messages (id, team_id, sender_id, content, sent_at) VALUES (?, ?, ?, ?, ?)
	`, message.ID, message.TeamID, message.SenderID, message.Content, toMillis(message.SentAt))
	if err != nil {
		return wrapErr("insert message", err)
	}
	return nil
}

// ListMessages returns the latest messages of a team in sent order.
// A non-positive limit returns every message.
func (t *tx) ListMessages(ctx context.Context, teamID string, limit int) ([]db.Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, team_id, sender_id, content, sent_at FROM (
			SELECT rowid AS seq, id, team_id, sender_id, content, sent_at FROM messages
			WHERE team_id = ? ORDER BY sent_at DESC, seq DESC LIMIT ?
		) ORDER BY sent_at, seq
	`, teamID, limit)
	if err != nil {
		return nil, wrapErr("query messages", err)
	}
	defer rows.Close()

	var messages []db.Message
	for rows.Next() {
		var m db.Message
		var sentAt int64
		if err := rows.Scan(&m.ID, &m.TeamID, &m.SenderID, &m.Content, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.SentAt = fromMillis(sentAt)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate messages", err)
	}
	return messages, nil
}
