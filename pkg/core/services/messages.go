package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jakechorley/charity-hub/pkg/core/apperr"
	"github.com/jakechorley/charity-hub/pkg/core/model"
	"github.com/jakechorley/charity-hub/pkg/db"
)

const maxMessageLength = 4000

// PostMessage appends a message to a team's chat. Senders must be active
// members, the owning charity, or an admin.
func PostMessage(ctx context.Context, tx db.Tx, logger *zap.Logger, actor model.Actor, teamID, content string) (*db.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.New(apperr.CodeInvalidValue, "message content is required")
	}
	if len(content) > maxMessageLength {
		return nil, apperr.Newf(apperr.CodeInvalidValue, "message exceeds %d bytes", maxMessageLength)
	}
	team, err := tx.GetTeam(ctx, teamID)
	if err != nil {
		return nil, lookupErr("team", teamID, err)
	}
	if err := requireTeamAccess(ctx, tx, actor, team); err != nil {
		return nil, err
	}

	message := db.Message{
		ID:       newID(),
		TeamID:   teamID,
		SenderID: actor.UserID,
		Content:  content,
		SentAt:   now(),
	}
	if err := tx.InsertMessage(ctx, &message); err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	logger.Debug("Posted message", zap.String("team_id", teamID), zap.String("sender_id", actor.UserID))
	return &message, nil
}

// ListMessages returns the latest limit messages of a team in sent order.
// A non-positive limit returns the whole history.
func ListMessages(ctx context.Context, tx db.Tx, actor model.Actor, teamID string, limit int) ([]db.Message, error) {
	team, err := tx.GetTeam(ctx, teamID)
	if err != nil {
		return nil, lookupErr("team", teamID, err)
	}
	if err := requireTeamAccess(ctx, tx, actor, team); err != nil {
		return nil, err
	}
	messages, err := tx.ListMessages(ctx, teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}
