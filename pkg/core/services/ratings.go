package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jakechorley/charity-hub/pkg/core/apperr"
	"github.com/jakechorley/charity-hub/pkg/core/invariants"
	"github.com/jakechorley/charity-hub/pkg/core/model"
	"github.com/jakechorley/charity-hub/pkg/db"
)

// RateRequest rates a volunteer, project, team or charity
type RateRequest struct {
	TargetType db.RatedEntityType
	TargetID   string
	Value      int
	Comment    string
}

// Rate writes a rating from the actor. A rater may rate the same target any
// number of times; each rating is kept.
func Rate(ctx context.Context, tx db.Tx, engine *invariants.Engine, logger *zap.Logger, actor model.Actor, req RateRequest) (*db.Rating, error) {
	if req.Value < 1 || req.Value > 5 {
		return nil, apperr.WithMetadata(apperr.CodeInvalidValue,
			fmt.Sprintf("rating must be between 1 and 5, got %d", req.Value),
			map[string]string{"field": "value"})
	}
	if err := engine.Validate(ctx, tx, invariants.RateOp{TargetType: req.TargetType, TargetID: req.TargetID}); err != nil {
		return nil, err
	}

	rating := db.Rating{
		ID:              newID(),
		RaterID:         actor.UserID,
		RatedEntityID:   req.TargetID,
		RatedEntityType: req.TargetType,
		Value:           req.Value,
		Comment:         strings.TrimSpace(req.Comment),
		CreatedAt:       now(),
	}
	if err := tx.InsertRating(ctx, &rating); err != nil {
		return nil, fmt.Errorf("failed to insert rating: %w", err)
	}

	logger.Debug("Rated entity",
		zap.String("rating_id", rating.ID),
		zap.String("target_type", string(req.TargetType)),
		zap.String("target_id", req.TargetID),
		zap.Int("value", req.Value))
	return &rating, nil
}

// ListRatings returns every rating of a target, oldest first
func ListRatings(ctx context.Context, tx db.Tx, targetType db.RatedEntityType, targetID string) ([]db.Rating, error) {
	switch targetType {
	case db.RatedVolunteer, db.RatedProject, db.RatedTeam, db.RatedCharity:
	default:
		return nil, apperr.Newf(apperr.CodeInvalidValue, "unknown rating target type %q", targetType)
	}
	ratings, err := tx.ListRatingsForTarget(ctx, targetType, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	return ratings, nil
}

// RatingSummary aggregates the ratings of one target
type RatingSummary struct {
	Count   int
	Average float64
}

// AverageRating summarizes a target's ratings. Count is zero when nobody has
// rated it.
func AverageRating(ctx context.Context, tx db.Tx, targetType db.RatedEntityType, targetID string) (*RatingSummary, error) {
	ratings, err := ListRatings(ctx, tx, targetType, targetID)
	if err != nil {
		return nil, err
	}
	summary := &RatingSummary{Count: len(ratings)}
	if summary.Count == 0 {
		return summary, nil
	}
	total := 0
	for _, r := range ratings {
		total += r.Value
	}
	summary.Average = float64(total) / float64(summary.Count)
	return summary, nil
}
