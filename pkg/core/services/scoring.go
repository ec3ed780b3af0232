package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/charity-hub/pkg/core/model"
	"github.com/jakechorley/charity-hub/pkg/db"
)

// VolunteerPoints returns the volunteer's profile with its cached balance.
// Volunteers see their own; admins see anyone's.
func VolunteerPoints(ctx context.Context, tx db.Tx, actor model.Actor, volunteerID string) (*db.VolunteerProfile, error) {
	if err := requireSelfOrAdmin(actor, volunteerID); err != nil {
		return nil, err
	}
	profile, err := tx.GetVolunteerProfile(ctx, volunteerID)
	if err != nil {
		return nil, lookupErr("volunteer", volunteerID, err)
	}
	return profile, nil
}

// ReconcileResult compares the cached balance with the activity log
type ReconcileResult struct {
	VolunteerID string
	Cached      int
	Recomputed  int
	Drifted     bool
}

// Reconcile recomputes a volunteer's balance from approved activity and
// rewrites the cached counter when it has drifted. The log is the source of
// truth.
func Reconcile(ctx context.Context, tx db.Tx, logger *zap.Logger, actor model.Actor, volunteerID string) (*ReconcileResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	profile, err := tx.LockVolunteerProfile(ctx, volunteerID)
	if err != nil {
		return nil, lookupErr("volunteer", volunteerID, err)
	}
	sum, err := tx.SumApprovedPoints(ctx, volunteerID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum approved points: %w", err)
	}

	result := &ReconcileResult{
		VolunteerID: volunteerID,
		Cached:      profile.Points,
		Recomputed:  sum,
		Drifted:     profile.Points != sum,
	}
	if !result.Drifted {
		return result, nil
	}

	if err := tx.SetVolunteerPoints(ctx, volunteerID, sum, profile.LastActivity); err != nil {
		return nil, fmt.Errorf("failed to rewrite balance: %w", err)
	}
	logger.Warn("Point balance drifted from activity log",
		zap.String("volunteer_id", volunteerID),
		zap.Int("cached", profile.Points),
		zap.Int("recomputed", sum))
	return result, nil
}

// ListVolunteerIDs returns every volunteer for a full reconciliation pass
func ListVolunteerIDs(ctx context.Context, tx db.Tx, actor model.Actor) ([]string, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	ids, err := tx.ListVolunteerIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list volunteers: %w", err)
	}
	return ids, nil
}
