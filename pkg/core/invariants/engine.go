// Package invariants enforces the business rules that foreign keys cannot
// express. Every check runs inside the caller's transaction, before commit,
// so the rows it reads are the rows the write depends on.
package invariants

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/charity-hub/pkg/core/apperr"
	"github.com/jakechorley/charity-hub/pkg/db"
)

// Operation is a mutation about to be applied
type Operation interface {
	OpName() string
}

// JoinOp adds one active membership to a team
type JoinOp struct {
	TeamID      string
	VolunteerID string
}

// AssignLeaderOp sets a team's leader
type AssignLeaderOp struct {
	TeamID      string
	VolunteerID string
}

// RateOp writes a rating against a polymorphic target
type RateOp struct {
	TargetType db.RatedEntityType
	TargetID   string
}

// ApproveOp approves a pending activity. Reject runs the same check.
type ApproveOp struct {
	Activity   *db.ActivityLog
	ApproverID string
}

func (JoinOp) OpName() string         { return "join" }
func (AssignLeaderOp) OpName() string { return "assign_leader" }
func (RateOp) OpName() string         { return "rate" }
func (ApproveOp) OpName() string      { return "approve" }

// Rule is a single invariant. Check returns nil when the operation keeps the
// invariant, an *apperr.Error of kind validation when it would break it, or
// any other error when the store failed.
type Rule interface {
	// Name returns a human-readable identifier for this rule
	Name() string

	// Applies reports whether the rule has anything to say about op
	Applies(op Operation) bool

	Check(ctx context.Context, tx db.Tx, op Operation) error
}

// Engine runs every applicable rule against an operation
type Engine struct {
	rules  []Rule
	logger *zap.Logger
}

// NewEngine creates an engine with the built-in rules followed by extra
func NewEngine(logger *zap.Logger, extra ...Rule) *Engine {
	rules := []Rule{
		&CapacityRule{},
		&LeaderRule{},
		NewRatingTargetRule(),
		&ApprovalRule{},
	}
	return &Engine{
		rules:  append(rules, extra...),
		logger: logger,
	}
}

// Validate returns the first violation found, in rule registration order
func (e *Engine) Validate(ctx context.Context, tx db.Tx, op Operation) error {
	for _, rule := range e.rules {
		if !rule.Applies(op) {
			continue
		}
		if err := rule.Check(ctx, tx, op); err != nil {
			var appErr *apperr.Error
			if errors.As(err, &appErr) && appErr.Kind == apperr.KindValidation {
				e.logger.Debug("Invariant violated",
					zap.String("rule", rule.Name()),
					zap.String("operation", op.OpName()),
					zap.String("code", string(appErr.Code)))
				return err
			}
			return fmt.Errorf("rule %s failed: %w", rule.Name(), err)
		}
	}
	return nil
}

// CompensateLeave clears the team leader when the departing volunteer holds
// it. It must run in the transaction that deactivates the membership.
func (e *Engine) CompensateLeave(ctx context.Context, tx db.Tx, teamID, volunteerID string) (bool, error) {
	team, err := tx.LockTeam(ctx, teamID)
	if err != nil {
		return false, fmt.Errorf("failed to lock team: %w", err)
	}
	if team.TeamLeaderID == nil || *team.TeamLeaderID != volunteerID {
		return false, nil
	}
	if err := tx.SetTeamLeader(ctx, teamID, nil); err != nil {
		return false, fmt.Errorf("failed to clear team leader: %w", err)
	}
	e.logger.Debug("Cleared team leader on leave",
		zap.String("team_id", teamID),
		zap.String("volunteer_id", volunteerID))
	return true, nil
}

func notFound(entity, id string, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return apperr.WithMetadata(apperr.CodeNotFound, fmt.Sprintf("%s %s not found", entity, id),
			map[string]string{"entity": entity, "id": id})
	}
	return fmt.Errorf("failed to get %s: %w", entity, err)
}
