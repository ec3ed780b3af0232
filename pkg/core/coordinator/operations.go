package coordinator

import (
	"context"

	"go.uber.org/zap"

	"github.com/jakechorley/charity-hub/pkg/core/apperr"
	"github.com/jakechorley/charity-hub/pkg/core/model"
	"github.com/jakechorley/charity-hub/pkg/core/services"
	"github.com/jakechorley/charity-hub/pkg/db"
)

// call runs one service function through Run and returns its result
func call[T any](ctx context.Context, c *Coordinator, actor model.Actor, name string, fn func(ctx context.Context, s *Session) (T, error)) (T, error) {
	var out T
	err := c.Run(ctx, actor, name, func(ctx context.Context, s *Session) error {
		var err error
		out, err = fn(ctx, s)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Register creates an account. A nil actor registers anonymously, which
// is how volunteers, charities and the first admin sign up.
func (c *Coordinator) Register(ctx context.Context, actor *model.Actor, req services.RegisterRequest) (*model.UserAccount, error) {
	var account *model.UserAccount
	fn := func(ctx context.Context, s *Session) error {
		var err error
		account, err = services.Register(ctx, s.Tx, s.Logger, s.Actor, req)
		return err
	}
	var err error
	if actor == nil {
		err = c.RunAnonymous(ctx, "register", fn)
	} else {
		err = c.Run(ctx, *actor, "register", fn)
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (c *Coordinator) LoadAccount(ctx context.Context, actor model.Actor, userID string) (*model.UserAccount, error) {
	return call(ctx, c, actor, "load_account", func(ctx context.Context, s *Session) (*model.UserAccount, error) {
		return services.LoadAccount(ctx, s.Tx, actor, userID)
	})
}

// DeactivateUser returns the number of memberships it closed
func (c *Coordinator) DeactivateUser(ctx context.Context, actor model.Actor, userID string) (int, error) {
	return call(ctx, c, actor, "deactivate_user", func(ctx context.Context, s *Session) (int, error) {
		return services.DeactivateUser(ctx, s.Tx, s.Engine, s.Logger, actor, userID)
	})
}

func (c *Coordinator) PurgeUser(ctx context.Context, actor model.Actor, userID string) error {
	return c.Run(ctx, actor, "purge_user", func(ctx context.Context, s *Session) error {
		return services.PurgeUser(ctx, s.Tx, s.Logger, actor, userID)
	})
}

func (c *Coordinator) VerifyCharity(ctx context.Context, actor model.Actor, charityID string, verified bool) error {
	return c.Run(ctx, actor, "verify_charity", func(ctx context.Context, s *Session) error {
		return services.VerifyCharity(ctx, s.Tx, s.Logger, actor, charityID, verified)
	})
}

func (c *Coordinator) CreateProject(ctx context.Context, actor model.Actor, req services.CreateProjectRequest) (*db.Project, error) {
	return call(ctx, c, actor, "create_project", func(ctx context.Context, s *Session) (*db.Project, error) {
		return services.CreateProject(ctx, s.Tx, s.Logger, actor, req)
	})
}

func (c *Coordinator) SetProjectStatus(ctx context.Context, actor model.Actor, projectID string, status db.ProjectStatus) (*db.Project, error) {
	return call(ctx, c, actor, "set_project_status", func(ctx context.Context, s *Session) (*db.Project, error) {
		return services.SetProjectStatus(ctx, s.Tx, s.Logger, actor, projectID, status)
	})
}

func (c *Coordinator) DeleteProject(ctx context.Context, actor model.Actor, projectID string) error {
	return c.Run(ctx, actor, "delete_project", func(ctx context.Context, s *Session) error {
		return services.DeleteProject(ctx, s.Tx, s.Logger, actor, projectID)
	})
}

func (c *Coordinator) CreateSkill(ctx context.Context, actor model.Actor, name string) (*db.Skill, error) {
	return call(ctx, c, actor, "create_skill", func(ctx context.Context, s *Session) (*db.Skill, error) {
		return services.CreateSkill(ctx, s.Tx, s.Logger, actor, name)
	})
}

func (c *Coordinator) AddProjectSkill(ctx context.Context, actor model.Actor, projectID, skillID string) error {
	return c.Run(ctx, actor, "add_project_skill", func(ctx context.Context, s *Session) error {
		return services.AddProjectSkill(ctx, s.Tx, actor, projectID, skillID)
	})
}

func (c *Coordinator) SetVolunteerSkill(ctx context.Context, actor model.Actor, volunteerID, skillID string, proficiency int) (*db.VolunteerSkill, error) {
	return call(ctx, c, actor, "set_volunteer_skill", func(ctx context.Context, s *Session) (*db.VolunteerSkill, error) {
		return services.SetVolunteerSkill(ctx, s.Tx, actor, volunteerID, skillID, proficiency)
	})
}

func (c *Coordinator) CreateTeam(ctx context.Context, actor model.Actor, projectID, name string, maxMembers int) (*db.Team, error) {
	return call(ctx, c, actor, "create_team", func(ctx context.Context, s *Session) (*db.Team, error) {
		return services.CreateTeam(ctx, s.Tx, s.Logger, actor, projectID, name, maxMembers)
	})
}

func (c *Coordinator) Join(ctx context.Context, actor model.Actor, teamID, volunteerID string) (*db.TeamMembership, error) {
	return call(ctx, c, actor, "join", func(ctx context.Context, s *Session) (*db.TeamMembership, error) {
		return services.Join(ctx, s.Tx, s.Engine, s.Logger, actor, teamID, volunteerID)
	})
}

func (c *Coordinator) Leave(ctx context.Context, actor model.Actor, teamID, volunteerID string) (*services.LeaveResult, error) {
	return call(ctx, c, actor, "leave", func(ctx context.Context, s *Session) (*services.LeaveResult, error) {
		return services.Leave(ctx, s.Tx, s.Engine, s.Logger, actor, teamID, volunteerID)
	})
}

func (c *Coordinator) AssignLeader(ctx context.Context, actor model.Actor, teamID, volunteerID string) (*db.Team, error) {
	return call(ctx, c, actor, "assign_leader", func(ctx context.Context, s *Session) (*db.Team, error) {
		return services.AssignLeader(ctx, s.Tx, s.Engine, s.Logger, actor, teamID, volunteerID)
	})
}

func (c *Coordinator) ListMembers(ctx context.Context, actor model.Actor, teamID string, activeOnly bool) ([]db.TeamMembership, error) {
	return call(ctx, c, actor, "list_members", func(ctx context.Context, s *Session) ([]db.TeamMembership, error) {
		return services.ListMembers(ctx, s.Tx, actor, teamID, activeOnly)
	})
}

func (c *Coordinator) LogActivity(ctx context.Context, actor model.Actor, req services.LogActivityRequest) (*db.ActivityLog, error) {
	return call(ctx, c, actor, "log_activity", func(ctx context.Context, s *Session) (*db.ActivityLog, error) {
		return services.LogActivity(ctx, s.Tx, s.Logger, actor, req)
	})
}

// Approve credits an activity once. Retrying after an ambiguous failure is
// safe: a committed approval comes back with AlreadyApproved set.
func (c *Coordinator) Approve(ctx context.Context, actor model.Actor, activityID string, points int) (*services.ApproveResult, error) {
	return call(ctx, c, actor, "approve", func(ctx context.Context, s *Session) (*services.ApproveResult, error) {
		return services.Approve(ctx, s.Tx, s.Engine, s.Logger, actor, activityID, points)
	})
}

func (c *Coordinator) Reject(ctx context.Context, actor model.Actor, activityID string) error {
	return c.Run(ctx, actor, "reject", func(ctx context.Context, s *Session) error {
		return services.Reject(ctx, s.Tx, s.Engine, s.Logger, actor, activityID)
	})
}

func (c *Coordinator) ListActivities(ctx context.Context, actor model.Actor, volunteerID string) ([]db.ActivityLog, error) {
	return call(ctx, c, actor, "list_activities", func(ctx context.Context, s *Session) ([]db.ActivityLog, error) {
		return services.ListActivities(ctx, s.Tx, actor, volunteerID)
	})
}

func (c *Coordinator) VolunteerPoints(ctx context.Context, actor model.Actor, volunteerID string) (*db.VolunteerProfile, error) {
	return call(ctx, c, actor, "volunteer_points", func(ctx context.Context, s *Session) (*db.VolunteerProfile, error) {
		return services.VolunteerPoints(ctx, s.Tx, actor, volunteerID)
	})
}

func (c *Coordinator) Reconcile(ctx context.Context, actor model.Actor, volunteerID string) (*services.ReconcileResult, error) {
	return call(ctx, c, actor, "reconcile", func(ctx context.Context, s *Session) (*services.ReconcileResult, error) {
		return services.Reconcile(ctx, s.Tx, s.Logger, actor, volunteerID)
	})
}

// ReconcileFailure is a volunteer whose reconciliation failed
type ReconcileFailure struct {
	VolunteerID string
	Err         *apperr.Error
}

// ReconcileSummary reports a full reconciliation pass
type ReconcileSummary struct {
	Checked  int
	Drifted  []services.ReconcileResult
	Failures []ReconcileFailure
}

// ReconcileAll reconciles every volunteer, one transaction each, so a long
// pass never holds more than one profile lock. A volunteer removed since the
// listing is skipped. Failures are collected and the pass continues; only a
// failed listing or a cancelled context stops it.
func (c *Coordinator) ReconcileAll(ctx context.Context, actor model.Actor) (*ReconcileSummary, error) {
	ids, err := call(ctx, c, actor, "list_volunteers", func(ctx context.Context, s *Session) ([]string, error) {
		return services.ListVolunteerIDs(ctx, s.Tx, actor)
	})
	if err != nil {
		return nil, err
	}

	summary := &ReconcileSummary{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, apperr.FromStorage(err)
		}
		result, err := c.Reconcile(ctx, actor, id)
		switch {
		case err == nil:
			summary.Checked++
			if result.Drifted {
				summary.Drifted = append(summary.Drifted, *result)
			}
		case apperr.CodeOf(err) == apperr.CodeNotFound:
			c.logger.Debug("Volunteer removed during reconciliation", zap.String("volunteer_id", id))
		default:
			summary.Failures = append(summary.Failures, ReconcileFailure{VolunteerID: id, Err: apperr.FromStorage(err)})
		}
	}

	c.logger.Info("Reconciliation pass complete",
		zap.Int("checked", summary.Checked),
		zap.Int("drifted", len(summary.Drifted)),
		zap.Int("failed", len(summary.Failures)))
	return summary, nil
}

func (c *Coordinator) Rate(ctx context.Context, actor model.Actor, req services.RateRequest) (*db.Rating, error) {
	return call(ctx, c, actor, "rate", func(ctx context.Context, s *Session) (*db.Rating, error) {
		return services.Rate(ctx, s.Tx, s.Engine, s.Logger, actor, req)
	})
}

func (c *Coordinator) ListRatings(ctx context.Context, actor model.Actor, targetType db.RatedEntityType, targetID string) ([]db.Rating, error) {
	return call(ctx, c, actor, "list_ratings", func(ctx context.Context, s *Session) ([]db.Rating, error) {
		return services.ListRatings(ctx, s.Tx, targetType, targetID)
	})
}

func (c *Coordinator) AverageRating(ctx context.Context, actor model.Actor, targetType db.RatedEntityType, targetID string) (*services.RatingSummary, error) {
	return call(ctx, c, actor, "average_rating", func(ctx context.Context, s *Session) (*services.RatingSummary, error) {
		return services.AverageRating(ctx, s.Tx, targetType, targetID)
	})
}

func (c *Coordinator) PostMessage(ctx context.Context, actor model.Actor, teamID, content string) (*db.Message, error) {
	return call(ctx, c, actor, "post_message", func(ctx context.Context, s *Session) (*db.Message, error) {
		return services.PostMessage(ctx, s.Tx, s.Logger, actor, teamID, content)
	})
}

func (c *Coordinator) ListMessages(ctx context.Context, actor model.Actor, teamID string, limit int) ([]db.Message, error) {
	return call(ctx, c, actor, "list_messages", func(ctx context.Context, s *Session) ([]db.Message, error) {
		return services.ListMessages(ctx, s.Tx, actor, teamID, limit)
	})
}
