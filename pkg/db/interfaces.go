package db

import (
	"context"
	"time"
)

// UserStore defines user row operations
type UserStore interface {
	InsertUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	SetUserActive(ctx context.Context, id string, active bool) error
	DeleteUser(ctx context.Context, id string) error
	CountUsersByRole(ctx context.Context, role Role) (int, error)
}

// ProfileStore defines volunteer and charity profile operations
type ProfileStore interface {
	InsertVolunteerProfile(ctx context.Context, profile *VolunteerProfile) error
	GetVolunteerProfile(ctx context.Context, userID string) (*VolunteerProfile, error)
	// LockVolunteerProfile reads the profile and holds a row lock until the
	// transaction ends
	LockVolunteerProfile(ctx context.Context, userID string) (*VolunteerProfile, error)
	SetVolunteerPoints(ctx context.Context, userID string, points int, lastActivity *time.Time) error
	ListVolunteerIDs(ctx context.Context) ([]string, error)

	InsertCharityProfile(ctx context.Context, profile *CharityProfile) error
	GetCharityProfile(ctx context.Context, userID string) (*CharityProfile, error)
	SetCharityVerified(ctx context.Context, userID string, verified bool) error
}

// ProjectStore defines project operations
type ProjectStore interface {
	InsertProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	SetProjectStatus(ctx context.Context, id string, status ProjectStatus) error
	DeleteProject(ctx context.Context, id string) error
	ListProjectsByCharity(ctx context.Context, charityID string) ([]Project, error)
}

// SkillStore defines skill lookup and link operations
type SkillStore interface {
	InsertSkill(ctx context.Context, skill *Skill) error
	GetSkill(ctx context.Context, id string) (*Skill, error)
	AddProjectSkill(ctx context.Context, projectID, skillID string) error
	ListProjectSkills(ctx context.Context, projectID string) ([]Skill, error)
	UpsertVolunteerSkill(ctx context.Context, skill *VolunteerSkill) error
	ListVolunteerSkills(ctx context.Context, volunteerID string) ([]VolunteerSkill, error)
}

// TeamStore defines team operations
type TeamStore interface {
	InsertTeam(ctx context.Context, team *Team) error
	GetTeam(ctx context.Context, id string) (*Team, error)
	// LockTeam reads the team and holds a row lock until the transaction ends.
	// Capacity and leadership checks go through this read.
	LockTeam(ctx context.Context, id string) (*Team, error)
	SetTeamLeader(ctx context.Context, teamID string, leaderID *string) error
	ListTeamsByProject(ctx context.Context, projectID string) ([]Team, error)
}

// MembershipStore defines team membership operations
type MembershipStore interface {
	GetMembership(ctx context.Context, teamID, volunteerID string) (*TeamMembership, error)
	InsertMembership(ctx context.Context, membership *TeamMembership) error
	// ActivateMembership reopens a closed membership, keeping its first join time
	ActivateMembership(ctx context.Context, id string) error
	DeactivateMembership(ctx context.Context, id string) error
	CountActiveMemberships(ctx context.Context, teamID string) (int, error)
	ListTeamMemberships(ctx context.Context, teamID string) ([]TeamMembership, error)
	ListActiveMembershipsByVolunteer(ctx context.Context, volunteerID string) ([]TeamMembership, error)
}

// ActivityStore defines activity log operations
type ActivityStore interface {
	InsertActivity(ctx context.Context, activity *ActivityLog) error
	GetActivity(ctx context.Context, id string) (*ActivityLog, error)
	// LockActivity reads the activity and holds a row lock until the
	// transaction ends
	LockActivity(ctx context.Context, id string) (*ActivityLog, error)
	ApproveActivity(ctx context.Context, id, approverID string, points int) error
	DeleteActivity(ctx context.Context, id string) error
	ListActivitiesByVolunteer(ctx context.Context, volunteerID string) ([]ActivityLog, error)
	SumApprovedPoints(ctx context.Context, volunteerID string) (int, error)
}

// RatingStore defines rating operations
type RatingStore interface {
	InsertRating(ctx context.Context, rating *Rating) error
	ListRatingsForTarget(ctx context.Context, entityType RatedEntityType, entityID string) ([]Rating, error)
	DeleteRatingsForTarget(ctx context.Context, entityType RatedEntityType, entityID string) error
}

// MessageStore defines team message operations
type MessageStore interface {
	InsertMessage(ctx context.Context, message *Message) error
	ListMessages(ctx context.Context, teamID string, limit int) ([]Message, error)
}

// Tx is a single storage transaction. Every read and write made through it
// commits or rolls back together.
type Tx interface {
	UserStore
	ProfileStore
	ProjectStore
	SkillStore
	TeamStore
	MembershipStore
	ActivityStore
	RatingStore
	MessageStore

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store opens transactions. Both postgres.DB and sqlite.DB implement it.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Close() error
}
