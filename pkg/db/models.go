package db

import "time"

// Role is the account role stored on a user row
type Role string

const (
	RoleVolunteer Role = "volunteer"
	RoleCharity   Role = "charity"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleVolunteer, RoleCharity, RoleAdmin:
		return true
	}
	return false
}

// ProjectStatus is the lifecycle state of a project
type ProjectStatus string

const (
	ProjectPending   ProjectStatus = "pending"
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectCancelled ProjectStatus = "cancelled"
)

// Closed reports whether the project no longer accepts members or activity
func (s ProjectStatus) Closed() bool {
	return s == ProjectCompleted || s == ProjectCancelled
}

// ActivityType classifies a logged contribution
type ActivityType string

const (
	ActivityHoursLogged      ActivityType = "hours_logged"
	ActivityTaskCompleted    ActivityType = "task_completed"
	ActivityTrainingAttended ActivityType = "training_attended"
)

// RatedEntityType is the discriminator of a polymorphic rating target
type RatedEntityType string

const (
	RatedVolunteer RatedEntityType = "volunteer"
	RatedProject   RatedEntityType = "project"
	RatedTeam      RatedEntityType = "team"
	RatedCharity   RatedEntityType = "charity"
)

// User represents a row in the users table
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
}

// VolunteerProfile is the 1:1 extension of a volunteer user.
// Points is a cached counter; the approved activity log is the source of truth.
type VolunteerProfile struct {
	UserID       string
	Bio          string
	Points       int
	LastActivity *time.Time
}

// CharityProfile is the 1:1 extension of a charity user
type CharityProfile struct {
	UserID           string
	OrganizationName string
	LicenseNumber    string
	IsVerified       bool
	Description      string
}

// Project is owned by a charity
type Project struct {
	ID                 string
	CharityID          string
	Title              string
	Description        string
	Status             ProjectStatus
	RequiredVolunteers int
	StartDate          *time.Time
	EndDate            *time.Time
	CreatedAt          time.Time
}

// Skill is a global lookup value
type Skill struct {
	ID   string
	Name string
}

// VolunteerSkill links a volunteer to a skill with a proficiency of 1-5
type VolunteerSkill struct {
	VolunteerID string
	SkillID     string
	Proficiency int
}

// Team belongs to a project and has a membership capacity
type Team struct {
	ID           string
	ProjectID    string
	Name         string
	MaxMembers   int
	TeamLeaderID *string
	CreatedAt    time.Time
}

// TeamMembership links a volunteer to a team. Closing a membership flips
// IsActive rather than removing the row.
type TeamMembership struct {
	ID          string
	TeamID      string
	VolunteerID string
	IsActive    bool
	JoinedAt    time.Time
}

// ActivityLog records one contribution event.
// PointsAwarded only counts once ApprovedBy is set.
type ActivityLog struct {
	ID              string
	VolunteerID     string
	ProjectID       *string
	TeamID          *string
	ActivityType    ActivityType
	DurationMinutes int
	ActivityDate    time.Time
	Description     string
	PointsAwarded   int
	ApprovedBy      *string
	CreatedAt       time.Time
}

// Approved reports whether the activity has been approved
func (a *ActivityLog) Approved() bool {
	return a.ApprovedBy != nil
}

// Rating references its target by (RatedEntityID, RatedEntityType)
type Rating struct {
	ID              string
	RaterID         string
	RatedEntityID   string
	RatedEntityType RatedEntityType
	Value           int
	Comment         string
	CreatedAt       time.Time
}

// Message is a team chat message
type Message struct {
	ID       string
	TeamID   string
	SenderID string
	Content  string
	SentAt   time.Time
}
