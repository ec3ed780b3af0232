package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/charity-hub/pkg/db"
)

const teamColumns = `id, project_id, name, max_members, team_leader_id, created_at`

func scanTeam(row interface{ Scan(...any) error }) (*db.Team, error) {
	var team db.Team
	if err := row.Scan(&team.ID, &team.ProjectID, &team.Name, &team.MaxMembers, &team.TeamLeaderID, &team.CreatedAt); err != nil {
		return nil, err
	}
	return &team, nil
}

// InsertTeam inserts a new team record
func (t *tx) InsertTeam(ctx context.Context, team *db.Team) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO teams (id, project_id, name, max_members, team_leader_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, team.ID, team.ProjectID, team.Name, team.MaxMembers, team.TeamLeaderID, team.CreatedAt.UTC())
	if err != nil {
		return wrapErr("insert team", err)
	}
	return nil
}

// GetTeam retrieves a team by ID
func (t *tx) GetTeam(ctx context.Context, id string) (*db.Team, error) {
	team, err := scanTeam(t.tx.QueryRow(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get team", err)
	}
	return team, nil
}

// LockTeam retrieves a team and locks its row until the transaction ends.
// Concurrent joins to the same team queue on this lock, so the active
// member count they read afterwards is current.
func (t *tx) LockTeam(ctx context.Context, id string) (*db.Team, error) {
	team, err := scanTeam(t.tx.QueryRow(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, wrapErr("lock team", err)
	}
	return team, nil
}

// SetTeamLeader sets or clears the team leader
func (t *tx) SetTeamLeader(ctx context.Context, teamID string, leaderID *string) error {
	return t.execOne(ctx, "set team leader", `UPDATE teams SET team_leader_id = $2 WHERE id = $1`, teamID, leaderID)
}

// ListTeamsByProject retrieves all teams of a project
func (t *tx) ListTeamsByProject(ctx context.Context, projectID string) ([]db.Team, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+teamColumns+` FROM teams WHERE project_id = $1 ORDER BY name`, projectID)
	if err != nil {
		return nil, wrapErr("query teams", err)
	}
	defer rows.Close()

	var teams []db.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, *team)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate teams", err)
	}
	return teams, nil
}

const membershipColumns = `id, team_id, volunteer_id, is_active, joined_at`

func scanMemberships(rows pgx.Rows) ([]db.TeamMembership, error) {
	defer rows.Close()

	var memberships []db.TeamMembership
	for rows.Next() {
		var m db.TeamMembership
		if err := rows.Scan(&m.ID, &m.TeamID, &m.VolunteerID, &m.IsActive, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate memberships", err)
	}
	return memberships, nil
}

// GetMembership retrieves the membership row of a volunteer in a team, active or not
func (t *tx) GetMembership(ctx context.Context, teamID, volunteerID string) (*db.TeamMembership, error) {
	var m db.TeamMembership
	err := t.tx.QueryRow(ctx, `
		SELECT `+membershipColumns+` FROM team_memberships WHERE team_id = $1 AND volunteer_id = $2
	`, teamID, volunteerID).Scan(&m.ID, &m.TeamID, &m.VolunteerID, &m.IsActive, &m.JoinedAt)
	if err != nil {
		return nil, wrapErr("get membership", err)
	}
	return &m, nil
}

// InsertMembership inserts a new membership record
func (t *tx) InsertMembership(ctx context.Context, membership *db.TeamMembership) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO team_memberships (id, team_id, volunteer_id, is_active, joined_at)
		VALUES ($1, $2, $3, $4, $5)
	`, membership.ID, membership.TeamID, membership.VolunteerID, membership.IsActive, membership.JoinedAt.UTC())
	if err != nil {
		return wrapErr("insert membership", err)
	}
	return nil
}

// ActivateMembership reopens a closed membership, keeping joined_at from
// the first stint
func (t *tx) ActivateMembership(ctx context.Context, id string) error {
	return t.execOne(ctx, "activate membership", `UPDATE team_memberships SET is_active = TRUE WHERE id = $1`, id)
}

// DeactivateMembership soft-closes a membership
func (t *tx) DeactivateMembership(ctx context.Context, id string) error {
	return t.execOne(ctx, "deactivate membership", `UPDATE team_memberships SET is_active = FALSE WHERE id = $1`, id)
}

// CountActiveMemberships counts the active members of a team
func (t *tx) CountActiveMemberships(ctx context.Context, teamID string) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM team_memberships WHERE team_id = $1 AND is_active
	`, teamID).Scan(&count)
	if err != nil {
		return 0, wrapErr("count active memberships", err)
	}
	return count, nil
}

// ListTeamMemberships retrieves every membership row of a team
func (t *tx) ListTeamMemberships(ctx context.Context, teamID string) ([]db.TeamMembership, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+membershipColumns+` FROM team_memberships WHERE team_id = $1 ORDER BY joined_at, id
	`, teamID)
	if err != nil {
		return nil, wrapErr("query memberships", err)
	}
	return scanMemberships(rows)
}

// ListActiveMembershipsByVolunteer retrieves a volunteer's active memberships
func (t *tx) ListActiveMembershipsByVolunteer(ctx context.Context, volunteerID string) ([]db.TeamMembership, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+membershipColumns+` FROM team_memberships WHERE volunteer_id = $1 AND is_active ORDER BY joined_at, id
	`, volunteerID)
	if err != nil {
		return nil, wrapErr("query volunteer memberships", err)
	}
	return scanMemberships(rows)
}
