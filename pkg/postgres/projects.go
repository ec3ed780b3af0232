package postgres

import (
	"context"
	"fmt"

	"github.com/jakechorley/charity-hub/pkg/db"
)

const projectColumns = `id, charity_id, title, description, status, required_volunteers, start_date, end_date, created_at`

func scanProject(row interface{ Scan(...any) error }) (*db.Project, error) {
	var p db.Project
	var status string
	if err := row.Scan(&p.ID, &p.CharityID, &p.Title, &p.Description, &status,
		&p.RequiredVolunteers, &p.StartDate, &p.EndDate, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Status = db.ProjectStatus(status)
	return &p, nil
}

// InsertProject inserts a new project record
func (t *tx) InsertProject(ctx context.Context, project *db.Project) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO projects (id, charity_id, title, description, status, required_volunteers, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, project.ID, project.CharityID, project.Title, project.Description, string(project.Status),
		project.RequiredVolunteers, project.StartDate, project.EndDate, project.CreatedAt.UTC())
	if err != nil {
		return wrapErr("insert project", err)
	}
	return nil
}

// GetProject retrieves a project by ID
func (t *tx) GetProject(ctx context.Context, id string) (*db.Project, error) {
	p, err := scanProject(t.tx.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get project", err)
	}
	return p, nil
}

// SetProjectStatus updates the status of a project
func (t *tx) SetProjectStatus(ctx context.Context, id string, status db.ProjectStatus) error {
	return t.execOne(ctx, "set project status", `UPDATE projects SET status = $2 WHERE id = $1`, id, string(status))
}

// DeleteProject removes a project; its teams, memberships and messages cascade
func (t *tx) DeleteProject(ctx context.Context, id string) error {
	return t.execOne(ctx, "delete project", `DELETE FROM projects WHERE id = $1`, id)
}

// ListProjectsByCharity retrieves all projects owned by a charity
func (t *tx) ListProjectsByCharity(ctx context.Context, charityID string) ([]db.Project, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+projectColumns+` FROM projects WHERE charity_id = $1 ORDER BY created_at, id
	`, charityID)
	if err != nil {
		return nil, wrapErr("query projects", err)
	}
	defer rows.Close()

	var projects []db.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate projects", err)
	}
	return projects, nil
}

// InsertSkill inserts a new skill
func (t *tx) InsertSkill(ctx context.Context, skill *db.Skill) error {
	if _, err := t.tx.Exec(ctx, `INSERT INTO skills (id, name) VALUES ($1, $2)`, skill.ID, skill.Name); err != nil {
		return wrapErr("insert skill", err)
	}
	return nil
}

// GetSkill retrieves a skill by ID
func (t *tx) GetSkill(ctx context.Context, id string) (*db.Skill, error) {
	var s db.Skill
	if err := t.tx.QueryRow(ctx, `SELECT id, name FROM skills WHERE id = $1`, id).Scan(&s.ID, &s.Name); err != nil {
		return nil, wrapErr("get skill", err)
	}
	return &s, nil
}

// AddProjectSkill marks a skill as required by a project
func (t *tx) AddProjectSkill(ctx context.Context, projectID, skillID string) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO project_skills (project_id, skill_id) VALUES ($1, $2)
		ON CONFLICT (project_id, skill_id) DO NOTHING
	`, projectID, skillID)
	if err != nil {
		return wrapErr("add project skill", err)
	}
	return nil
}

// ListProjectSkills retrieves the skills required by a project
func (t *tx) ListProjectSkills(ctx context.Context, projectID string) ([]db.Skill, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT s.id, s.name FROM skills s
		JOIN project_skills ps ON ps.skill_id = s.id
		WHERE ps.project_id = $1
		ORDER BY s.name
	`, projectID)
	if err != nil {
		return nil, wrapErr("query project skills", err)
	}
	defer rows.Close()

	var skills []db.Skill
	for rows.Next() {
		var s db.Skill
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("failed to scan skill: %w", err)
		}
		skills = append(skills, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate project skills", err)
	}
	return skills, nil
}

// UpsertVolunteerSkill records or updates a volunteer's proficiency in a skill
func (t *tx) UpsertVolunteerSkill(ctx context.Context, skill *db.VolunteerSkill) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO volunteer_skills (volunteer_id, skill_id, proficiency) VALUES ($1, $2, $3)
		ON CONFLICT (volunteer_id, skill_id) DO UPDATE SET proficiency = EXCLUDED.proficiency
	`, skill.VolunteerID, skill.SkillID, skill.Proficiency)
	if err != nil {
		return wrapErr("upsert volunteer skill", err)
	}
	return nil
}

// ListVolunteerSkills retrieves the skills of a volunteer
func (t *tx) ListVolunteerSkills(ctx context.Context, volunteerID string) ([]db.VolunteerSkill, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT volunteer_id, skill_id, proficiency FROM volunteer_skills
		WHERE volunteer_id = $1 ORDER BY skill_id
	`, volunteerID)
	if err != nil {
		return nil, wrapErr("query volunteer skills", err)
	}
	defer rows.Close()

	var skills []db.VolunteerSkill
	for rows.Next() {
		var s db.VolunteerSkill
		if err := rows.Scan(&s.VolunteerID, &s.SkillID, &s.Proficiency); err != nil {
			return nil, fmt.Errorf("failed to scan volunteer skill: %w", err)
		}
		skills = append(skills, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate volunteer skills", err)
	}
	return skills, nil
}
