package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jakechorley/charity-hub/pkg/db"
)

const projectColumns = `id, charity_id, title, description, status, required_volunteers, start_date, end_date, created_at`

func scanProject(row scanner) (*db.Project, error) {
	var p db.Project
	var status string
	var startDate, endDate sql.NullInt64
	var createdAt int64
	if err := row.Scan(&p.ID, &p.CharityID, &p.Title, &p.Description, &status,
		&p.RequiredVolunteers, &startDate, &endDate, &createdAt); err != nil {
		return nil, err
	}
	p.Status = db.ProjectStatus(status)
	p.StartDate = timePtr(startDate)
	p.EndDate = timePtr(endDate)
	p.CreatedAt = fromMillis(createdAt)
	return &p, nil
}

func (t *tx) InsertProject(ctx context.Context, project *db.Project) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO projects (id, charity_id, title, description, status, required_volunteers, start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, project.ID, project.CharityID, project.Title, project.Description, string(project.Status),
		project.RequiredVolunteers, nullMillis(project.StartDate), nullMillis(project.EndDate), toMillis(project.CreatedAt))
	if err != nil {
		return wrapErr("insert project", err)
	}
	return nil
}

func (t *tx) GetProject(ctx context.Context, id string) (*db.Project, error) {
	p, err := scanProject(t.tx.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if err != nil {
		return nil, wrapErr("get project", err)
	}
	return p, nil
}

func (t *tx) SetProjectStatus(ctx context.Context, id string, status db.ProjectStatus) error {
	return t.execOne(ctx, "set project status", `UPDATE projects SET status = ? WHERE id = ?`, string(status), id)
}

func (t *tx) DeleteProject(ctx context.Context, id string) error {
	return t.execOne(ctx, "delete project", `DELETE FROM projects WHERE id = ?`, id)
}

func (t *tx) ListProjectsByCharity(ctx context.Context, charityID string) ([]db.Project, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+projectColumns+` FROM projects WHERE charity_id = ? ORDER BY created_at, id
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

func (t *tx) InsertSkill(ctx context.Context, skill *db.Skill) error {
	if _, err := t.tx.ExecContext(ctx, `INSERT INTO skills (id, name) VALUES (?, ?)`, skill.ID, skill.Name); err != nil {
		return wrapErr("insert skill", err)
	}
	return nil
}

func (t *tx) GetSkill(ctx context.Context, id string) (*db.Skill, error) {
	var s db.Skill
	if err := t.tx.QueryRowContext(ctx, `SELECT id, name FROM skills WHERE id = ?`, id).Scan(&s.ID, &s.Name); err != nil {
		return nil, wrapErr("get skill", err)
	}
	return &s, nil
}

func (t *tx) AddProjectSkill(ctx context.Context, projectID, skillID string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO project_skills (project_id, skill_id) VALUES (?, ?)
		ON CONFLICT (project_id, skill_id) DO NOTHING
	`, projectID, skillID)
	if err != nil {
		return wrapErr("add project skill", err)
	}
	return nil
}

func (t *tx) ListProjectSkills(ctx context.Context, projectID string) ([]db.Skill, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT s.id, s.name FROM skills s
		JOIN project_skills ps ON ps.skill_id = s.id
		WHERE ps.project_id = ?
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

func (t *tx) UpsertVolunteerSkill(ctx context.Context, skill *db.VolunteerSkill) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO volunteer_skills (volunteer_id, skill_id, proficiency) VALUES (?, ?, ?)
		ON CONFLICT (volunteer_id, skill_id) DO UPDATE SET proficiency = excluded.proficiency
	`, skill.VolunteerID, skill.SkillID, skill.Proficiency)
	if err != nil {
		return wrapErr("upsert volunteer skill", err)
	}
	return nil
}

func (t *tx) ListVolunteerSkills(ctx context.Context, volunteerID string) ([]db.VolunteerSkill, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT volunteer_id, skill_id, proficiency FROM volunteer_skills
		WHERE volunteer_id = ? ORDER BY skill_id
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
