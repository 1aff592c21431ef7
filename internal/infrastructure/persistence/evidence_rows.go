package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"gorm.io/datatypes"

	"github.com/rowens2025/powervisualize/internal/domain/evidence"
	"github.com/rowens2025/powervisualize/internal/domain/shared"
)

// projectColumns is the select list scanned into projectRow
const projectColumns = `p.id, p.slug, p.name, p.summary, p.status, p.repo_url, p.demo_url, p.self_referential`

// countsColumns is the select list scanned into countsRow
const countsColumns = `c.skills_count, c.primary_skills_count, c.dashboard_pages, c.project_pages, c.writeup_pages`

type projectRow struct {
	ID              int64
	Slug            string
	Name            string
	Summary         string
	Status          string
	RepoURL         sql.NullString `gorm:"column:repo_url"`
	DemoURL         sql.NullString `gorm:"column:demo_url"`
	SelfReferential bool
}

func (r projectRow) toDomain() (evidence.Project, error) {
	p := evidence.Project{
		ID:              r.ID,
		Slug:            r.Slug,
		Name:            r.Name,
		Summary:         r.Summary,
		Status:          evidence.ProjectStatus(r.Status),
		RepoURL:         r.RepoURL.String,
		DemoURL:         r.DemoURL.String,
		SelfReferential: r.SelfReferential,
	}
	if err := p.Validate(); err != nil {
		return evidence.Project{}, fmt.Errorf("%w: %w", shared.ErrInvariantViolated, err)
	}
	return p, nil
}

type countsRow struct {
	SkillsCount        int
	PrimarySkillsCount int
	DashboardPages     int
	ProjectPages       int
	WriteupPages       int
}

func (r countsRow) toDomain() evidence.ProjectCounts {
	return evidence.ProjectCounts{
		SkillsCount:        r.SkillsCount,
		PrimarySkillsCount: r.PrimarySkillsCount,
		DashboardPages:     r.DashboardPages,
		ProjectPages:       r.ProjectPages,
		WriteupPages:       r.WriteupPages,
	}
}

// projectMatchRow is a project candidate with its counts mart row
type projectMatchRow struct {
	projectRow
	countsRow
	ProofWeight   int
	Strength      sql.NullString
	SelfEvidence  bool
	MatchedSkills int
	Similarity    float64
}

func (r projectMatchRow) toDomain() (evidence.ProjectMatch, error) {
	p, err := r.projectRow.toDomain()
	if err != nil {
		return evidence.ProjectMatch{}, err
	}
	return evidence.ProjectMatch{
		Project:       p,
		Counts:        r.countsRow.toDomain(),
		ProofWeight:   r.ProofWeight,
		Strength:      evidence.Strength(r.Strength.String),
		SelfEvidence:  r.SelfEvidence,
		MatchedSkills: r.MatchedSkills,
		Similarity:    r.Similarity,
	}, nil
}

type skillRow struct {
	ID         int64
	Name       string
	Confidence string
	Aliases    pq.StringArray `gorm:"type:text[]"`
	Summary    sql.NullString
	Similarity float64
	Matched    sql.NullString
}

func (r skillRow) toDomain() (evidence.Skill, error) {
	s := evidence.Skill{
		ID:         r.ID,
		Name:       r.Name,
		Confidence: evidence.Confidence(r.Confidence),
		Aliases:    []string(r.Aliases),
		Summary:    r.Summary.String,
	}
	if err := s.Validate(); err != nil {
		return evidence.Skill{}, fmt.Errorf("%w: %w", shared.ErrInvariantViolated, err)
	}
	return s, nil
}

type pageRow struct {
	ID       int64
	Slug     string
	Title    string
	URL      string `gorm:"column:url"`
	PageType string
}

func (r pageRow) toDomain() (evidence.Page, error) {
	pt := evidence.PageType(r.PageType)
	if !pt.IsValid() {
		return evidence.Page{}, fmt.Errorf("%w: page %s: invalid type %q", shared.ErrInvariantViolated, r.Slug, r.PageType)
	}
	return evidence.Page{ID: r.ID, Slug: r.Slug, Title: r.Title, URL: r.URL, Type: pt}, nil
}

// profileRow is one row of mart_project_profile joined to its counts
type profileRow struct {
	projectRow
	countsRow
	Pages  datatypes.JSON
	Skills datatypes.JSON
}

func (r profileRow) toDomain() (evidence.ProjectProfile, error) {
	p, err := r.projectRow.toDomain()
	if err != nil {
		return evidence.ProjectProfile{}, err
	}
	profile := evidence.ProjectProfile{Project: p, Counts: r.countsRow.toDomain()}

	if len(r.Pages) > 0 {
		if err := json.Unmarshal(r.Pages, &profile.Pages); err != nil {
			return evidence.ProjectProfile{}, fmt.Errorf("decode pages for %s: %w", r.Slug, err)
		}
	}
	if len(r.Skills) > 0 {
		if err := json.Unmarshal(r.Skills, &profile.Skills); err != nil {
			return evidence.ProjectProfile{}, fmt.Errorf("decode skills for %s: %w", r.Slug, err)
		}
	}
	for _, pg := range profile.Pages {
		if !pg.Type.IsValid() {
			return evidence.ProjectProfile{}, fmt.Errorf("%w: project %s: page %s has invalid type %q",
				shared.ErrInvariantViolated, r.Slug, pg.Slug, pg.Type)
		}
	}
	return profile, nil
}

type auditRow struct {
	projectRow
	SkillCount int
	PageCount  int
}
