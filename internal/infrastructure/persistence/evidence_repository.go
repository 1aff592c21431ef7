package persistence

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/rowens2025/powervisualize/internal/domain/evidence"
	"github.com/rowens2025/powervisualize/internal/domain/shared"
)

// GormEvidenceRepository implements evidence.Repository over the Postgres
// evidence schema and its marts. It only reads.
type GormEvidenceRepository struct {
	db *gorm.DB
}

// NewGormEvidenceRepository creates a new GormEvidenceRepository
func NewGormEvidenceRepository(db *gorm.DB) *GormEvidenceRepository {
	return &GormEvidenceRepository{db: db}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", shared.ErrStoreUnavailable, op, err)
}

const listSkillsSQL = `SELECT id, name, confidence, aliases, summary FROM skills ORDER BY name`

// ListSkills returns the full skill catalog ordered by name
func (r *GormEvidenceRepository) ListSkills(ctx context.Context) ([]evidence.Skill, error) {
	var rows []skillRow
	if err := r.db.WithContext(ctx).Raw(listSkillsSQL).Scan(&rows).Error; err != nil {
		return nil, storeErr("list skills", err)
	}
	skills := make([]evidence.Skill, 0, len(rows))
	for _, row := range rows {
		s, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		skills = append(skills, s)
	}
	return skills, nil
}

const projectsForSkillSQL = `SELECT ` + projectColumns + `, ` + countsColumns + `,
       ps.proof_weight, ps.strength, ps.self_evidence
FROM project_skills ps
JOIN projects p ON p.id = ps.project_id
JOIN mart_project_counts c ON c.project_id = p.id
WHERE ps.skill_id = ? AND p.status = 'published'
ORDER BY ps.proof_weight DESC, p.slug`

// ProjectsForSkill returns every published project linked to the skill
func (r *GormEvidenceRepository) ProjectsForSkill(ctx context.Context, skillID int64) ([]evidence.ProjectMatch, error) {
	var rows []projectMatchRow
	if err := r.db.WithContext(ctx).Raw(projectsForSkillSQL, skillID).Scan(&rows).Error; err != nil {
		return nil, storeErr("projects for skill", err)
	}
	return toProjectMatches(rows)
}

const searchProjectsSQL = `SELECT * FROM (
    SELECT ` + projectColumns + `, ` + countsColumns + `,
           COALESCE((SELECT MAX(ps.proof_weight) FROM project_skills ps WHERE ps.project_id = p.id), 0) AS proof_weight,
           GREATEST(word_similarity(p.name, ?), word_similarity(p.slug, ?), similarity(p.summary, ?)) AS similarity
    FROM projects p
    JOIN mart_project_counts c ON c.project_id = p.id
    WHERE p.status = 'published'
) ranked
WHERE similarity >= ?
ORDER BY similarity DESC, slug
LIMIT ?`

// SearchProjects runs a trigram search over project name, slug and summary
func (r *GormEvidenceRepository) SearchProjects(ctx context.Context, text string, threshold float64, limit int) ([]evidence.ProjectMatch, error) {
	var rows []projectMatchRow
	err := r.db.WithContext(ctx).
		Raw(searchProjectsSQL, text, text, text, threshold, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, storeErr("search projects", err)
	}
	return toProjectMatches(rows)
}

const searchSkillsByNameSQL = `SELECT * FROM (
    SELECT id, name, confidence, aliases, summary, word_similarity(name, ?) AS similarity
    FROM skills
) ranked
WHERE similarity >= ?
ORDER BY similarity DESC, name
LIMIT ?`

// SearchSkillsByName runs a trigram search of skill names against text
func (r *GormEvidenceRepository) SearchSkillsByName(ctx context.Context, text string, threshold float64, limit int) ([]evidence.SkillMatch, error) {
	var rows []skillRow
	err := r.db.WithContext(ctx).
		Raw(searchSkillsByNameSQL, text, threshold, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, storeErr("search skills by name", err)
	}

	matches := make([]evidence.SkillMatch, 0, len(rows))
	for _, row := range rows {
		s, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		matches = append(matches, evidence.SkillMatch{
			Skill:      s,
			Kind:       evidence.MatchTrigram,
			Matched:    s.Name,
			Similarity: row.Similarity,
		})
	}
	return matches, nil
}

const searchSkillsByAliasSQL = `SELECT s.id, s.name, s.confidence, s.aliases, s.summary, a.alias AS matched
FROM skills s
CROSS JOIN LATERAL unnest(s.aliases) AS a(alias)
WHERE a.alias <> '' AND position(lower(a.alias) IN lower(?)) > 0
ORDER BY length(a.alias) DESC, s.name`

// SearchSkillsByAlias returns skills with an alias contained in text. The
// database does the substring prefilter; word boundaries are checked here so
// a short alias never matches inside a longer word. One match per skill, the
// longest alias winning.
func (r *GormEvidenceRepository) SearchSkillsByAlias(ctx context.Context, text string) ([]evidence.SkillMatch, error) {
	var rows []skillRow
	if err := r.db.WithContext(ctx).Raw(searchSkillsByAliasSQL, text).Scan(&rows).Error; err != nil {
		return nil, storeErr("search skills by alias", err)
	}

	normalized := shared.Normalize(text)
	seen := make(map[int64]struct{}, len(rows))
	matches := make([]evidence.SkillMatch, 0, len(rows))
	for _, row := range rows {
		if _, dup := seen[row.ID]; dup {
			continue
		}
		if !shared.ContainsPhrase(normalized, shared.Normalize(row.Matched.String)) {
			continue
		}
		s, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		seen[row.ID] = struct{}{}
		matches = append(matches, evidence.SkillMatch{Skill: s, Kind: evidence.MatchAlias, Matched: row.Matched.String})
	}
	return matches, nil
}

const projectsForSkillsSQL = `SELECT ` + projectColumns + `, ` + countsColumns + `,
       COUNT(ps.skill_id) AS matched_skills,
       MAX(ps.proof_weight) AS proof_weight,
       MIN(ps.strength) AS strength,
       BOOL_OR(ps.self_evidence) AS self_evidence
FROM project_skills ps
JOIN projects p ON p.id = ps.project_id
JOIN mart_project_counts c ON c.project_id = p.id
WHERE ps.skill_id = ANY(?) AND p.status = 'published'
GROUP BY p.id, c.skills_count, c.primary_skills_count, c.dashboard_pages, c.project_pages, c.writeup_pages
ORDER BY COUNT(ps.skill_id) DESC, SUM(ps.proof_weight) DESC, p.slug
LIMIT ?`

// ProjectsForSkills ranks published projects by how many of the skills they
// use, then by summed proof weight
func (r *GormEvidenceRepository) ProjectsForSkills(ctx context.Context, skillIDs []int64, limit int) ([]evidence.ProjectMatch, error) {
	if len(skillIDs) == 0 {
		return nil, nil
	}
	var rows []projectMatchRow
	err := r.db.WithContext(ctx).
		Raw(projectsForSkillsSQL, pq.Array(skillIDs), limit).
		Scan(&rows).Error
	if err != nil {
		return nil, storeErr("projects for skills", err)
	}
	return toProjectMatches(rows)
}

const dashboardPagesForSkillSQL = `SELECT DISTINCT pg.id, pg.slug, pg.title, pg.url, pg.page_type
FROM project_skills ps
JOIN projects p ON p.id = ps.project_id AND p.status = 'published'
JOIN project_pages pp ON pp.project_id = p.id
JOIN pages pg ON pg.id = pp.page_id
WHERE ps.skill_id = ? AND pg.page_type = 'dashboard'
ORDER BY pg.title, pg.id`

// DashboardPagesForSkill returns distinct dashboard pages reachable from the skill
func (r *GormEvidenceRepository) DashboardPagesForSkill(ctx context.Context, skillID int64) ([]evidence.Page, error) {
	var rows []pageRow
	if err := r.db.WithContext(ctx).Raw(dashboardPagesForSkillSQL, skillID).Scan(&rows).Error; err != nil {
		return nil, storeErr("dashboard pages for skill", err)
	}
	pages := make([]evidence.Page, 0, len(rows))
	for _, row := range rows {
		pg, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		pages = append(pages, pg)
	}
	return pages, nil
}

const projectProfilesSQL = `SELECT f.project_id AS id, f.slug, f.name, f.summary, f.status, f.repo_url, f.demo_url, f.self_referential,
       ` + countsColumns + `, f.pages, f.skills
FROM mart_project_profile f
JOIN mart_project_counts c ON c.project_id = f.project_id
WHERE f.slug = ANY(?)`

// ProjectProfiles returns profiles for the given slugs in the given order.
// Unknown or unpublished slugs are skipped.
func (r *GormEvidenceRepository) ProjectProfiles(ctx context.Context, slugs []string) ([]evidence.ProjectProfile, error) {
	if len(slugs) == 0 {
		return nil, nil
	}
	var rows []profileRow
	if err := r.db.WithContext(ctx).Raw(projectProfilesSQL, pq.Array(slugs)).Scan(&rows).Error; err != nil {
		return nil, storeErr("project profiles", err)
	}

	bySlug := make(map[string]evidence.ProjectProfile, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		bySlug[p.Project.Slug] = p
	}

	profiles := make([]evidence.ProjectProfile, 0, len(bySlug))
	for _, slug := range slugs {
		if p, ok := bySlug[slug]; ok {
			profiles = append(profiles, p)
			delete(bySlug, slug)
		}
	}
	return profiles, nil
}

const statsSQL = `SELECT
    (SELECT COUNT(*) FROM projects WHERE status = 'published') AS published_projects,
    (SELECT COUNT(*) FROM skills WHERE confidence = 'expert') AS expert_skills,
    (SELECT COUNT(*) FROM skills WHERE confidence = 'strong') AS strong_skills,
    (SELECT COUNT(DISTINCT pp.page_id)
       FROM project_pages pp
       JOIN projects p ON p.id = pp.project_id AND p.status = 'published'
       JOIN pages pg ON pg.id = pp.page_id
      WHERE pg.page_type = 'dashboard') AS dashboard_pages`

// Stats returns global portfolio counts
func (r *GormEvidenceRepository) Stats(ctx context.Context) (evidence.PortfolioStats, error) {
	var stats evidence.PortfolioStats
	if err := r.db.WithContext(ctx).Raw(statsSQL).Scan(&stats).Error; err != nil {
		return evidence.PortfolioStats{}, storeErr("stats", err)
	}
	return stats, nil
}

const publicPersonalitySQL = `SELECT id, category, subcategory, value
FROM personality_attributes
WHERE public
ORDER BY category, subcategory, id`

// PublicPersonality returns personality rows flagged public
func (r *GormEvidenceRepository) PublicPersonality(ctx context.Context) ([]evidence.PersonalityAttribute, error) {
	var attrs []evidence.PersonalityAttribute
	if err := r.db.WithContext(ctx).Raw(publicPersonalitySQL).Scan(&attrs).Error; err != nil {
		return nil, storeErr("public personality", err)
	}
	return attrs, nil
}

const auditProjectsSQL = `SELECT ` + projectColumns + `,
       (SELECT COUNT(*) FROM project_skills ps WHERE ps.project_id = p.id) AS skill_count,
       (SELECT COUNT(*) FROM project_pages pp WHERE pp.project_id = p.id) AS page_count
FROM projects p
ORDER BY p.slug`

// AuditProjects returns every project, drafts included, with link counts.
// Rows are not validated here; the audit reports what is wrong with them.
func (r *GormEvidenceRepository) AuditProjects(ctx context.Context) ([]evidence.ProjectAudit, error) {
	var rows []auditRow
	if err := r.db.WithContext(ctx).Raw(auditProjectsSQL).Scan(&rows).Error; err != nil {
		return nil, storeErr("audit projects", err)
	}
	out := make([]evidence.ProjectAudit, 0, len(rows))
	for _, row := range rows {
		out = append(out, evidence.ProjectAudit{
			Project: evidence.Project{
				ID:              row.ID,
				Slug:            row.Slug,
				Name:            row.Name,
				Summary:         row.Summary,
				Status:          evidence.ProjectStatus(row.Status),
				RepoURL:         row.RepoURL.String,
				DemoURL:         row.DemoURL.String,
				SelfReferential: row.SelfReferential,
			},
			SkillCount: row.SkillCount,
			PageCount:  row.PageCount,
		})
	}
	return out, nil
}

// Ping checks connectivity
func (r *GormEvidenceRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return storeErr("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

func toProjectMatches(rows []projectMatchRow) ([]evidence.ProjectMatch, error) {
	out := make([]evidence.ProjectMatch, 0, len(rows))
	for _, row := range rows {
		m, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

var _ evidence.Repository = (*GormEvidenceRepository)(nil)
