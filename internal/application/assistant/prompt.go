package assistant

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rowens2025/powervisualize/internal/application/retrieval"
	"github.com/rowens2025/powervisualize/internal/domain/evidence"
	"github.com/rowens2025/powervisualize/internal/domain/generation"
	"github.com/rowens2025/powervisualize/internal/domain/intent"
	"github.com/rowens2025/powervisualize/internal/domain/ranking"
	"github.com/rowens2025/powervisualize/internal/domain/shared"
)

// Bundle is the evidence the generator may use, serialized into the prompt.
type Bundle struct {
	Person            string                  `json:"person"`
	Resolution        string                  `json:"resolution"`
	Stats             evidence.PortfolioStats `json:"portfolio_stats"`
	MatchedSkill      *BundleSkill            `json:"matched_skill,omitempty"`
	ConfirmableSkills []string                `json:"confirmable_skills"`
	Projects          []BundleProject         `json:"projects"`
	Dashboards        []BundlePage            `json:"dashboards,omitempty"`
	EvidenceLinks     []evidence.Link         `json:"evidence_links"`
	Degraded          bool                    `json:"degraded,omitempty"`
}

// BundleSkill describes the detected skill.
type BundleSkill struct {
	Name       string `json:"name"`
	Confidence string `json:"confidence,omitempty"`
	Summary    string `json:"summary,omitempty"`
	MatchedBy  string `json:"matched_by"`
}

// BundleProject is one ranked project profile.
type BundleProject struct {
	Slug     string                  `json:"slug"`
	Name     string                  `json:"name"`
	Summary  string                  `json:"summary,omitempty"`
	Category string                  `json:"category,omitempty"`
	Counts   BundleCounts            `json:"counts"`
	Skills   []evidence.ProfileSkill `json:"skills"`
	Pages    []evidence.ProfilePage  `json:"pages"`
	RepoURL  string                  `json:"repo_url,omitempty"`
	DemoURL  string                  `json:"demo_url,omitempty"`
}

// BundleCounts mirrors the counts mart row.
type BundleCounts struct {
	Skills         int `json:"skills"`
	PrimarySkills  int `json:"primary_skills"`
	DashboardPages int `json:"dashboard_pages"`
	ProjectPages   int `json:"project_pages"`
	WriteupPages   int `json:"writeup_pages"`
}

// BundlePage is a dashboard page reachable from the detected skill.
type BundlePage struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// BuildBundle assembles the prompt evidence from a retrieval result.
func BuildBundle(person string, res *retrieval.Result, confirmed []string, links []evidence.Link) Bundle {
	b := Bundle{
		Person:            person,
		Resolution:        string(res.Resolution),
		Stats:             res.Stats,
		ConfirmableSkills: confirmed,
		Projects:          make([]BundleProject, 0, len(res.Profiles)),
		EvidenceLinks:     links,
		Degraded:          res.Degraded,
	}
	if res.Skill != nil {
		b.MatchedSkill = &BundleSkill{
			Name:       res.Skill.Skill.Name,
			Confidence: string(res.Skill.Skill.Confidence),
			Summary:    res.SkillSummary,
			MatchedBy:  string(res.Skill.Kind),
		}
	}

	categories := make(map[string]ranking.Category, len(res.Projects))
	for _, p := range res.Projects {
		categories[p.Project.Slug] = p.Category
	}
	for _, p := range res.Profiles {
		b.Projects = append(b.Projects, BundleProject{
			Slug:     p.Project.Slug,
			Name:     p.Project.Name,
			Summary:  p.Project.Summary,
			Category: string(categories[p.Project.Slug]),
			Counts: BundleCounts{
				Skills:         p.Counts.SkillsCount,
				PrimarySkills:  p.Counts.PrimarySkillsCount,
				DashboardPages: p.Counts.DashboardPages,
				ProjectPages:   p.Counts.ProjectPages,
				WriteupPages:   p.Counts.WriteupPages,
			},
			Skills:  p.Skills,
			Pages:   p.Pages,
			RepoURL: p.Project.RepoURL,
			DemoURL: p.Project.DemoURL,
		})
	}
	for _, pg := range res.Dashboards {
		b.Dashboards = append(b.Dashboards, BundlePage{Title: pg.Title, URL: pg.URL})
	}
	return b
}

const contractTemplate = `You answer questions about %[1]s's professional work for visitors of %[1]s's portfolio.
Use ONLY the evidence bundle below. Rules:
1. Only confirm skills listed in confirmable_skills. Never claim any other skill.
2. Every skill you confirm must be backed by at least one link from evidence_links.
3. List everything the question asks about that the bundle cannot confirm in missing_info.
4. Do not invent projects, employers, dates, numbers or links. Never include phone numbers.
5. Keep the answer under 120 words, in plain prose, third person.
Respond with a single JSON object and nothing else:
{"answer": string, "skills_confirmed": [string], "missing_info": [string]}

Evidence bundle:
%[2]s`

// buildMessages renders the contract prompt, the trimmed history and the
// question.
func (s *Service) buildMessages(b Bundle, history []intent.Turn, question string) ([]generation.Message, error) {
	body, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode evidence bundle: %w", err)
	}

	turns := TrimHistory(history, s.cfg.MaxHistoryTurns, s.cfg.MaxTurnRunes)
	msgs := make([]generation.Message, 0, len(turns)+2)
	msgs = append(msgs, generation.Message{
		Role:    generation.RoleSystem,
		Content: fmt.Sprintf(contractTemplate, s.cfg.PersonName, body),
	})
	for _, t := range turns {
		msgs = append(msgs, generation.Message{Role: t.Role, Content: t.Content})
	}
	msgs = append(msgs, generation.Message{Role: generation.RoleUser, Content: question})
	return msgs, nil
}

// TrimHistory keeps the last max user and assistant turns, each cut to
// maxRunes. Turns with other roles or empty content are dropped.
func TrimHistory(history []intent.Turn, max, maxRunes int) []intent.Turn {
	kept := make([]intent.Turn, 0, len(history))
	for _, t := range history {
		role := strings.ToLower(strings.TrimSpace(t.Role))
		content := strings.TrimSpace(t.Content)
		if content == "" || (role != generation.RoleUser && role != generation.RoleAssistant) {
			continue
		}
		kept = append(kept, intent.Turn{Role: role, Content: shared.Truncate(content, maxRunes)})
	}
	if max >= 0 && len(kept) > max {
		kept = kept[len(kept)-max:]
	}
	return kept
}
