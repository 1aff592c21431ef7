package retrieval

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/rowens2025/powervisualize/internal/domain/evidence"
	"github.com/rowens2025/powervisualize/internal/domain/ranking"
)

// Outcome tells the driver whether to run the next stage.
type Outcome int

const (
	Continue Outcome = iota
	Resolved
)

// Stage is one step of the pipeline. A returned error aborts the run and
// degrades the result.
type Stage interface {
	Name() string
	Run(ctx context.Context, s *State) (Outcome, error)
}

type stageFunc struct {
	name string
	fn   func(context.Context, *State) (Outcome, error)
}

func (f stageFunc) Name() string { return f.name }

func (f stageFunc) Run(ctx context.Context, s *State) (Outcome, error) { return f.fn(ctx, s) }

// NewStage adapts a function to a Stage.
func NewStage(name string, fn func(context.Context, *State) (Outcome, error)) Stage {
	return stageFunc{name: name, fn: fn}
}

// State is threaded through the stages of one run.
type State struct {
	Query        Query
	Catalog      []evidence.Skill
	Skill        *evidence.SkillMatch
	Related      []evidence.SkillMatch
	Projects     []ranking.Scored
	Profiles     []evidence.ProjectProfile
	Dashboards   []evidence.Page
	SkillSummary string
	Fallback     *evidence.FallbackSkill
	Stats        evidence.PortfolioStats
	Resolution   Resolution
	Degraded     bool
	Trace        Trace

	sources map[string]struct{}
}

func newState(q Query) *State {
	return &State{Query: q, Resolution: ResolutionNone, sources: map[string]struct{}{}}
}

// UseSource records that an evidence source contributed to the result.
func (s *State) UseSource(name string) {
	s.sources[name] = struct{}{}
}

// RankContext returns the ranking context for the current state.
func (s *State) RankContext() ranking.Context {
	ctx := ranking.Context{AboutAssistant: s.Query.AboutAssistant}
	if s.Skill != nil {
		ctx.SkillName = s.Skill.Skill.Name
	}
	return ctx
}

func (s *State) useFallback(fb evidence.FallbackSkill) {
	s.Fallback = &fb
	if s.SkillSummary == "" {
		s.SkillSummary = fb.Summary
	}
	s.Resolution = ResolutionFallbackFile
	s.UseSource(SourceFallback)
}

func (s *State) result() *Result {
	sources := make([]string, 0, len(s.sources))
	for _, name := range []string{SourceProfiles, SourceCounts, SourceSkills, SourceFallback} {
		if _, ok := s.sources[name]; ok {
			sources = append(sources, name)
		}
	}
	return &Result{
		Resolution:    s.Resolution,
		Skill:         s.Skill,
		RelatedSkills: s.Related,
		Projects:      s.Projects,
		Profiles:      s.Profiles,
		Dashboards:    s.Dashboards,
		SkillSummary:  s.SkillSummary,
		Fallback:      s.Fallback,
		Stats:         s.Stats,
		Trace:         s.Trace.Lines(),
		Degraded:      s.Degraded,
		Sources:       sources,
	}
}

// DefaultStages returns the standard pipeline in order.
func (e *Engine) DefaultStages() []Stage {
	return []Stage{
		NewStage("detect_skill", e.detectSkill),
		NewStage("skill_projects", e.skillProjects),
		NewStage("dashboard_density", e.dashboardDensity),
		NewStage("fuzzy_projects", e.fuzzyProjects),
		NewStage("related_skills", e.relatedSkills),
		NewStage("derived_projects", e.derivedProjects),
		NewStage("fallback_file", e.fallbackFile),
	}
}

func (e *Engine) detectSkill(ctx context.Context, s *State) (Outcome, error) {
	catalog, err := e.repo.ListSkills(ctx)
	if err != nil {
		return Continue, err
	}
	s.Catalog = catalog
	s.UseSource(SourceSkills)

	if m, ok := evidence.DetectSkill(s.Query.Question, catalog, e.cfg.Expansions); ok {
		s.Skill = &m
		s.SkillSummary = m.Skill.Summary
	}
	return Continue, nil
}

func (e *Engine) skillProjects(ctx context.Context, s *State) (Outcome, error) {
	if s.Skill == nil {
		return Continue, nil
	}
	matches, err := e.repo.ProjectsForSkill(ctx, s.Skill.Skill.ID)
	if err != nil {
		return Continue, err
	}

	rctx := s.RankContext()
	ranked := ranking.Top(e.policy.Rank(matches, rctx), e.cfg.ProjectLimit)
	if ranking.OnlyIllegitimateMeta(ranked, rctx) {
		e.logger.Debug("Discarding self-referential evidence", zap.String("skill", rctx.SkillName))
		ranked = nil
	}
	if len(ranked) == 0 {
		return Continue, nil
	}

	s.Projects = ranked
	s.UseSource(SourceCounts)
	s.Trace.Addf("Found %s linked to %s: %s",
		plural(len(ranked), "project", "projects"), s.Skill.Skill.Name, joinSlugs(ranked))
	return Continue, nil
}

func (e *Engine) dashboardDensity(ctx context.Context, s *State) (Outcome, error) {
	if s.Skill == nil || len(s.Projects) == 0 {
		return Continue, nil
	}
	pages, err := e.repo.DashboardPagesForSkill(ctx, s.Skill.Skill.ID)
	if err != nil {
		return Continue, err
	}

	if len(pages) < e.cfg.DashboardDensity {
		s.Resolution = ResolutionSkill
		return Resolved, nil
	}

	s.Dashboards = pages
	if s.SkillSummary == "" && e.fallback != nil {
		if fb, ok := e.fallback.Find(s.Skill.Skill.Name); ok && fb.Summary != "" {
			s.SkillSummary = fb.Summary
			s.UseSource(SourceFallback)
		}
	}
	s.Resolution = ResolutionDashboardIndex
	s.Trace.Addf("Found %s built with %s", plural(len(pages), "dashboard", "dashboards"), s.Skill.Skill.Name)
	return Resolved, nil
}

func (e *Engine) fuzzyProjects(ctx context.Context, s *State) (Outcome, error) {
	matches, err := e.repo.SearchProjects(ctx, s.Query.Question, e.cfg.ProjectSimilarity, e.cfg.FuzzyLimit)
	if err != nil {
		return Continue, err
	}

	rctx := s.RankContext()
	kept := make([]ranking.Scored, 0, len(matches))
	for _, m := range matches {
		if m.Project.SelfReferential && !s.Query.AboutAssistant {
			continue
		}
		kept = append(kept, e.policy.Score(m, rctx))
	}
	if len(kept) == 0 {
		return Continue, nil
	}

	s.Projects = kept
	s.Resolution = ResolutionFuzzyProject
	s.UseSource(SourceCounts)
	s.Trace.Addf("Found %s matching the question: %s", plural(len(kept), "project", "projects"), joinSlugs(kept))
	return Resolved, nil
}

func (e *Engine) relatedSkills(ctx context.Context, s *State) (Outcome, error) {
	byName, err := e.repo.SearchSkillsByName(ctx, s.Query.Question, e.cfg.SkillSimilarity, e.cfg.SkillLimit)
	if err != nil {
		return Continue, err
	}
	byAlias, err := e.repo.SearchSkillsByAlias(ctx, s.Query.Question)
	if err != nil {
		return Continue, err
	}
	s.Related = evidence.MergeSkillMatches(byName, byAlias)
	return Continue, nil
}

func (e *Engine) derivedProjects(ctx context.Context, s *State) (Outcome, error) {
	if len(s.Related) == 0 {
		return Continue, nil
	}
	ids := make([]int64, 0, len(s.Related))
	names := make([]string, 0, len(s.Related))
	for _, m := range s.Related {
		ids = append(ids, m.Skill.ID)
		names = append(names, m.Skill.Name)
	}

	matches, err := e.repo.ProjectsForSkills(ctx, ids, e.cfg.ProjectLimit)
	if err != nil {
		return Continue, err
	}

	rctx := s.RankContext()
	scored := make([]ranking.Scored, 0, len(matches))
	for _, m := range matches {
		scored = append(scored, e.policy.Score(m, rctx))
	}
	scored = ranking.Top(scored, e.cfg.ProjectLimit)
	if len(scored) == 0 || ranking.OnlyIllegitimateMeta(scored, rctx) {
		return Continue, nil
	}

	s.Projects = scored
	s.Resolution = ResolutionSkillDerived
	s.UseSource(SourceCounts)
	s.Trace.Addf("Found %s using %s: %s",
		plural(len(scored), "project", "projects"), strings.Join(names, ", "), joinSlugs(scored))
	return Resolved, nil
}

// fallbackFile consults the curated file for a detected skill that no
// project or dashboard demonstrates. Without a detected skill nothing is
// looked up: the file never supplies evidence for a question the store
// could not place.
func (e *Engine) fallbackFile(_ context.Context, s *State) (Outcome, error) {
	if e.fallback == nil || s.Skill == nil {
		return Resolved, nil
	}

	fb, ok := e.fallback.Find(s.Skill.Skill.Name)
	if !ok {
		return Resolved, nil
	}

	s.useFallback(fb)
	s.Trace.Addf("No published project links %s; used the curated summary", fb.Name)
	return Resolved, nil
}

func joinSlugs(scored []ranking.Scored) string {
	slugs := make([]string, 0, len(scored))
	for _, s := range scored {
		slugs = append(slugs, s.Project.Slug)
	}
	return strings.Join(slugs, ", ")
}
