// Package retrieval resolves a question to ranked evidence through an
// ordered pipeline of stages. A store failure at any stage degrades the
// result to the curated fallback file.
package retrieval

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rowens2025/powervisualize/internal/domain/evidence"
	"github.com/rowens2025/powervisualize/internal/domain/ranking"
	"github.com/rowens2025/powervisualize/internal/domain/shared"
	"github.com/rowens2025/powervisualize/internal/infrastructure/telemetry"
)

// ErrStoreUnavailable wraps every failure of the evidence store.
var ErrStoreUnavailable = shared.ErrStoreUnavailable

// Resolution names the stage that produced the final evidence.
type Resolution string

const (
	ResolutionSkill          Resolution = "skill"
	ResolutionDashboardIndex Resolution = "dashboard_index"
	ResolutionFuzzyProject   Resolution = "fuzzy_project"
	ResolutionSkillDerived   Resolution = "skill_derived"
	ResolutionFallbackFile   Resolution = "fallback_file"
	ResolutionNone           Resolution = "none"
)

// Evidence sources reported in response metadata.
const (
	SourceProfiles    = "mart_project_profile"
	SourceCounts      = "mart_project_counts"
	SourceSkills      = "skills"
	SourceFallback    = "fallback_file"
	SourcePersonality = "personality"
)

// Query is the input of a retrieval run.
type Query struct {
	Question       string
	AboutAssistant bool
}

// Result is the evidence selected for a question.
type Result struct {
	Resolution    Resolution
	Skill         *evidence.SkillMatch
	RelatedSkills []evidence.SkillMatch
	Projects      []ranking.Scored
	Profiles      []evidence.ProjectProfile
	Dashboards    []evidence.Page
	SkillSummary  string
	Fallback      *evidence.FallbackSkill
	Stats         evidence.PortfolioStats
	Trace         []string
	Degraded      bool
	Sources       []string
}

// ProjectSlugs returns the slugs of the selected projects in rank order.
func (r *Result) ProjectSlugs() []string {
	out := make([]string, 0, len(r.Projects))
	for _, p := range r.Projects {
		out = append(out, p.Project.Slug)
	}
	return out
}

// SkillName returns the detected skill name, or "".
func (r *Result) SkillName() string {
	if r.Skill == nil {
		return ""
	}
	return r.Skill.Skill.Name
}

// Config holds retrieval thresholds and limits.
type Config struct {
	ProjectSimilarity float64
	SkillSimilarity   float64
	DashboardDensity  int
	ProjectLimit      int
	FuzzyLimit        int
	SkillLimit        int
	Expansions        []evidence.Expansion
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ProjectSimilarity: 0.3,
		SkillSimilarity:   0.3,
		DashboardDensity:  3,
		ProjectLimit:      3,
		FuzzyLimit:        5,
		SkillLimit:        5,
		Expansions:        evidence.DefaultExpansions,
	}
}

// Engine runs the stage pipeline.
type Engine struct {
	repo     evidence.Repository
	fallback evidence.FallbackSource
	policy   ranking.Policy
	cfg      Config
	stages   []Stage
	logger   *zap.Logger
	metrics  *telemetry.AssistantMetrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics records a duration per run.
func WithMetrics(m *telemetry.AssistantMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// withStages replaces the default pipeline.
func withStages(stages ...Stage) Option {
	return func(e *Engine) {
		e.stages = stages
	}
}

// NewEngine creates an engine. fallback may be nil.
func NewEngine(repo evidence.Repository, fallback evidence.FallbackSource, policy ranking.Policy, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		repo:     repo,
		fallback: fallback,
		policy:   policy,
		cfg:      cfg,
		logger:   zap.NewNop(),
	}
	e.stages = e.DefaultStages()
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Retrieve runs the pipeline for q. Store failures never surface as errors;
// they degrade the result. Only cancellation of ctx is returned.
func (e *Engine) Retrieve(ctx context.Context, q Query) (*Result, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "retrieval", "retrieve")
	defer span.End()
	start := time.Now()

	s := newState(q)
	if err := e.run(ctx, s); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			telemetry.RecordError(span, ctxErr)
			return nil, ctxErr
		}
		telemetry.RecordError(span, err)
		e.degrade(s, err)
	}

	res := s.result()
	telemetry.SetAttributes(span,
		telemetry.AttrResolution.String(string(res.Resolution)),
		telemetry.AttrProjectCount.Int(len(res.Projects)),
		telemetry.AttrDegraded.Bool(res.Degraded),
		telemetry.AttrSkill.String(res.SkillName()),
	)
	e.metrics.RecordRetrieval(ctx, string(res.Resolution), res.Degraded, time.Since(start))
	e.logger.Debug("Retrieval finished",
		zap.String("resolution", string(res.Resolution)),
		zap.String("skill", res.SkillName()),
		zap.Int("projects", len(res.Projects)),
		zap.Bool("degraded", res.Degraded),
	)
	return res, nil
}

func (e *Engine) run(ctx context.Context, s *State) error {
	stats, err := e.repo.Stats(ctx)
	if err != nil {
		return err
	}
	s.Stats = stats

	for _, st := range e.stages {
		var (
			out    Outcome
			runErr error
		)
		telemetry.WithProfilingLabels(ctx, map[string]string{"retrieval_stage": st.Name()}, func(ctx context.Context) {
			ctx, span := telemetry.StartServiceSpan(ctx, "retrieval", st.Name(),
				telemetry.AttrStage.String(st.Name()))
			defer span.End()
			out, runErr = st.Run(ctx, s)
			telemetry.RecordError(span, runErr)
		})
		if runErr != nil {
			return runErr
		}
		if out == Resolved {
			break
		}
	}
	return e.loadProfiles(ctx, s)
}

// loadProfiles fetches the evidence bundle unit for every selected project.
func (e *Engine) loadProfiles(ctx context.Context, s *State) error {
	if len(s.Projects) == 0 {
		return nil
	}
	slugs := make([]string, 0, len(s.Projects))
	for _, p := range s.Projects {
		slugs = append(slugs, p.Project.Slug)
	}
	profiles, err := e.repo.ProjectProfiles(ctx, slugs)
	if err != nil {
		return err
	}
	s.Profiles = profiles
	s.UseSource(SourceProfiles)
	return nil
}

// degrade discards store-derived evidence and resolves against the
// fallback file instead.
func (e *Engine) degrade(s *State, cause error) {
	if !errors.Is(cause, ErrStoreUnavailable) {
		cause = errors.Join(ErrStoreUnavailable, cause)
	}
	e.logger.Warn("Evidence store unavailable, degrading to fallback file", zap.Error(cause))

	skillName := ""
	if s.Skill != nil {
		skillName = s.Skill.Skill.Name
	}
	s.Skill = nil
	s.Related = nil
	s.Projects = nil
	s.Profiles = nil
	s.Dashboards = nil
	s.SkillSummary = ""
	s.Stats = evidence.PortfolioStats{}
	s.Degraded = true
	s.Resolution = ResolutionNone
	s.Trace.Reset()
	s.sources = map[string]struct{}{}

	if e.fallback == nil {
		return
	}
	fb, ok := evidence.FallbackSkill{}, false
	if skillName != "" {
		fb, ok = e.fallback.Find(skillName)
	}
	if !ok {
		// The store never placed the question, so the file may only
		// supply a caveated summary, not proof links.
		fb, ok = e.fallback.Detect(s.Query.Question)
		fb.ProofLinks = nil
	}
	if !ok {
		return
	}
	s.useFallback(fb)
	s.Trace.Addf("Evidence store unavailable; used the curated summary for %s", fb.Name)
}
