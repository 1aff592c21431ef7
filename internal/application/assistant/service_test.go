package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/rowens2025/powervisualize/internal/application/retrieval"
	"github.com/rowens2025/powervisualize/internal/domain/evidence"
	"github.com/rowens2025/powervisualize/internal/domain/evidence/evidencetest"
	"github.com/rowens2025/powervisualize/internal/domain/generation"
	"github.com/rowens2025/powervisualize/internal/domain/guard"
	"github.com/rowens2025/powervisualize/internal/domain/intent"
	"github.com/rowens2025/powervisualize/internal/domain/moderation"
	"github.com/rowens2025/powervisualize/internal/domain/ranking"
	"github.com/rowens2025/powervisualize/internal/domain/shared"
	"github.com/rowens2025/powervisualize/internal/infrastructure/telemetry"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Response, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*generation.Response)
	return resp, args.Error(1)
}

func (m *mockGenerator) Name() string { return "mock" }

type memStore struct {
	mu     sync.Mutex
	states map[string]guard.State
	err    error
}

func newMemStore() *memStore {
	return &memStore{states: map[string]guard.State{}}
}

func (s *memStore) Update(_ context.Context, key string, _ time.Duration, fn func(*guard.State)) (guard.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return guard.State{}, s.err
	}
	st := s.states[key]
	fn(&st)
	s.states[key] = st
	return st, nil
}

func (s *memStore) Get(_ context.Context, key string) (guard.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[key]
	return st, ok, s.err
}

func (s *memStore) Close() error { return nil }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	powerBI = evidence.Skill{ID: 1, Name: "Power BI", Confidence: evidence.ConfidenceExpert, Aliases: []string{"powerbi"}}
	python  = evidence.Skill{ID: 2, Name: "Python", Confidence: evidence.ConfidenceStrong}
	tableau = evidence.Skill{ID: 3, Name: "Tableau", Confidence: evidence.ConfidenceStrong}

	salesDashboard = evidence.ProjectMatch{
		Project:     evidence.Project{ID: 10, Slug: "sales-dashboard", Name: "Sales Dashboard", Summary: "Regional sales KPIs", Status: evidence.StatusPublished},
		Counts:      evidence.ProjectCounts{SkillsCount: 6, DashboardPages: 3, ProjectPages: 1},
		ProofWeight: 4,
		Strength:    evidence.StrengthPrimary,
	}
	salesProfile = evidence.ProjectProfile{
		Project: salesDashboard.Project,
		Counts:  salesDashboard.Counts,
		Pages: []evidence.ProfilePage{
			{Slug: "sales", Title: "Sales Dashboard", URL: "/dashboards/sales", Type: evidence.PageDashboard, Relationship: evidence.RelationshipPrimary},
		},
		Skills: []evidence.ProfileSkill{
			{Name: "Power BI", Confidence: evidence.ConfidenceExpert, Strength: evidence.StrengthPrimary, ProofWeight: 4},
		},
	}

	portfolioStats = evidence.PortfolioStats{PublishedProjects: 4, ExpertSkills: 1, StrongSkills: 1, DashboardPages: 3}

	curated = evidencetest.StaticFallback{
		{
			Name:       "Tableau",
			Aliases:    []string{"tableau desktop"},
			Summary:    "Built Tableau workbooks before moving to Power BI.",
			ProofLinks: []evidence.Link{{Title: "Tableau Public", URL: "https://public.tableau.com/app/profile/ryan"}},
		},
	}
)

type fixture struct {
	svc     *Service
	repo    *evidencetest.MockRepository
	gen     *mockGenerator
	guard   *guard.Guard
	store   *memStore
	clock   *testClock
	metrics *sdkmetric.ManualReader
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := newMemStore()
	g := guard.New(store, guard.DefaultPolicy(), guard.WithClock(clock.Now))

	classifier := intent.NewClassifier(intent.Config{
		PersonName: "Ryan Owens",
		Contacts:   []intent.KnownContact{{Name: "Jane", Greeting: "Hi Jane!"}},
	})
	moderator := moderation.New(moderation.WithAllowList(classifier.ContactPatterns()))

	repo := new(evidencetest.MockRepository)
	engine := retrieval.NewEngine(repo, curated, ranking.DefaultPolicy([]string{"Power BI"}), retrieval.DefaultConfig())
	gen := new(mockGenerator)

	cfg := DefaultConfig()
	cfg.PersonName = "Ryan Owens"
	cfg.GeneratorTimeout = time.Second
	for _, m := range mutate {
		m(&cfg)
	}

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	metrics, err := telemetry.NewAssistantMetrics(provider.Meter("assistant-test"))
	require.NoError(t, err)

	svc := NewService(g, classifier, moderator, engine, repo, gen, cfg, WithClock(clock.Now), WithMetrics(metrics))
	return &fixture{svc: svc, repo: repo, gen: gen, guard: g, store: store, clock: clock, metrics: reader}
}

// generationOutcomes returns the outcome attribute of every recorded
// generator call.
func (f *fixture) generationOutcomes(t *testing.T) []string {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, f.metrics.Collect(context.Background(), &rm))

	var out []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "assistant.generator.duration" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Histogram[float64]).DataPoints {
				if v, ok := dp.Attributes.Value(telemetry.AttrOutcome); ok {
					out = append(out, v.AsString())
				}
			}
		}
	}
	return out
}

func (f *fixture) ask(t *testing.T, question string) *Response {
	t.Helper()
	resp, err := f.svc.Ask(context.Background(), Request{Question: question, ClientID: "203.0.113.7", RequestID: "req-1"})
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

func (f *fixture) expectPowerBIEvidence() {
	f.repo.On("Stats", mock.Anything).Return(portfolioStats, nil)
	f.repo.On("ListSkills", mock.Anything).Return([]evidence.Skill{powerBI, python}, nil)
	f.repo.On("ProjectsForSkill", mock.Anything, int64(1)).Return([]evidence.ProjectMatch{salesDashboard}, nil)
	f.repo.On("DashboardPagesForSkill", mock.Anything, int64(1)).Return(nil, nil)
	f.repo.On("ProjectProfiles", mock.Anything, []string{"sales-dashboard"}).Return([]evidence.ProjectProfile{salesProfile}, nil)
}

func (f *fixture) expectNoEvidence() {
	f.repo.On("Stats", mock.Anything).Return(portfolioStats, nil)
	f.repo.On("ListSkills", mock.Anything).Return([]evidence.Skill{powerBI, python}, nil)
	f.repo.On("SearchProjects", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.repo.On("SearchSkillsByName", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.repo.On("SearchSkillsByAlias", mock.Anything, mock.Anything).Return(nil, nil)
}

func TestAsk_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Ask(context.Background(), Request{Question: "   "})
	assert.ErrorIs(t, err, ErrQuestionRequired)

	_, err = f.svc.Ask(context.Background(), Request{Question: strings.Repeat("é", MaxQuestionRunes+1)})
	assert.ErrorIs(t, err, ErrQuestionTooLong)

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "QUESTION_TOO_LONG", domainErr.Code)
}

func TestAsk_AcknowledgementMakesNoCalls(t *testing.T) {
	f := newFixture(t)

	resp := f.ask(t, "ok")

	assert.Equal(t, f.svc.acknowledgementMessage(), resp.Answer)
	assert.True(t, resp.Meta.FastPath)
	assert.Equal(t, string(intent.Acknowledgement), resp.Meta.Intent)
	assert.Equal(t, "req-1", resp.Meta.RequestID)
	assert.Equal(t, &Quota{Limit: 20, Remaining: 19}, resp.Meta.Quota)
	assert.Empty(t, resp.SkillsConfirmed)
	assert.Empty(t, resp.EvidenceLinks)
	assert.Empty(t, resp.MissingInfo)
	assert.Empty(t, f.repo.Calls)
	f.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestAsk_FastPaths(t *testing.T) {
	t.Run("self identification", func(t *testing.T) {
		f := newFixture(t)
		resp := f.ask(t, "Hi, this is Jane")
		assert.Equal(t, "Hi Jane!", resp.Answer)
		assert.True(t, resp.Meta.FastPath)
	})

	t.Run("contact", func(t *testing.T) {
		f := newFixture(t)
		resp := f.ask(t, "How can I contact Ryan?")
		assert.Equal(t, []evidence.Link{{Title: "Contact", URL: "/contact"}}, resp.EvidenceLinks)
	})

	t.Run("resume", func(t *testing.T) {
		f := newFixture(t)
		resp := f.ask(t, "Can I see his resume?")
		assert.Equal(t, []evidence.Link{{Title: "Resume", URL: "/resume"}}, resp.EvidenceLinks)
	})

	t.Run("personal questions are refused without a strike", func(t *testing.T) {
		f := newFixture(t)
		resp := f.ask(t, "Is he married?")
		assert.Equal(t, f.svc.personalRefusalMessage(), resp.Answer)

		st, err := f.guard.Status(context.Background(), guard.ClientKey("203.0.113.7"))
		require.NoError(t, err)
		assert.Zero(t, st.Strikes)
	})

	t.Run("work style uses public work rows", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("PublicPersonality", mock.Anything).Return([]evidence.PersonalityAttribute{
			{ID: 1, Category: "work", Value: "Ships small increments"},
			{ID: 2, Category: "personality", Value: "Curious"},
		}, nil)

		resp := f.ask(t, "What motivates Ryan?")
		assert.Equal(t, "Here is how Ryan Owens likes to work: Ships small increments.", resp.Answer)
		assert.Equal(t, []string{retrieval.SourcePersonality}, resp.Meta.SourcesUsed)
		f.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("personality store failure", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("PublicPersonality", mock.Anything).Return(nil, shared.ErrStoreUnavailable)

		resp := f.ask(t, "What's his MBTI?")
		assert.Contains(t, resp.Answer, "/contact")
	})

	t.Run("project page context", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("ProjectProfiles", mock.Anything, []string{"sales-dashboard"}).Return([]evidence.ProjectProfile{salesProfile}, nil)

		resp, err := f.svc.Ask(context.Background(), Request{
			Question: "What is this page?",
			Page:     &intent.PageContext{Path: "/projects/sales-dashboard", Title: "Sales Dashboard", PageSlug: "sales-dashboard", PageType: "project"},
		})
		require.NoError(t, err)
		assert.Contains(t, resp.Answer, "You're looking at Sales Dashboard.")
		assert.Equal(t, []string{"Power BI"}, resp.SkillsConfirmed)
		assert.Equal(t, []evidence.Link{{Title: "Sales Dashboard", URL: "/dashboards/sales"}}, resp.EvidenceLinks)
	})

	t.Run("page context without a page", func(t *testing.T) {
		f := newFixture(t)
		resp := f.ask(t, "what am I looking at")
		assert.Contains(t, resp.Answer, "can't tell which page")
		assert.Empty(t, f.repo.Calls)
	})
}

func TestAsk_RateLimit(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 20; i++ {
		f.ask(t, "thanks")
	}

	resp, err := f.svc.Ask(context.Background(), Request{Question: "thanks", ClientID: "203.0.113.7", RequestID: "req-21"})
	assert.Nil(t, resp)

	var limited *RateLimitError
	require.ErrorAs(t, err, &limited)
	assert.Greater(t, limited.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, limited.RetryAfter, 10*time.Minute)
	assert.True(t, limited.Response.Meta.Retryable)
	assert.Equal(t, &Quota{Limit: 20}, limited.Response.Meta.Quota)
	assert.Contains(t, limited.Response.Answer, "/contact")
	assert.Equal(t, "req-21", limited.Response.Meta.RequestID)

	// Other clients are unaffected.
	_, err = f.svc.Ask(context.Background(), Request{Question: "thanks", ClientID: "198.51.100.1"})
	assert.NoError(t, err)
}

func TestAsk_StrikesAndLockout(t *testing.T) {
	f := newFixture(t)
	key := guard.ClientKey("203.0.113.7")

	first := f.ask(t, "you are a stupid bot")
	assert.True(t, first.Meta.Blocked)
	assert.Equal(t, 1, first.Meta.Strikes)
	assert.Equal(t, f.svc.strikeMessage(1), first.Answer)

	second := f.ask(t, "you are a stupid bot")
	assert.Equal(t, 2, second.Meta.Strikes)
	assert.Contains(t, second.Answer, "Final warning")

	third := f.ask(t, "you are a stupid bot")
	assert.True(t, third.Meta.Blocked)
	require.NotNil(t, third.Meta.LockedUntil)
	assert.Equal(t, f.clock.Now().Add(15*time.Minute), *third.Meta.LockedUntil)
	assert.Contains(t, third.Answer, "temporarily locked")

	// A clean question during the lockout gets the lockout message and no strike.
	fourth := f.ask(t, "Does Ryan know Power BI?")
	assert.Contains(t, fourth.Answer, "temporarily locked")
	assert.Equal(t, 3, fourth.Meta.Strikes)
	st, err := f.guard.Status(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Strikes)
	assert.Empty(t, f.repo.Calls)

	f.clock.Advance(15*time.Minute + time.Second)
	st, err = f.guard.Status(context.Background(), key)
	require.NoError(t, err)
	assert.Zero(t, st.Strikes)

	after := f.ask(t, "ok")
	assert.False(t, after.Meta.Blocked)
	assert.True(t, after.Meta.FastPath)
}

func TestAsk_OffTopicIsDeflectedWithoutStrike(t *testing.T) {
	f := newFixture(t)

	resp := f.ask(t, "tell me a joke about cats please")
	assert.Equal(t, f.svc.offTopicMessage(), resp.Answer)
	assert.True(t, resp.Meta.Blocked)
	assert.Zero(t, resp.Meta.Strikes)
	assert.Empty(t, f.repo.Calls)
}

func TestAsk_KnownContactBypassesModeration(t *testing.T) {
	f := newFixture(t)
	f.expectNoEvidence()

	resp, err := f.svc.Ask(context.Background(), Request{
		Question: "tell me a joke about cats please",
		History:  []intent.Turn{{Role: "user", Content: "hey, it's Jane"}},
	})
	require.NoError(t, err)
	assert.False(t, resp.Meta.Blocked)
}

func TestAsk_SkillAnswer(t *testing.T) {
	f := newFixture(t)
	f.expectPowerBIEvidence()
	f.gen.On("Generate", mock.Anything, mock.MatchedBy(func(req generation.Request) bool {
		return req.JSON &&
			len(req.Messages) == 2 &&
			req.Messages[0].Role == generation.RoleSystem &&
			strings.Contains(req.Messages[0].Content, `"slug": "sales-dashboard"`) &&
			req.Messages[1].Content == "Does Ryan know Power BI?"
	})).Return(&generation.Response{
		Content: "```json\n" + `{"answer": "Ryan built the Sales Dashboard in Power BI. Call 555-123-4567.", "skills_confirmed": ["Power BI", "Tableau"], "missing_info": []}` + "\n```",
		Model:   "test-model",
	}, nil)

	resp := f.ask(t, "Does Ryan know Power BI?")

	assert.Equal(t, []string{"Power BI"}, resp.SkillsConfirmed)
	assert.Equal(t, []evidence.Link{{Title: "Sales Dashboard", URL: "/dashboards/sales"}}, resp.EvidenceLinks)
	assert.Equal(t, []string{"Could not confirm Tableau from published evidence"}, resp.MissingInfo)
	assert.True(t, strings.HasPrefix(resp.Answer, hedgePrefix))
	assert.NotContains(t, resp.Answer, "555")
	require.NotNil(t, resp.Trace)
	assert.Empty(t, resp.Trace, "a hedged answer carries no trace")
	assert.Equal(t, "Power BI", resp.Meta.MatchedSkillName)
	assert.Equal(t, []string{"sales-dashboard"}, resp.Meta.MatchedProjectSlugs)
	assert.Equal(t, []string{retrieval.SourceProfiles, retrieval.SourceCounts, retrieval.SourceSkills}, resp.Meta.SourcesUsed)
	assert.False(t, resp.Meta.FastPath)

	again := f.ask(t, "Does Ryan know Power BI?")
	assert.Equal(t, resp.SkillsConfirmed, again.SkillsConfirmed)
	assert.Equal(t, resp.EvidenceLinks, again.EvidenceLinks)
}

func TestAsk_CannotConfirm(t *testing.T) {
	f := newFixture(t)
	f.expectNoEvidence()

	resp := f.ask(t, "Does Ryan know quantum annealing?")

	assert.Empty(t, resp.SkillsConfirmed)
	assert.Empty(t, resp.EvidenceLinks)
	assert.NotEmpty(t, resp.MissingInfo)
	require.NotNil(t, resp.Trace)
	assert.Empty(t, resp.Trace)
	assert.Contains(t, resp.Answer, "/contact")
	f.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestAsk_ConfidentAnswerKeepsTrace(t *testing.T) {
	f := newFixture(t)
	f.expectPowerBIEvidence()
	f.gen.On("Generate", mock.Anything, mock.Anything).Return(&generation.Response{
		Content: `{"answer": "Ryan built the Sales Dashboard in Power BI.", "skills_confirmed": ["Power BI"], "missing_info": []}`,
		Model:   "test-model",
	}, nil)

	resp := f.ask(t, "Does Ryan know Power BI?")

	assert.Equal(t, "Ryan built the Sales Dashboard in Power BI.", resp.Answer)
	assert.Empty(t, resp.MissingInfo)
	assert.Equal(t, []string{"Found 1 project linked to Power BI: sales-dashboard"}, resp.Trace)
	assert.Equal(t, []string{"ok"}, f.generationOutcomes(t))
}

func TestAsk_FallbackOnlySkill(t *testing.T) {
	f := newFixture(t)
	f.repo.On("Stats", mock.Anything).Return(portfolioStats, nil)
	f.repo.On("ListSkills", mock.Anything).Return([]evidence.Skill{powerBI, python, tableau}, nil)
	f.repo.On("ProjectsForSkill", mock.Anything, int64(3)).Return(nil, nil)
	f.repo.On("SearchProjects", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.repo.On("SearchSkillsByName", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.repo.On("SearchSkillsByAlias", mock.Anything, mock.Anything).Return(nil, nil)

	resp := f.ask(t, "any tableau experience?")

	assert.Empty(t, resp.SkillsConfirmed)
	assert.Equal(t, curated[0].ProofLinks, resp.EvidenceLinks)
	assert.Equal(t, []string{"No published project demonstrates Tableau"}, resp.MissingInfo)
	assert.Contains(t, resp.Answer, "I can't confirm Tableau")
	assert.Contains(t, resp.Answer, curated[0].Summary)
	require.NotNil(t, resp.Trace)
	assert.Empty(t, resp.Trace, "a cannot-confirm answer carries no trace")
	assert.Contains(t, resp.Meta.SourcesUsed, retrieval.SourceFallback)
	f.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestAsk_UndetectedSkillGetsNoCuratedEvidence(t *testing.T) {
	f := newFixture(t)
	f.expectNoEvidence()

	// Tableau is only in the curated file; the store has no such skill.
	resp := f.ask(t, "any tableau desktop experience?")

	assert.Empty(t, resp.SkillsConfirmed)
	assert.Empty(t, resp.EvidenceLinks)
	assert.Equal(t, []string{"No published project or skill matched the question"}, resp.MissingInfo)
	assert.NotContains(t, resp.Answer, curated[0].Summary)
	assert.Contains(t, resp.Answer, "/contact")
	require.NotNil(t, resp.Trace)
	assert.Empty(t, resp.Trace)
	assert.NotContains(t, resp.Meta.SourcesUsed, retrieval.SourceFallback)
	f.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestAsk_DashboardIndexIsTemplated(t *testing.T) {
	f := newFixture(t)
	f.repo.On("Stats", mock.Anything).Return(portfolioStats, nil)
	f.repo.On("ListSkills", mock.Anything).Return([]evidence.Skill{powerBI, python}, nil)
	f.repo.On("ProjectsForSkill", mock.Anything, int64(1)).Return([]evidence.ProjectMatch{salesDashboard}, nil)
	f.repo.On("DashboardPagesForSkill", mock.Anything, int64(1)).Return([]evidence.Page{
		{ID: 1, Slug: "sales", Title: "Sales", Type: evidence.PageDashboard},
		{ID: 2, Slug: "ops", Title: "Ops", Type: evidence.PageDashboard},
		{ID: 3, Slug: "hr", Title: "HR", Type: evidence.PageDashboard},
	}, nil)
	f.repo.On("ProjectProfiles", mock.Anything, []string{"sales-dashboard"}).Return([]evidence.ProjectProfile{salesProfile}, nil)

	resp := f.ask(t, "Does Ryan know Power BI?")

	assert.Equal(t, "Ryan Owens has published 3 dashboards built with Power BI. You can browse them at /dashboards.", resp.Answer)
	assert.Equal(t, []string{"Power BI"}, resp.SkillsConfirmed)
	assert.Equal(t, []evidence.Link{
		{Title: "Power BI dashboards", URL: "/dashboards"},
		{Title: "Sales Dashboard", URL: "/dashboards/sales"},
	}, resp.EvidenceLinks)
	assert.Empty(t, resp.MissingInfo)
	assert.Equal(t, []string{
		"Found 1 project linked to Power BI: sales-dashboard",
		"Found 3 dashboards built with Power BI",
	}, resp.Trace)
	f.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	assert.Empty(t, f.generationOutcomes(t))
}

func TestAsk_MalformedGeneratorOutput(t *testing.T) {
	f := newFixture(t)
	f.expectPowerBIEvidence()
	f.gen.On("Generate", mock.Anything, mock.Anything).Return(&generation.Response{Content: "Sure! Power BI is great."}, nil)

	resp := f.ask(t, "Does Ryan know Power BI?")
	assert.Equal(t, f.svc.formattingTroubleMessage(), resp.Answer)
	assert.True(t, resp.Meta.Retryable)
	assert.Empty(t, resp.SkillsConfirmed)
}

func TestAsk_GeneratorTimeout(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.GeneratorTimeout = 50 * time.Millisecond })
	f.expectPowerBIEvidence()
	f.gen.On("Generate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	resp, err := f.svc.Ask(context.Background(), Request{Question: "Does Ryan know Power BI?", RequestID: "req-t"})
	assert.Nil(t, resp)

	var failure *FailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, shared.ErrGeneratorTimeout.Code, failure.Code)
	assert.True(t, failure.Retryable())
	assert.Equal(t, "req-t", failure.Response.Meta.RequestID)
	assert.Contains(t, failure.Response.EvidenceLinks, evidence.Link{Title: "Contact", URL: "/contact"})
	assert.Empty(t, failure.Response.SkillsConfirmed)
}

func TestAsk_GeneratorFatalError(t *testing.T) {
	f := newFixture(t)
	f.expectPowerBIEvidence()
	f.gen.On("Generate", mock.Anything, mock.Anything).Return(nil, generation.NewFatalError(errors.New("invalid api key")))

	_, err := f.svc.Ask(context.Background(), Request{Question: "Does Ryan know Power BI?"})

	var failure *FailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, shared.ErrGeneratorFailed.Code, failure.Code)
	assert.False(t, failure.Retryable())
}

func TestAsk_GeneratorTransientErrorIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.expectPowerBIEvidence()
	f.gen.On("Generate", mock.Anything, mock.Anything).Return(nil, generation.NewTransientError(errors.New("502 bad gateway")))

	_, err := f.svc.Ask(context.Background(), Request{Question: "Does Ryan know Power BI?"})

	var failure *FailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, shared.ErrGeneratorFailed.Code, failure.Code)
	assert.True(t, failure.Retryable())
	assert.Equal(t, []string{"error"}, f.generationOutcomes(t))
}

func TestAsk_ClientCancellationDuringGeneration(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.GeneratorTimeout = 5 * time.Second })
	f.expectPowerBIEvidence()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.gen.On("Generate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			cancel()
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.Canceled)

	start := time.Now()
	_, err := f.svc.Ask(ctx, Request{Question: "Does Ryan know Power BI?", RequestID: "req-c"})
	assert.Less(t, time.Since(start), time.Second)

	var failure *FailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, CodeInternal, failure.Code)
	assert.ErrorIs(t, failure, context.Canceled)
	assert.Equal(t, f.svc.internalErrorMessage(), failure.Response.Answer)
	assert.Equal(t, []string{"error"}, f.generationOutcomes(t))
}

func TestAsk_GeneratorReturnsNothing(t *testing.T) {
	f := newFixture(t)
	f.expectPowerBIEvidence()
	f.gen.On("Generate", mock.Anything, mock.Anything).Return(nil, nil)

	var err error
	assert.NotPanics(t, func() {
		_, err = f.svc.Ask(context.Background(), Request{Question: "Does Ryan know Power BI?"})
	})

	var failure *FailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, shared.ErrGeneratorFailed.Code, failure.Code)
	assert.False(t, failure.Retryable())
	assert.Equal(t, []string{"error"}, f.generationOutcomes(t))
}

func TestAsk_GuardStoreFailureFailsOpen(t *testing.T) {
	f := newFixture(t)
	f.store.err = errors.New("redis down")

	resp := f.ask(t, "ok")
	assert.True(t, resp.Meta.FastPath)
	assert.Nil(t, resp.Meta.Quota)
}

func TestMessages_OfferContact(t *testing.T) {
	f := newFixture(t)
	for name, msg := range map[string]string{
		"personal refusal":   f.svc.personalRefusalMessage(),
		"off topic":          f.svc.offTopicMessage(),
		"first strike":       f.svc.strikeMessage(1),
		"final warning":      f.svc.strikeMessage(2),
		"rate limit":         f.svc.rateLimitMessage(),
		"formatting trouble": f.svc.formattingTroubleMessage(),
		"lockout":            f.svc.lockoutMessage(f.clock.Now().Add(time.Minute)),
		"timeout":            f.svc.timeoutMessage(),
		"internal error":     f.svc.internalErrorMessage(),
		"cannot confirm":     f.svc.cannotConfirmMessage("Tableau"),
	} {
		assert.Contains(t, msg, "You can reach Ryan Owens directly at /contact.", name)
	}
}
