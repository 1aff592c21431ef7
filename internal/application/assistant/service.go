// Package assistant assembles answers: it runs the abuse guard, intent
// classification and moderation, then either answers from a fast path or
// retrieves evidence and asks the generator to phrase it.
package assistant

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rowens2025/powervisualize/internal/application/retrieval"
	"github.com/rowens2025/powervisualize/internal/domain/evidence"
	"github.com/rowens2025/powervisualize/internal/domain/generation"
	"github.com/rowens2025/powervisualize/internal/domain/guard"
	"github.com/rowens2025/powervisualize/internal/domain/intent"
	"github.com/rowens2025/powervisualize/internal/domain/moderation"
	"github.com/rowens2025/powervisualize/internal/domain/shared"
	"github.com/rowens2025/powervisualize/internal/infrastructure/logger"
	"github.com/rowens2025/powervisualize/internal/infrastructure/telemetry"
)

// Request outcomes recorded in metrics.
const (
	OutcomeAnswered      = "answered"
	OutcomeCannotConfirm = "cannot_confirm"
	OutcomeFastPath      = "fast_path"
	OutcomeRefused       = "refused"
	OutcomeLocked        = "locked"
	OutcomeLimited       = "limited"
	OutcomeMalformed     = "malformed"
	OutcomeError         = "error"
)

// CodeInternal marks failures that are not attributable to the generator.
const CodeInternal = "INTERNAL"

// Retriever resolves a question to evidence.
type Retriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) (*retrieval.Result, error)
}

// EvidenceReader is the part of the evidence store the fast paths read.
type EvidenceReader interface {
	PublicPersonality(ctx context.Context) ([]evidence.PersonalityAttribute, error)
	ProjectProfiles(ctx context.Context, slugs []string) ([]evidence.ProjectProfile, error)
}

// Service answers questions.
type Service struct {
	guard      *guard.Guard
	classifier *intent.Classifier
	moderator  *moderation.Moderator
	retriever  Retriever
	evidence   EvidenceReader
	generator  generation.Generator
	cfg        Config
	logger     *zap.Logger
	metrics    *telemetry.AssistantMetrics
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithMetrics records request, intent and generator metrics.
func WithMetrics(m *telemetry.AssistantMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service.
func NewService(
	g *guard.Guard,
	classifier *intent.Classifier,
	moderator *moderation.Moderator,
	retriever Retriever,
	reader EvidenceReader,
	generator generation.Generator,
	cfg Config,
	opts ...Option,
) *Service {
	s := &Service{
		guard:      g,
		classifier: classifier,
		moderator:  moderator,
		retriever:  retriever,
		evidence:   reader,
		generator:  generator,
		cfg:        cfg,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.MaxTurnRunes <= 0 {
		s.cfg.MaxTurnRunes = MaxQuestionRunes
	}
	return s
}

// ValidateQuestion checks a trimmed question.
func ValidateQuestion(q string) error {
	if q == "" {
		return ErrQuestionRequired
	}
	if utf8.RuneCountInString(q) > MaxQuestionRunes {
		return ErrQuestionTooLong
	}
	return nil
}

func (s *Service) log(ctx context.Context) *zap.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

// Ask answers one question. Validation failures return a *shared.DomainError,
// a full request window returns *RateLimitError and internal failures return
// *FailureError. Blocks and lockouts are ordinary responses.
func (s *Service) Ask(ctx context.Context, req Request) (*Response, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "assistant", "ask")
	defer span.End()

	req.Question = strings.TrimSpace(req.Question)
	if err := ValidateQuestion(req.Question); err != nil {
		return nil, err
	}

	key := guard.ClientKey(req.ClientID)
	resp, outcome, err := s.ask(ctx, req, key)
	s.metrics.RecordRequest(ctx, outcome)
	telemetry.SetAttributes(span, telemetry.AttrOutcome.String(outcome))

	l := s.log(ctx)
	l.Debug("Question received", zap.String("question", req.Question))
	l.Info("Question handled",
		zap.String("client_key", key),
		zap.Int("question_len", utf8.RuneCountInString(req.Question)),
		zap.String("outcome", outcome),
	)

	if err != nil {
		telemetry.RecordError(span, err)
		var limited *RateLimitError
		var failure *FailureError
		switch {
		case errors.As(err, &limited):
			limited.Response.Meta.RequestID = req.RequestID
		case errors.As(err, &failure):
			failure.Response.Meta.RequestID = req.RequestID
		}
		return nil, err
	}
	resp.Meta.RequestID = req.RequestID
	return resp, nil
}

func (s *Service) ask(ctx context.Context, req Request, key string) (resp *Response, outcome string, err error) {
	l := s.log(ctx)

	decision, err := s.guard.Admit(ctx, key)
	if err != nil {
		l.Warn("Abuse guard unavailable, admitting request", zap.Error(err))
		decision = guard.Decision{Outcome: guard.Allowed}
		err = nil
	} else if decision.Outcome == guard.Allowed {
		quota := &Quota{Limit: s.guard.Policy().Limit, Remaining: decision.Remaining}
		defer func() {
			if resp != nil {
				resp.Meta.Quota = quota
			}
		}()
	}
	s.metrics.RecordGuard(ctx, string(decision.Outcome))
	telemetry.SetAttributes(trace.SpanFromContext(ctx), telemetry.AttrGuardResult.String(string(decision.Outcome)))
	switch decision.Outcome {
	case guard.Locked:
		return s.locked(decision), OutcomeLocked, nil
	case guard.RateLimited:
		limited := NewResponse(s.rateLimitMessage())
		limited.Meta.Blocked = true
		limited.Meta.Retryable = true
		limited.Meta.Quota = &Quota{Limit: s.guard.Policy().Limit}
		return nil, OutcomeLimited, &RateLimitError{RetryAfter: decision.RetryAfter, Response: limited}
	}

	cls := s.classifier.Classify(intent.Input{Question: req.Question, History: req.History, Page: req.Page})
	s.metrics.RecordIntent(ctx, string(cls.Intent))
	telemetry.SetAttributes(trace.SpanFromContext(ctx), telemetry.AttrIntent.String(string(cls.Intent)))
	l.Info("Question classified",
		zap.String("intent", string(cls.Intent)),
		zap.String("rule", cls.Rule),
		zap.Bool("about_assistant", cls.AboutAssistant),
	)

	if cls.Intent.Deterministic() {
		resp := s.fastPath(ctx, req, cls)
		resp.Meta.FastPath = true
		resp.Meta.Intent = string(cls.Intent)
		return resp, OutcomeFastPath, nil
	}

	if v := s.moderator.Review(req.Question, req.History); !v.Allowed {
		s.metrics.RecordModeration(ctx, string(v.Category))
		l.Info("Question refused by moderation",
			zap.String("category", string(v.Category)),
			zap.String("severity", string(v.Severity)),
		)
		resp, outcome := s.refuse(ctx, key, v)
		resp.Meta.Intent = string(cls.Intent)
		return resp, outcome, nil
	}

	res, err := s.retriever.Retrieve(ctx, retrieval.Query{Question: req.Question, AboutAssistant: cls.AboutAssistant})
	if err != nil {
		return nil, OutcomeError, s.failure(CodeInternal, s.internalErrorMessage(), false, err)
	}
	return s.answer(ctx, req, cls, res)
}

func (s *Service) locked(d guard.Decision) *Response {
	resp := NewResponse(s.lockoutMessage(d.LockedUntil))
	until := d.LockedUntil
	resp.Meta.Blocked = true
	resp.Meta.LockedUntil = &until
	resp.Meta.Strikes = d.Strikes
	return resp
}

// refuse answers a moderated question. Strikes escalate the message and
// the last one locks the client.
func (s *Service) refuse(ctx context.Context, key string, v moderation.Verdict) (*Response, string) {
	if v.Severity != moderation.SeverityStrike {
		resp := NewResponse(s.offTopicMessage())
		resp.Meta.Blocked = true
		return resp, OutcomeRefused
	}

	d, err := s.guard.Strike(ctx, key)
	if err != nil {
		s.log(ctx).Warn("Failed to record strike", zap.Error(err))
		d = guard.Decision{Outcome: guard.Allowed, Strikes: 1}
	}
	if d.Outcome == guard.Locked {
		return s.locked(d), OutcomeLocked
	}
	resp := NewResponse(s.strikeMessage(d.Strikes))
	resp.Meta.Blocked = true
	resp.Meta.Strikes = d.Strikes
	return resp, OutcomeRefused
}

func (s *Service) failure(code, message string, retryable bool, err error) *FailureError {
	resp := NewResponse(message)
	resp.EvidenceLinks = append(resp.EvidenceLinks, evidence.Link{Title: "Contact", URL: s.cfg.ContactURL})
	resp.Meta.Retryable = retryable
	return &FailureError{Code: code, Response: resp, Err: err}
}

// answer turns retrieval results into a response. Only evidence backed by
// project profiles goes to the generator; curated, empty and dashboard
// index results are templated.
func (s *Service) answer(ctx context.Context, req Request, cls intent.Classification, res *retrieval.Result) (*Response, string, error) {
	confirmed := ConfirmedSkills(res)
	links := EvidenceLinks(res, s.cfg.DashboardsURL)

	newResp := func(answer string) *Response {
		resp := NewResponse(answer)
		resp.Meta.Intent = string(cls.Intent)
		resp.Meta.SourcesUsed = res.Sources
		resp.Meta.MatchedSkillName = res.SkillName()
		resp.Meta.MatchedProjectSlugs = res.ProjectSlugs()
		resp.Meta.Degraded = res.Degraded
		return resp
	}

	if len(res.Profiles) == 0 {
		skill := res.SkillName()
		if res.Fallback != nil {
			skill = res.Fallback.Name
		}
		resp := newResp(s.cannotConfirmMessage(skill))
		resp.MissingInfo = append(resp.MissingInfo, missingEvidence(skill))
		if res.Fallback != nil {
			if res.Fallback.Summary != "" {
				resp.Answer += " Curated summary: " + res.Fallback.Summary
			}
			resp.EvidenceLinks = append(resp.EvidenceLinks, res.Fallback.ProofLinks...)
		}
		resp.Trace = []string{}
		return resp, OutcomeCannotConfirm, nil
	}

	if res.Resolution == retrieval.ResolutionDashboardIndex {
		skill := res.SkillName()
		resp := newResp(s.dashboardIndexMessage(skill, len(res.Dashboards), res.SkillSummary))
		resp.SkillsConfirmed = []string{skill}
		resp.EvidenceLinks = links
		resp.Trace = append([]string{}, res.Trace...)
		return resp, OutcomeAnswered, nil
	}

	bundle := BuildBundle(s.cfg.PersonName, res, confirmed, links)
	messages, err := s.buildMessages(bundle, req.History, req.Question)
	if err != nil {
		return nil, OutcomeError, s.failure(CodeInternal, s.internalErrorMessage(), false, err)
	}

	raw, err := s.generate(ctx, generation.Request{
		Messages:    messages,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		JSON:        true,
	})
	if err != nil {
		return nil, OutcomeError, s.generatorFailure(ctx, err)
	}

	out, err := generation.ParseOutput(raw.Content)
	if err != nil {
		s.log(ctx).Warn("Generator returned malformed output", zap.Error(err))
		resp := newResp(s.formattingTroubleMessage())
		resp.Meta.Retryable = true
		resp.Trace = res.Trace
		return resp, OutcomeMalformed, nil
	}

	resp := newResp("")
	PostProcess(resp, out, res, confirmed, links)
	if len(resp.SkillsConfirmed) == 0 && len(resp.EvidenceLinks) == 0 {
		return resp, OutcomeCannotConfirm, nil
	}
	return resp, OutcomeAnswered, nil
}

// generate races the generator against the configured timeout. The call
// runs in its own goroutine so a provider that ignores cancellation cannot
// hold the request past the deadline.
func (s *Service) generate(ctx context.Context, req generation.Request) (*generation.Response, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "assistant", "generate",
		telemetry.AttrProvider.String(s.generator.Name()))
	defer span.End()

	timeout := s.cfg.GeneratorTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().GeneratorTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		resp *generation.Response
		err  error
	}
	done := make(chan result, 1)
	start := s.now()

	go func() {
		resp, err := s.generator.Generate(callCtx, req)
		done <- result{resp: resp, err: err}
	}()

	var r result
	select {
	case r = <-done:
	case <-callCtx.Done():
		r = result{err: callCtx.Err()}
	}

	outcome := "ok"
	switch {
	case r.err == nil && r.resp == nil:
		r.err = generation.NewFatalError(errors.New("generator returned no response"))
		outcome = "error"
	case r.err == nil:
		telemetry.SetAttributes(span, telemetry.AttrModel.String(r.resp.Model))
	case errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil:
		outcome = "timeout"
	default:
		outcome = "error"
	}
	telemetry.RecordError(span, r.err)
	s.metrics.RecordGeneration(ctx, s.generator.Name(), outcome, s.now().Sub(start))
	return r.resp, r.err
}

func (s *Service) generatorFailure(ctx context.Context, err error) *FailureError {
	l := s.log(ctx)
	switch {
	case ctx.Err() != nil:
		l.Info("Client went away during generation", zap.Error(ctx.Err()))
		return s.failure(CodeInternal, s.internalErrorMessage(), true, ctx.Err())
	case errors.Is(err, context.DeadlineExceeded):
		l.Warn("Generator timed out", zap.Duration("timeout", s.cfg.GeneratorTimeout))
		return s.failure(shared.ErrGeneratorTimeout.Code, s.timeoutMessage(), true, err)
	case generation.IsFatal(err):
		l.Error("Generator failed", zap.Error(err))
		return s.failure(shared.ErrGeneratorFailed.Code, s.internalErrorMessage(), false, err)
	default:
		l.Warn("Generator failed transiently", zap.Error(err), zap.Bool("classified", generation.IsTransient(err)))
		return s.failure(shared.ErrGeneratorFailed.Code, s.internalErrorMessage(), true, err)
	}
}

func missingEvidence(skill string) string {
	if skill == "" {
		return "No published project or skill matched the question"
	}
	return "No published project demonstrates " + skill
}
