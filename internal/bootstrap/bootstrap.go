// Package bootstrap wires the assistant's collaborators from configuration.
// Both the HTTP server and the assistantctl CLI build their graph here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/rowens2025/powervisualize/internal/application/assistant"
	"github.com/rowens2025/powervisualize/internal/application/retrieval"
	"github.com/rowens2025/powervisualize/internal/domain/guard"
	"github.com/rowens2025/powervisualize/internal/domain/intent"
	"github.com/rowens2025/powervisualize/internal/domain/moderation"
	"github.com/rowens2025/powervisualize/internal/domain/ranking"
	"github.com/rowens2025/powervisualize/internal/infrastructure/cache"
	"github.com/rowens2025/powervisualize/internal/infrastructure/config"
	"github.com/rowens2025/powervisualize/internal/infrastructure/fallback"
	"github.com/rowens2025/powervisualize/internal/infrastructure/generator"
	"github.com/rowens2025/powervisualize/internal/infrastructure/logger"
	"github.com/rowens2025/powervisualize/internal/infrastructure/persistence"
	"github.com/rowens2025/powervisualize/internal/infrastructure/storage"
	"github.com/rowens2025/powervisualize/internal/infrastructure/telemetry"
)

// App holds the wired collaborators. Close releases them in reverse order.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Database   *persistence.Database
	Repository *persistence.GormEvidenceRepository
	GuardStore guard.Store
	Guard      *guard.Guard
	Classifier *intent.Classifier
	Moderator  *moderation.Moderator
	Fallback   *fallback.Catalog
	Retrieval  *retrieval.Engine
	Assistant  *assistant.Service
	Metrics    *telemetry.AssistantMetrics

	closers []func() error
}

type options struct {
	meter     metric.Meter
	dbTracing bool
	requireDB bool
}

// Option configures Build
type Option func(*options)

// WithMeter enables assistant and pool metrics on meter
func WithMeter(m metric.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}

// WithDBTracing registers otelgorm spans on the evidence store connection
func WithDBTracing(enabled bool) Option {
	return func(o *options) {
		o.dbTracing = enabled
	}
}

// RequireDatabase makes Build fail when the evidence store is unreachable
// instead of starting degraded.
func RequireDatabase() Option {
	return func(o *options) {
		o.requireDB = true
	}
}

// Build wires the full pipeline. An unreachable evidence store or fallback
// file is logged and tolerated unless RequireDatabase is set.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if log == nil {
		log = zap.NewNop()
	}

	app := &App{Config: cfg, Logger: log}
	ok := false
	defer func() {
		if !ok {
			_ = app.Close()
		}
	}()

	if err := app.openDatabase(o); err != nil {
		return nil, err
	}

	if o.meter != nil {
		m, err := telemetry.NewAssistantMetrics(o.meter)
		if err != nil {
			return nil, fmt.Errorf("assistant metrics: %w", err)
		}
		app.Metrics = m
	}

	store, err := cache.NewGuardStoreFactory(cfg.Redis, cfg.Guard,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(true),
	).CreateStore()
	if err != nil {
		return nil, fmt.Errorf("guard store: %w", err)
	}
	app.GuardStore = store
	app.closers = append(app.closers, store.Close)
	app.Guard = guard.New(store, GuardPolicy(cfg.Guard))

	app.Classifier = intent.NewClassifier(intent.Config{
		PersonName: cfg.Assistant.PersonName,
		Contacts:   knownContacts(cfg.Assistant.KnownContacts),
	})
	app.Moderator = moderation.New(moderation.WithAllowList(app.Classifier.ContactPatterns()))

	catalog, err := app.openFallback(ctx)
	if err != nil {
		return nil, err
	}
	app.Fallback = catalog

	gen, err := generator.New(cfg.Generator)
	if err != nil {
		return nil, err
	}

	retrievalOpts := []retrieval.Option{retrieval.WithLogger(log)}
	assistantOpts := []assistant.Option{assistant.WithLogger(log)}
	if app.Metrics != nil {
		retrievalOpts = append(retrievalOpts, retrieval.WithMetrics(app.Metrics))
		assistantOpts = append(assistantOpts, assistant.WithMetrics(app.Metrics))
	}

	app.Retrieval = retrieval.NewEngine(
		app.Repository,
		app.Fallback,
		ranking.DefaultPolicy(cfg.Retrieval.PlatformSkills),
		RetrievalConfig(cfg.Retrieval),
		retrievalOpts...,
	)
	app.Assistant = assistant.NewService(
		app.Guard,
		app.Classifier,
		app.Moderator,
		app.Retrieval,
		app.Repository,
		gen,
		AssistantConfig(cfg),
		assistantOpts...,
	)

	ok = true
	return app, nil
}

func (a *App) openDatabase(o *options) error {
	cfg := a.Config
	var gormOpts []logger.GormOption
	if cfg.Telemetry.DBSlowQueryThresh > 0 {
		gormOpts = append(gormOpts, logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	}
	gormLog := logger.NewGormLogger(a.Logger, logger.MapGormLogLevel(cfg.Log.Level), gormOpts...)

	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		if o.requireDB {
			return err
		}
		a.Logger.Warn("Evidence store unreachable, starting degraded", zap.Error(err))
		db, err = persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog), persistence.Lazy())
		if err != nil {
			return err
		}
	} else {
		a.Logger.Info("Database connected successfully",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.DBName),
		)
	}
	a.Database = db
	a.closers = append(a.closers, db.Close)

	if o.dbTracing {
		err := telemetry.TraceDatabase(db.DB, telemetry.DBTracingConfig{
			LogFullSQL: cfg.Telemetry.DBLogFullSQL,
			SlowQuery:  cfg.Telemetry.DBSlowQueryThresh,
		}, a.Logger)
		if err != nil {
			a.Logger.Warn("Database tracing disabled", zap.Error(err))
		}
	}

	if o.meter != nil {
		dbMetrics, err := telemetry.NewDBMetrics(o.meter, db.Stats, a.Logger)
		if err != nil {
			return fmt.Errorf("database metrics: %w", err)
		}
		if err := dbMetrics.Instrument(db.DB); err != nil {
			a.Logger.Warn("Database query metrics disabled", zap.Error(err))
		}
		a.closers = append(a.closers, func() error {
			dbMetrics.Stop()
			return nil
		})
	}

	a.Repository = persistence.NewGormEvidenceRepository(db.DB)
	return nil
}

func (a *App) openFallback(ctx context.Context) (*fallback.Catalog, error) {
	location := a.Config.Retrieval.FallbackSource

	var client fallback.ObjectGetter
	if strings.HasPrefix(location, "s3://") {
		reader, err := storage.NewS3ObjectReader(ctx, &a.Config.Storage, storage.WithLogger(a.Logger))
		if err != nil {
			return nil, fmt.Errorf("fallback object storage: %w", err)
		}
		client = reader
	}

	source, err := fallback.ParseSource(location, client)
	if err != nil {
		return nil, err
	}

	catalog := fallback.New(source, fallback.WithLogger(a.Logger))
	if err := catalog.Reload(ctx); err != nil {
		a.Logger.Warn("Fallback evidence not loaded, continuing without it", zap.Error(err))
	}
	return catalog, nil
}

// Close releases everything Build opened
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// GuardPolicy applies the configured thresholds over the defaults.
func GuardPolicy(cfg config.GuardConfig) guard.Policy {
	p := guard.DefaultPolicy()
	if cfg.Window > 0 {
		p.Window = cfg.Window
	}
	if cfg.Limit > 0 {
		p.Limit = cfg.Limit
	}
	if cfg.StrikeLimit > 0 {
		p.StrikeLimit = cfg.StrikeLimit
	}
	if cfg.LockDuration > 0 {
		p.LockDuration = cfg.LockDuration
	}
	return p
}

func knownContacts(in []config.KnownContact) []intent.KnownContact {
	out := make([]intent.KnownContact, 0, len(in))
	for _, c := range in {
		out = append(out, intent.KnownContact{Name: c.Name, Greeting: c.Greeting})
	}
	return out
}

// RetrievalConfig overlays configured thresholds on the retrieval defaults
func RetrievalConfig(cfg config.RetrievalConfig) retrieval.Config {
	out := retrieval.DefaultConfig()
	if cfg.ProjectSimilarity > 0 {
		out.ProjectSimilarity = cfg.ProjectSimilarity
	}
	if cfg.SkillSimilarity > 0 {
		out.SkillSimilarity = cfg.SkillSimilarity
	}
	if cfg.DashboardDensity > 0 {
		out.DashboardDensity = cfg.DashboardDensity
	}
	return out
}

// AssistantConfig overlays persona and generator settings on the defaults
func AssistantConfig(cfg *config.Config) assistant.Config {
	out := assistant.DefaultConfig()
	a := cfg.Assistant
	if a.PersonName != "" {
		out.PersonName = a.PersonName
	}
	if a.ContactURL != "" {
		out.ContactURL = a.ContactURL
	}
	if a.ResumeURL != "" {
		out.ResumeURL = a.ResumeURL
	}
	if a.DashboardsURL != "" {
		out.DashboardsURL = a.DashboardsURL
	}
	if a.MaxHistoryTurns > 0 {
		out.MaxHistoryTurns = a.MaxHistoryTurns
	}
	g := cfg.Generator
	if g.Timeout > 0 {
		out.GeneratorTimeout = g.Timeout
	}
	if g.MaxTokens > 0 {
		out.MaxTokens = g.MaxTokens
	}
	if g.Temperature > 0 {
		out.Temperature = g.Temperature
	}
	return out
}
