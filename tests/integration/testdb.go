// Package integration runs the evidence store and retrieval pipeline
// against a real PostgreSQL with pg_trgm, started with testcontainers.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rowens2025/powervisualize/internal/infrastructure/config"
	"github.com/rowens2025/powervisualize/internal/infrastructure/logger"
	"github.com/rowens2025/powervisualize/internal/infrastructure/migration"
	"github.com/rowens2025/powervisualize/internal/infrastructure/persistence"
)

// evidenceStore is the package-wide container. It is started, migrated and
// seeded once; tests only read from it.
var evidenceStore struct {
	mu        sync.Mutex
	container *tcpostgres.PostgresContainer
	dsn       string
}

// TestDB is one pooled connection to the seeded store.
type TestDB struct {
	*persistence.Database
	DSN string
}

var testPool = config.DatabaseConfig{
	MaxOpenConns:   5,
	MaxIdleConns:   2,
	ConnectTimeout: 10 * time.Second,
}

// NewSharedTestDB connects to the shared store, starting it on first use.
// The connection closes with the test; the container outlives it until
// CleanupSharedContainer.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()

	evidenceStore.mu.Lock()
	defer evidenceStore.mu.Unlock()

	if evidenceStore.container == nil {
		startEvidenceStore(t)
	}

	db := openStore(t, evidenceStore.dsn)
	t.Cleanup(func() { _ = db.Close() })
	return &TestDB{Database: db, DSN: evidenceStore.dsn}
}

// CleanupSharedContainer stops the shared store. TestMain calls it.
func CleanupSharedContainer() {
	evidenceStore.mu.Lock()
	defer evidenceStore.mu.Unlock()

	if evidenceStore.container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = evidenceStore.container.Terminate(ctx)
	evidenceStore.container, evidenceStore.dsn = nil, ""
}

func startEvidenceStore(t *testing.T) {
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("powervisualize_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err, "start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// The migrator closes the pool it is given, so setup gets its own.
	setup := openStore(t, dsn)
	seedEvidence(t, setup.DB)
	evidenceStore.container, evidenceStore.dsn = container, dsn
}

func openStore(t *testing.T, dsn string) *persistence.Database {
	t.Helper()

	var opts []persistence.Option
	if os.Getenv("TEST_DB_DEBUG") != "" {
		opts = append(opts, persistence.WithLogger(logger.NewGormLogger(zaptest.NewLogger(t), gormlogger.Info)))
	}
	cfg := testPool
	db, err := persistence.Open(gormpostgres.Open(dsn), &cfg, opts...)
	require.NoError(t, err, "connect to evidence store")
	return db
}

func seedEvidence(t *testing.T, db *gorm.DB) {
	t.Helper()

	dir := migrationsDir()
	require.NotEmpty(t, dir, "migrations directory not found")

	pool, err := db.DB()
	require.NoError(t, err)
	m, err := migration.New(pool, dir, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up(), "apply migrations")

	// Up leaves the pool open; seed before the migrator closes it.
	err = db.Transaction(func(tx *gorm.DB) error {
		for _, stmt := range strings.Split(seedSQL, ";\n") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err, "seed evidence")
	_ = m.Close()
}

// migrationsDir finds the repository's migrations by walking up from here.
func migrationsDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	for dir := filepath.Dir(file); dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
	}
	return ""
}

// seedSQL is a small portfolio: a BI dashboard, the assistant itself
// (self-referential), a Python model, and an unpublished draft.
const seedSQL = `
INSERT INTO skills (id, name, confidence, aliases, summary) VALUES
    (1, 'Power BI', 'expert', '{powerbi,pbi}', 'Semantic models, DAX and report design.'),
    (2, 'Python',   'strong', '{py}',          NULL),
    (3, 'dbt',      'strong', '{data build tool}', 'Transformation layer for the marts.');

INSERT INTO projects (id, slug, name, summary, status, repo_url, self_referential) VALUES
    (1, 'sales-dashboard',     'Sales Performance Dashboard', 'Regional sales dashboard built in Power BI', 'published', NULL, FALSE),
    (2, 'portfolio-assistant', 'Portfolio Assistant', 'The assistant answering questions on this site', 'published', 'https://github.com/rowens2025/powervisualize', TRUE),
    (3, 'churn-model',         'Customer Churn Model', 'Python model predicting subscription churn', 'published', NULL, FALSE),
    (4, 'wip-notes',           'Work In Progress', 'Unfinished', 'draft', NULL, FALSE);

INSERT INTO pages (id, slug, title, url, page_type) VALUES
    (1, 'sales',     'Sales Dashboard',     '/dashboards/sales',       'dashboard'),
    (2, 'assistant', 'About the Assistant', '/projects/assistant',     'assistant'),
    (3, 'churn',     'Churn Model Writeup', '/writeups/churn-model',   'writeup'),
    (4, 'churn-proj','Churn Model',         '/projects/churn-model',   'project');

INSERT INTO project_skills (project_id, skill_id, strength, proof_weight) VALUES
    (1, 1, 'primary',   4),
    (2, 1, 'secondary', 5),
    (2, 2, 'primary',   5),
    (3, 2, 'primary',   4),
    (3, 3, 'secondary', 3);

INSERT INTO project_pages (project_id, page_id, relationship) VALUES
    (1, 1, 'primary'),
    (2, 2, 'primary'),
    (3, 4, 'primary'),
    (3, 3, 'supporting');

INSERT INTO team_members (id, name) VALUES (1, 'Ryan');
INSERT INTO personality_attributes (id, category, subcategory, value, public) VALUES
    (1, 'mbti', '', 'INTJ', TRUE),
    (2, 'private', '', 'hidden', FALSE);
INSERT INTO member_personality (member_id, attribute_id) VALUES (1, 1), (1, 2);
`
