// Package evidencetest provides test doubles for the evidence store.
package evidencetest

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/rowens2025/powervisualize/internal/domain/evidence"
	"github.com/rowens2025/powervisualize/internal/domain/shared"
)

// MockRepository is a testify mock of evidence.Repository.
type MockRepository struct {
	mock.Mock
}

var _ evidence.Repository = (*MockRepository)(nil)

func (m *MockRepository) ListSkills(ctx context.Context) ([]evidence.Skill, error) {
	args := m.Called(ctx)
	return sliceArg[evidence.Skill](args, 0), args.Error(1)
}

func (m *MockRepository) ProjectsForSkill(ctx context.Context, skillID int64) ([]evidence.ProjectMatch, error) {
	args := m.Called(ctx, skillID)
	return sliceArg[evidence.ProjectMatch](args, 0), args.Error(1)
}

func (m *MockRepository) SearchProjects(ctx context.Context, text string, threshold float64, limit int) ([]evidence.ProjectMatch, error) {
	args := m.Called(ctx, text, threshold, limit)
	return sliceArg[evidence.ProjectMatch](args, 0), args.Error(1)
}

func (m *MockRepository) SearchSkillsByName(ctx context.Context, text string, threshold float64, limit int) ([]evidence.SkillMatch, error) {
	args := m.Called(ctx, text, threshold, limit)
	return sliceArg[evidence.SkillMatch](args, 0), args.Error(1)
}

func (m *MockRepository) SearchSkillsByAlias(ctx context.Context, text string) ([]evidence.SkillMatch, error) {
	args := m.Called(ctx, text)
	return sliceArg[evidence.SkillMatch](args, 0), args.Error(1)
}

func (m *MockRepository) ProjectsForSkills(ctx context.Context, skillIDs []int64, limit int) ([]evidence.ProjectMatch, error) {
	args := m.Called(ctx, skillIDs, limit)
	return sliceArg[evidence.ProjectMatch](args, 0), args.Error(1)
}

func (m *MockRepository) DashboardPagesForSkill(ctx context.Context, skillID int64) ([]evidence.Page, error) {
	args := m.Called(ctx, skillID)
	return sliceArg[evidence.Page](args, 0), args.Error(1)
}

func (m *MockRepository) ProjectProfiles(ctx context.Context, slugs []string) ([]evidence.ProjectProfile, error) {
	args := m.Called(ctx, slugs)
	return sliceArg[evidence.ProjectProfile](args, 0), args.Error(1)
}

func (m *MockRepository) Stats(ctx context.Context) (evidence.PortfolioStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(evidence.PortfolioStats), args.Error(1)
}

func (m *MockRepository) PublicPersonality(ctx context.Context) ([]evidence.PersonalityAttribute, error) {
	args := m.Called(ctx)
	return sliceArg[evidence.PersonalityAttribute](args, 0), args.Error(1)
}

func (m *MockRepository) AuditProjects(ctx context.Context) ([]evidence.ProjectAudit, error) {
	args := m.Called(ctx)
	return sliceArg[evidence.ProjectAudit](args, 0), args.Error(1)
}

func (m *MockRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func sliceArg[T any](args mock.Arguments, i int) []T {
	if args.Get(i) == nil {
		return nil
	}
	return args.Get(i).([]T)
}

// StaticFallback is an in-memory evidence.FallbackSource.
type StaticFallback []evidence.FallbackSkill

func (f StaticFallback) Find(name string) (evidence.FallbackSkill, bool) {
	for _, s := range f {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return evidence.FallbackSkill{}, false
}

func (f StaticFallback) Detect(question string) (evidence.FallbackSkill, bool) {
	q := shared.Normalize(question)
	for _, s := range f {
		for _, term := range append([]string{s.Name}, s.Aliases...) {
			if shared.ContainsPhrase(q, shared.Normalize(term)) {
				return s, true
			}
		}
	}
	return evidence.FallbackSkill{}, false
}
