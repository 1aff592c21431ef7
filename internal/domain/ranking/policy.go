// Package ranking scores candidate projects for a question.
package ranking

import (
	"sort"

	"github.com/rowens2025/powervisualize/internal/domain/evidence"
	"github.com/rowens2025/powervisualize/internal/domain/shared"
)

// Category is the evidence category of a project.
type Category string

const (
	CategoryDashboard Category = "dashboard"
	CategoryProject   Category = "project"
	CategoryMeta      Category = "meta"
)

// Scoring constants. Tune these here; tests assert relative orderings only.
const (
	PlatformDashboardWeight = 100
	PlatformProjectWeight   = 50
	DefaultProjectWeight    = 100
	DefaultDashboardWeight  = 50
	MetaWeight              = 0
	ProofWeightFactor       = 10
	MetaPenalty             = -150
	MetaBonus               = 150
)

// Policy holds the weights used to score candidates.
type Policy struct {
	PlatformWeights   map[Category]int
	DefaultWeights    map[Category]int
	ProofWeightFactor int
	MetaPenalty       int
	MetaBonus         int
	platformSkills    map[string]struct{}
}

// DefaultPolicy returns the standard weights. platformSkills names the BI
// and platform skills for which dashboard evidence is preferred.
func DefaultPolicy(platformSkills []string) Policy {
	p := Policy{
		PlatformWeights: map[Category]int{
			CategoryDashboard: PlatformDashboardWeight,
			CategoryProject:   PlatformProjectWeight,
			CategoryMeta:      MetaWeight,
		},
		DefaultWeights: map[Category]int{
			CategoryProject:   DefaultProjectWeight,
			CategoryDashboard: DefaultDashboardWeight,
			CategoryMeta:      MetaWeight,
		},
		ProofWeightFactor: ProofWeightFactor,
		MetaPenalty:       MetaPenalty,
		MetaBonus:         MetaBonus,
		platformSkills:    make(map[string]struct{}, len(platformSkills)),
	}
	for _, s := range platformSkills {
		p.platformSkills[shared.Normalize(s)] = struct{}{}
	}
	return p
}

// IsPlatformSkill reports whether name is a configured platform skill.
func (p Policy) IsPlatformSkill(name string) bool {
	_, ok := p.platformSkills[shared.Normalize(name)]
	return ok
}

// Categorize derives a project's category from its counts row.
func Categorize(project evidence.Project, counts evidence.ProjectCounts) Category {
	switch {
	case project.SelfReferential:
		return CategoryMeta
	case counts.DashboardPages > 0 && counts.DashboardPages >= counts.ProjectPages:
		return CategoryDashboard
	default:
		return CategoryProject
	}
}

// Context is what the score depends on besides the candidate itself.
type Context struct {
	SkillName      string
	AboutAssistant bool
}

// Scored is a candidate with its computed category and score.
type Scored struct {
	evidence.ProjectMatch
	Category Category
	Score    int
}

// SelfEvidence reports whether a self-referential candidate is legitimate
// evidence: the question is about the assistant, or the matched
// project-skill link carries the self_evidence flag. Link strength alone
// never qualifies.
func SelfEvidence(m evidence.ProjectMatch, ctx Context) bool {
	return ctx.AboutAssistant || m.SelfEvidence
}

// Score computes category weight + proof weight * factor + skills count,
// adjusted by the meta penalty or bonus.
func (p Policy) Score(m evidence.ProjectMatch, ctx Context) Scored {
	cat := Categorize(m.Project, m.Counts)
	weights := p.DefaultWeights
	if ctx.SkillName != "" && p.IsPlatformSkill(ctx.SkillName) {
		weights = p.PlatformWeights
	}

	score := weights[cat] + m.ProofWeight*p.ProofWeightFactor + m.Counts.SkillsCount
	if cat == CategoryMeta {
		if SelfEvidence(m, ctx) {
			score += p.MetaBonus
		} else {
			score += p.MetaPenalty
		}
	}
	return Scored{ProjectMatch: m, Category: cat, Score: score}
}

// Rank scores and sorts candidates by descending score. Ties keep the
// retrieval order.
func (p Policy) Rank(candidates []evidence.ProjectMatch, ctx Context) []Scored {
	out := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, p.Score(c, ctx))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// Top returns at most n entries.
func Top(scored []Scored, n int) []Scored {
	if len(scored) <= n {
		return scored
	}
	return scored[:n]
}

// OnlyIllegitimateMeta reports whether every entry is a self-referential
// project that is not legitimate evidence for ctx. Empty input returns false.
func OnlyIllegitimateMeta(scored []Scored, ctx Context) bool {
	if len(scored) == 0 {
		return false
	}
	for _, s := range scored {
		if s.Category != CategoryMeta || SelfEvidence(s.ProjectMatch, ctx) {
			return false
		}
	}
	return true
}
