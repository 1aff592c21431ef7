package evidence

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rowens2025/powervisualize/internal/domain/shared"
)

// MatchKind records how a skill was resolved from a question.
type MatchKind string

const (
	MatchName      MatchKind = "name"
	MatchAlias     MatchKind = "alias"
	MatchExpansion MatchKind = "expansion"
	MatchTrigram   MatchKind = "trigram"
)

// SkillMatch is a skill resolved from question text.
type SkillMatch struct {
	Skill      Skill
	Kind       MatchKind
	Matched    string // the name, alias or token that matched
	Similarity float64
}

// ProjectMatch is a candidate project produced by a retrieval stage.
type ProjectMatch struct {
	Project       Project
	Counts        ProjectCounts
	ProofWeight   int      // max proof weight across the matched links
	Strength      Strength // strongest link strength for the matched skill
	SelfEvidence  bool     // a matched link is flagged as legitimate self-proof
	MatchedSkills int      // skill-derived candidates only
	Similarity    float64  // fuzzy candidates only
}

// Expansion maps a hand-authorized shorthand to a canonical skill name.
type Expansion struct {
	Pattern *regexp.Regexp
	Skill   string
}

// DefaultExpansions are the shorthand tokens tried when no skill name or
// alias is found in the question.
var DefaultExpansions = []Expansion{
	{Pattern: regexp.MustCompile(`\bpbi\b`), Skill: "Power BI"},
	{Pattern: regexp.MustCompile(`\bpostgres\b`), Skill: "PostgreSQL"},
	{Pattern: regexp.MustCompile(`\bk8s\b`), Skill: "Kubernetes"},
	{Pattern: regexp.MustCompile(`\bgcp\b`), Skill: "Google Cloud"},
	{Pattern: regexp.MustCompile(`\bml\b`), Skill: "Machine Learning"},
	{Pattern: regexp.MustCompile(`\bllms?\b`), Skill: "Large Language Models"},
	{Pattern: regexp.MustCompile(`\bjs\b`), Skill: "JavaScript"},
	{Pattern: regexp.MustCompile(`\bts\b`), Skill: "TypeScript"},
}

// DetectSkill finds the skill whose name or alias occurs in the question.
// Any name match beats any alias match; within a kind the longest match
// wins and remaining ties keep catalog order. When nothing matches, the
// expansions are tried in order.
func DetectSkill(question string, catalog []Skill, expansions []Expansion) (SkillMatch, bool) {
	q := shared.Normalize(question)

	var best SkillMatch
	bestLen := 0
	found := false

	consider := func(s Skill, kind MatchKind, term string) {
		n := shared.Normalize(term)
		if !shared.ContainsPhrase(q, n) {
			return
		}
		l := utf8.RuneCountInString(n)
		switch {
		case !found:
		case kind == MatchName && best.Kind == MatchAlias:
		case kind == best.Kind && l > bestLen:
		default:
			return
		}
		best = SkillMatch{Skill: s, Kind: kind, Matched: term}
		bestLen = l
		found = true
	}

	for _, s := range catalog {
		consider(s, MatchName, s.Name)
	}
	for _, s := range catalog {
		for _, a := range s.Aliases {
			consider(s, MatchAlias, a)
		}
	}
	if found {
		return best, true
	}

	for _, e := range expansions {
		token := e.Pattern.FindString(q)
		if token == "" {
			continue
		}
		for _, s := range catalog {
			if strings.EqualFold(s.Name, e.Skill) {
				return SkillMatch{Skill: s, Kind: MatchExpansion, Matched: token}, true
			}
		}
	}
	return SkillMatch{}, false
}

// MergeSkillMatches deduplicates fuzzy and alias search results by skill,
// keeping the trigram match when both exist. Trigram results come first in
// their given order, followed by alias-only matches.
func MergeSkillMatches(trigram, alias []SkillMatch) []SkillMatch {
	seen := make(map[int64]struct{}, len(trigram)+len(alias))
	out := make([]SkillMatch, 0, len(trigram)+len(alias))
	for _, m := range trigram {
		if _, ok := seen[m.Skill.ID]; ok {
			continue
		}
		seen[m.Skill.ID] = struct{}{}
		out = append(out, m)
	}
	for _, m := range alias {
		if _, ok := seen[m.Skill.ID]; ok {
			continue
		}
		seen[m.Skill.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

func equalFold(a, b string) bool {
	return shared.Normalize(a) == shared.Normalize(b)
}
