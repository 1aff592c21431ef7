package assistant

import (
	"regexp"
	"strings"

	"github.com/rowens2025/powervisualize/internal/application/retrieval"
	"github.com/rowens2025/powervisualize/internal/domain/evidence"
	"github.com/rowens2025/powervisualize/internal/domain/generation"
)

const hedgePrefix = "I can only partly confirm this from published evidence. "

var (
	phonePattern  = regexp.MustCompile(`(?:\+?\d{1,3}[\s.-]?)?(?:\(\d{3}\)|\d{3})[\s.-]?\d{3}[\s.-]?\d{4}\b`)
	spacePattern  = regexp.MustCompile(`[ \t]{2,}`)
	hedgePatterns = regexp.MustCompile(`(?i)\b(?:can't confirm|cannot confirm|couldn't confirm|could not confirm|not able to confirm|unable to confirm|no (?:published )?evidence|not sure|unclear|i don't have|i do not have|only partly)\b`)
)

// ConfirmedSkills returns the skills the evidence bundle proves: the
// detected skill and any related skill that a selected project profile
// lists. The result does not depend on generator output.
func ConfirmedSkills(res *retrieval.Result) []string {
	candidates := make([]string, 0, 1+len(res.RelatedSkills))
	if res.Skill != nil {
		candidates = append(candidates, res.Skill.Skill.Name)
	}
	for _, m := range res.RelatedSkills {
		candidates = append(candidates, m.Skill.Name)
	}

	out := []string{}
	for _, name := range candidates {
		if containsFold(out, name) {
			continue
		}
		for _, p := range res.Profiles {
			if p.HasSkill(name) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// EvidenceLinks returns the primary link of every selected profile in rank
// order, plus the dashboard index for a dashboard-index resolution.
func EvidenceLinks(res *retrieval.Result, dashboardsURL string) []evidence.Link {
	out := []evidence.Link{}
	seen := map[string]struct{}{}
	add := func(l evidence.Link) {
		if l.URL == "" {
			return
		}
		if _, ok := seen[l.URL]; ok {
			return
		}
		seen[l.URL] = struct{}{}
		out = append(out, l)
	}

	if res.Resolution == retrieval.ResolutionDashboardIndex && dashboardsURL != "" {
		add(evidence.Link{Title: res.SkillName() + " dashboards", URL: dashboardsURL})
	}
	for _, p := range res.Profiles {
		if l, ok := p.PrimaryLink(); ok {
			add(l)
		}
	}
	return out
}

// PostProcess fills resp from generator output. Evidence fields come from
// the bundle; claimed skills outside it are reported as missing.
func PostProcess(resp *Response, out *generation.Output, res *retrieval.Result, confirmed []string, links []evidence.Link) {
	resp.SkillsConfirmed = append([]string{}, confirmed...)
	resp.EvidenceLinks = append([]evidence.Link{}, links...)

	missing := []string{}
	addMissing := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" && !containsFold(missing, s) {
			missing = append(missing, s)
		}
	}
	for _, m := range out.MissingInfo {
		addMissing(m)
	}
	for _, claim := range out.SkillsConfirmed {
		if !containsFold(confirmed, strings.TrimSpace(claim)) {
			addMissing("Could not confirm " + strings.TrimSpace(claim) + " from published evidence")
		}
	}
	if name := res.SkillName(); name != "" && !containsFold(confirmed, name) {
		addMissing(missingEvidence(name))
	}
	resp.MissingInfo = missing

	answer := StripPhoneNumbers(out.Answer)
	if len(missing) > 0 && !Hedges(answer) {
		answer = hedgePrefix + answer
	}
	resp.Answer = answer

	if len(resp.SkillsConfirmed) == 0 || Hedges(answer) {
		resp.Trace = []string{}
	} else {
		resp.Trace = append([]string{}, res.Trace...)
	}
}

// StripPhoneNumbers removes phone numbers from s.
func StripPhoneNumbers(s string) string {
	s = phonePattern.ReplaceAllString(s, "")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Hedges reports whether the answer already signals uncertainty.
func Hedges(answer string) bool {
	return hedgePatterns.MatchString(answer)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
