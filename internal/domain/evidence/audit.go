package evidence

import "fmt"

// Violation describes one broken data invariant.
type Violation struct {
	Slug    string
	Problem string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Slug, v.Problem)
}

// Audit checks the upstream invariants: valid slug and status for every
// project, and at least one skill and one page for every published one.
func Audit(rows []ProjectAudit) []Violation {
	var out []Violation
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		p := r.Project
		if err := p.Validate(); err != nil {
			out = append(out, Violation{Slug: p.Slug, Problem: err.Error()})
		}
		if _, dup := seen[p.Slug]; dup {
			out = append(out, Violation{Slug: p.Slug, Problem: "duplicate slug"})
		}
		seen[p.Slug] = struct{}{}
		if !p.Published() {
			continue
		}
		if r.SkillCount == 0 {
			out = append(out, Violation{Slug: p.Slug, Problem: "published project has no skills"})
		}
		if r.PageCount == 0 {
			out = append(out, Violation{Slug: p.Slug, Problem: "published project has no pages"})
		}
	}
	return out
}
