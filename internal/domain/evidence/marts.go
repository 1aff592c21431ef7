package evidence

// ProjectCounts is the per-project aggregate mart row.
type ProjectCounts struct {
	SkillsCount        int
	PrimarySkillsCount int
	DashboardPages     int
	ProjectPages       int
	WriteupPages       int
}

// ProfilePage is one page entry of a project profile.
type ProfilePage struct {
	Slug         string       `json:"slug"`
	Title        string       `json:"title"`
	URL          string       `json:"url"`
	Type         PageType     `json:"page_type"`
	Relationship Relationship `json:"relationship"`
}

// ProfileSkill is one skill entry of a project profile.
type ProfileSkill struct {
	Name        string     `json:"name"`
	Confidence  Confidence `json:"confidence"`
	Strength    Strength   `json:"strength"`
	ProofWeight int        `json:"proof_weight"`
}

// ProjectProfile is the pre-joined evidence unit for one project. Pages are
// ordered by type, relationship and title; skills by strength, proof weight
// descending and name.
type ProjectProfile struct {
	Project Project
	Counts  ProjectCounts
	Pages   []ProfilePage
	Skills  []ProfileSkill
}

// PrimaryLink returns the best evidence link for the profile: the first
// primary page, then any page, then the demo or repository URL.
func (p ProjectProfile) PrimaryLink() (Link, bool) {
	for _, pg := range p.Pages {
		if pg.Relationship == RelationshipPrimary && pg.URL != "" {
			return Link{Title: pg.Title, URL: pg.URL}, true
		}
	}
	for _, pg := range p.Pages {
		if pg.URL != "" {
			return Link{Title: pg.Title, URL: pg.URL}, true
		}
	}
	if p.Project.DemoURL != "" {
		return Link{Title: p.Project.Name + " demo", URL: p.Project.DemoURL}, true
	}
	if p.Project.RepoURL != "" {
		return Link{Title: p.Project.Name + " repository", URL: p.Project.RepoURL}, true
	}
	return Link{}, false
}

// HasSkill reports whether the profile lists a skill with the given name,
// compared case-insensitively.
func (p ProjectProfile) HasSkill(name string) bool {
	for _, s := range p.Skills {
		if equalFold(s.Name, name) {
			return true
		}
	}
	return false
}

// PortfolioStats are global counts included in every evidence bundle.
type PortfolioStats struct {
	PublishedProjects int `json:"published_projects"`
	ExpertSkills      int `json:"expert_skills"`
	StrongSkills      int `json:"strong_skills"`
	DashboardPages    int `json:"dashboard_pages"`
}

// ProjectAudit carries what the invariant audit needs for one project,
// including drafts.
type ProjectAudit struct {
	Project    Project
	SkillCount int
	PageCount  int
}
