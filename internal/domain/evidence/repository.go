package evidence

import "context"

// Repository reads the analytical store. Implementations only return
// published projects unless a method says otherwise.
type Repository interface {
	// ListSkills returns the full skill catalog ordered by name.
	ListSkills(ctx context.Context) ([]Skill, error)

	// ProjectsForSkill returns every published project linked to the skill,
	// with the maximum proof weight across its links and its counts row.
	ProjectsForSkill(ctx context.Context, skillID int64) ([]ProjectMatch, error)

	// SearchProjects runs a trigram search over project name, slug and
	// summary, returning at most limit matches above threshold.
	SearchProjects(ctx context.Context, text string, threshold float64, limit int) ([]ProjectMatch, error)

	// SearchSkillsByName runs a trigram search over skill names.
	SearchSkillsByName(ctx context.Context, text string, threshold float64, limit int) ([]SkillMatch, error)

	// SearchSkillsByAlias returns skills with an alias contained in text.
	SearchSkillsByAlias(ctx context.Context, text string) ([]SkillMatch, error)

	// ProjectsForSkills ranks published projects by the number of the given
	// skills they use, then summed proof weight.
	ProjectsForSkills(ctx context.Context, skillIDs []int64, limit int) ([]ProjectMatch, error)

	// DashboardPagesForSkill returns the distinct dashboard pages reachable
	// from the skill through its published projects.
	DashboardPagesForSkill(ctx context.Context, skillID int64) ([]Page, error)

	// ProjectProfiles returns profiles for the given slugs in the given order.
	ProjectProfiles(ctx context.Context, slugs []string) ([]ProjectProfile, error)

	// Stats returns global portfolio counts.
	Stats(ctx context.Context) (PortfolioStats, error)

	// PublicPersonality returns personality rows flagged public.
	PublicPersonality(ctx context.Context) ([]PersonalityAttribute, error)

	// AuditProjects returns every project, drafts included, with link counts.
	AuditProjects(ctx context.Context) ([]ProjectAudit, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// FallbackSkill is a curated, lower-trust skill summary used when the
// primary store has no project mapping.
type FallbackSkill struct {
	Name       string   `yaml:"name"`
	Aliases    []string `yaml:"aliases"`
	Summary    string   `yaml:"summary"`
	ProofLinks []Link   `yaml:"proof_links"`
}

// FallbackSource looks up curated skill summaries.
type FallbackSource interface {
	// Find returns the entry for a canonical skill name.
	Find(name string) (FallbackSkill, bool)
	// Detect finds the entry whose name or alias occurs in the question.
	Detect(question string) (FallbackSkill, bool)
}
