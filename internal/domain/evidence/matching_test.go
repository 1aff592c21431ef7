package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalog() []Skill {
	return []Skill{
		{ID: 1, Name: "Power BI", Confidence: ConfidenceExpert, Aliases: []string{"powerbi", "power-bi"}},
		{ID: 2, Name: "SQL", Confidence: ConfidenceExpert, Aliases: []string{"t-sql", "postgres sql"}},
		{ID: 3, Name: "PostgreSQL", Confidence: ConfidenceStrong, Aliases: []string{"pg"}},
		{ID: 4, Name: "R", Confidence: ConfidenceStrong},
		{ID: 5, Name: "Power Query", Confidence: ConfidenceStrong, Aliases: []string{"m language"}},
	}
}

func TestDetectSkill(t *testing.T) {
	tests := []struct {
		name     string
		question string
		wantID   int64
		wantKind MatchKind
		found    bool
	}{
		{"name match", "Does Ryan have Power BI experience?", 1, MatchName, true},
		{"alias match", "any powerbi work?", 1, MatchAlias, true},
		{"name beats longer alias", "postgres sql or SQL?", 2, MatchName, true},
		{"longest name wins", "postgresql and sql", 3, MatchName, true},
		{"single letter needs boundaries", "tell me about his career", 0, "", false},
		{"single letter with boundaries", "does he use r for stats", 4, MatchName, true},
		{"expansion when nothing matched", "show me pbi reports", 1, MatchExpansion, true},
		{"expansion target must exist", "what about k8s", 0, "", false},
		{"nothing", "what does he do on weekends", 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := DetectSkill(tt.question, catalog(), DefaultExpansions)
			require.Equal(t, tt.found, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantID, m.Skill.ID)
			assert.Equal(t, tt.wantKind, m.Kind)
		})
	}
}

func TestMergeSkillMatches_PrefersTrigram(t *testing.T) {
	sk := catalog()
	trigram := []SkillMatch{
		{Skill: sk[2], Kind: MatchTrigram, Similarity: 0.6},
		{Skill: sk[0], Kind: MatchTrigram, Similarity: 0.5},
	}
	alias := []SkillMatch{
		{Skill: sk[2], Kind: MatchAlias, Matched: "pg"},
		{Skill: sk[4], Kind: MatchAlias, Matched: "m language"},
	}

	merged := MergeSkillMatches(trigram, alias)
	require.Len(t, merged, 3)
	assert.Equal(t, int64(3), merged[0].Skill.ID)
	assert.Equal(t, MatchTrigram, merged[0].Kind)
	assert.Equal(t, int64(1), merged[1].Skill.ID)
	assert.Equal(t, int64(5), merged[2].Skill.ID)
	assert.Equal(t, MatchAlias, merged[2].Kind)
}

func TestProjectProfile_PrimaryLink(t *testing.T) {
	p := ProjectProfile{
		Project: Project{Name: "Sales", DemoURL: "https://demo"},
		Pages: []ProfilePage{
			{Title: "Writeup", URL: "/writeups/sales", Relationship: RelationshipSupporting},
			{Title: "Sales Dashboard", URL: "/dashboards/sales", Relationship: RelationshipPrimary},
		},
	}
	link, ok := p.PrimaryLink()
	require.True(t, ok)
	assert.Equal(t, "/dashboards/sales", link.URL)

	p.Pages = nil
	link, ok = p.PrimaryLink()
	require.True(t, ok)
	assert.Equal(t, "https://demo", link.URL)

	p.Project.DemoURL = ""
	_, ok = p.PrimaryLink()
	assert.False(t, ok)
}

func TestProjectProfile_HasSkill(t *testing.T) {
	p := ProjectProfile{Skills: []ProfileSkill{{Name: "Power BI"}}}
	assert.True(t, p.HasSkill("power bi"))
	assert.False(t, p.HasSkill("Tableau"))
}
