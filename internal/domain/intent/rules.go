package intent

import (
	"regexp"
	"strings"

	"github.com/rowens2025/powervisualize/internal/domain/shared"
)

// {name} in a pattern expands to the person's first name and pronouns.
const nameToken = "{name}"

var (
	pageContextPatterns = []string{
		`\b(?:what(?:'s| is)|explain|describe|tell me about|summari[sz]e)\b.*\bthis (?:page|dashboard|project|report|site|chart)\b`,
		`\bwhat am i (?:looking at|seeing)\b`,
		`\bwhere am i\b`,
	}

	personalityPatterns = []string{
		`\bpersonality\b`,
		`\b(?:mbti|myers[- ]briggs|enneagram|clifton ?strengths|strengthsfinder)\b`,
		`\b(?:introvert|extrovert|introverted|extroverted)\b`,
		`\bwhat(?:'s| is) {name} like\b`,
		`\b(?:{name}'s|his) (?:strengths|weaknesses|traits)\b`,
	}

	acknowledgementPatterns = []string{
		`^(?:ok(?:ay)?|k|kk|cool|nice|great|awesome|perfect|understood|got it|sounds good|makes sense|cheers|thx|ty|thanks?(?: you)?(?: so much)?(?:,? (?:that helps|got it))?)[.!\s]*$`,
	}

	contactPatterns = []string{
		`\b(?:how (?:can|do|should) i|how to|can i|best way to|where can i) (?:contact|reach|email|hire|get in touch with|connect with|talk to)\b`,
		`\b(?:contact info(?:rmation)?|email address|linkedin)\b`,
		`\bis {name} (?:available|open to (?:work|new roles|opportunities)|looking for (?:work|a job|a role))\b`,
	}

	resumePatterns = []string{
		`\b(?:resumes?|cv|curriculum vitae)\b`,
		`\brésumé`,
	}

	// Professional enjoyment must win over the hobby patterns below.
	professionalEnjoymentPatterns = []string{
		`\b(?:enjoy|like|love|prefer)s? (?:working (?:with|on|in) )?(?:testing|coding|programming|data|sql|analytics|dashboards?|building|automation|engineering|python|modeling|modelling|debugging|reporting|visuali[sz]ation)\b`,
	}

	workStylePatterns = []string{
		`\bwork(?:ing)? style\b`,
		`\bhow does {name} (?:work|approach|collaborate|handle|manage|prioriti[sz]e)\b`,
		`\bmotivat(?:es|ion|ed|e)\b`,
		`\b(?:teamwork|team player|collaborat\w*|management style|leadership style)\b`,
		`\benjoys? (?:about )?(?:his |their )?work\b`,
		`\bwhat (?:does|do) (?:{name}) (?:enjoy|like|love) about (?:his |the )?(?:work|job|role)\b`,
	}

	personalPatterns = []string{
		`\b(?:married|wife|husband|girlfriend|boyfriend|dating|kids|children)\b`,
		`\b(?:how old|age|birthday|born)\b`,
		`\b(?:religio\w*|politic\w*|vote[sd]?)\b`,
		`\b(?:where does {name} live|home address)\b`,
		`\b(?:hobbies|hobby|free time|weekends?|for fun)\b`,
		`\b(?:enjoy|like|love)s? (?:\w+ ){0,3}(?:outside (?:of )?|after )work\b`,
		`\b(?:salary|net worth|how much does {name} make)\b`,
		`\b(?:health (?:issues|problems|condition)|medical (?:history|condition))\b`,
	}

	assistantPatterns = []string{
		`\b(?:this|the) (?:assistant|chatbot|bot|agent|chat)\b`,
		`\bhow (?:were|are|was) you (?:built|made|trained|implemented|designed)\b`,
		`\bwho (?:built|made|created) you\b`,
		`\bhow do you work\b`,
		`\byour (?:architecture|stack|prompt|implementation|source)\b`,
	}
)

// DefaultRules returns the rule list in precedence order: self
// identification, page context, personality, acknowledgements, narrow
// professional patterns, work style, personal. Ties go to the earlier rule.
func DefaultRules(personName string, identity []*regexp.Regexp) []Rule {
	return []Rule{
		{Name: "self_identification", Intent: SelfIdentification, Patterns: identity},
		{Name: "page_context", Intent: PageContextQuery, Patterns: compileAll(personName, pageContextPatterns)},
		{Name: "personality", Intent: Personality, Patterns: compileAll(personName, personalityPatterns)},
		{Name: "acknowledgement", Intent: Acknowledgement, Patterns: compileAll(personName, acknowledgementPatterns)},
		{Name: "contact", Intent: Contact, Patterns: compileAll(personName, contactPatterns)},
		{Name: "resume", Intent: Resume, Patterns: compileAll(personName, resumePatterns)},
		{Name: "professional_enjoyment", Intent: Professional, Patterns: compileAll(personName, professionalEnjoymentPatterns)},
		{Name: "work_style", Intent: WorkStyle, Patterns: compileAll(personName, workStylePatterns)},
		{Name: "personal", Intent: Personal, Patterns: compileAll(personName, personalPatterns)},
	}
}

func compileAll(personName string, patterns []string) []*regexp.Regexp {
	subject := `(?:he|him|his|they)`
	if first := firstName(personName); first != "" {
		subject = `(?:` + regexp.QuoteMeta(first) + `|he|him|his|they)`
	}
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(strings.ReplaceAll(p, nameToken, subject)))
	}
	return out
}

func firstName(name string) string {
	fields := strings.Fields(shared.Normalize(name))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
