// Package moderation screens questions that fall through to retrieval.
package moderation

import (
	"regexp"
	"unicode/utf8"

	"github.com/rowens2025/powervisualize/internal/domain/intent"
	"github.com/rowens2025/powervisualize/internal/domain/shared"
)

// Severity of a rejected question.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityWarn   Severity = "warn"
	SeverityStrike Severity = "strike"
)

// Category names the check that fired.
type Category string

const (
	CategoryAllowListed Category = "allow_listed"
	CategorySexual      Category = "sexual"
	CategoryHarassment  Category = "harassment"
	CategoryOffTopic    Category = "off_topic"
)

// Verdict is the moderator's decision.
type Verdict struct {
	Allowed  bool
	Severity Severity
	Category Category
}

var (
	sexualPatterns = mustCompile(
		`\b(?:sex|sexy|nude|nudes|naked|porn\w*|nsfw|onlyfans|horny|hookup|hook up)\b`,
		`\b(?:send|show) (?:me )?(?:pics|pictures|photos) of (?:him|yourself|your body)\b`,
	)

	harassmentPatterns = mustCompile(
		`\b(?:kill yourself|kys|go die|i will (?:hurt|kill|find) (?:you|him))\b`,
		`\b(?:idiot|moron|retard\w*|stupid (?:bot|ai|assistant)|piece of (?:shit|garbage)|fuck (?:you|off|him))\b`,
		`\b(?:hate (?:him|you|all)|subhuman|vermin)\b`,
	)

	careerKeywords = mustCompile(
		`\b(?:work\w*|job|role|career|experience|project\w*|skill\w*|portfolio|resume|cv|hire|hiring|team|dashboard\w*|data|sql|python|analytics|analyst|engineer\w*|develop\w*|build\w*|built|tools?|stack|tech\w*|report\w*|model\w*|pipeline\w*|cloud|bi|etl|client\w*|industry|certif\w*|education|degree|code|coding|program\w*)\b`,
	)

	offTopicPatterns = mustCompile(
		`\b(?:weather|recipe|cook\w*|movie\w*|song|lyrics|poem|joke|horoscope|zodiac|sports?|football|basketball|soccer|game of thrones|celebrity|gossip)\b`,
		`\b(?:write (?:me )?(?:a|an) (?:essay|story|poem|song)|do my homework|solve this|translate)\b`,
		`\b(?:what is the meaning of life|tell me a joke|who (?:won|will win)|capital of)\b`,
		`\b(?:how are you|what's up|how's it going|how is your day)\b`,
	)
)

// Moderator applies the checks in order: allow-listed identity, sexual
// content, harassment, off-topic.
type Moderator struct {
	allow          []*regexp.Regexp
	minOffTopicLen int
}

// Option configures a Moderator.
type Option func(*Moderator)

// WithAllowList lets messages from a conversation in which a known
// correspondent identified themselves through unconditionally.
func WithAllowList(patterns []*regexp.Regexp) Option {
	return func(m *Moderator) {
		m.allow = append(m.allow, patterns...)
	}
}

// WithMinOffTopicLength sets the rune count a question must exceed before
// the off-topic heuristic applies.
func WithMinOffTopicLength(n int) Option {
	return func(m *Moderator) {
		m.minOffTopicLen = n
	}
}

// New creates a moderator.
func New(opts ...Option) *Moderator {
	m := &Moderator{minOffTopicLen: 12}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Review screens question, consulting prior user turns for the allow-list.
func (m *Moderator) Review(question string, history []intent.Turn) Verdict {
	q := shared.Normalize(question)

	if m.allowListed(q, history) {
		return Verdict{Allowed: true, Severity: SeverityNone, Category: CategoryAllowListed}
	}
	if anyMatch(sexualPatterns, q) {
		return Verdict{Allowed: false, Severity: SeverityStrike, Category: CategorySexual}
	}
	if anyMatch(harassmentPatterns, q) {
		return Verdict{Allowed: false, Severity: SeverityStrike, Category: CategoryHarassment}
	}
	if !anyMatch(careerKeywords, q) && anyMatch(offTopicPatterns, q) && utf8.RuneCountInString(q) > m.minOffTopicLen {
		return Verdict{Allowed: false, Severity: SeverityWarn, Category: CategoryOffTopic}
	}
	return Verdict{Allowed: true, Severity: SeverityNone}
}

func (m *Moderator) allowListed(q string, history []intent.Turn) bool {
	if len(m.allow) == 0 {
		return false
	}
	if anyMatch(m.allow, q) {
		return true
	}
	for _, t := range history {
		if t.Role == "user" && anyMatch(m.allow, shared.Normalize(t.Content)) {
			return true
		}
	}
	return false
}

func anyMatch(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func mustCompile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}
