// Package intent classifies a question into one intent from a closed set
// using an ordered list of pattern rules. The first matching rule wins.
package intent

import (
	"regexp"
	"strings"

	"github.com/rowens2025/powervisualize/internal/domain/shared"
)

// Intent is the classified purpose of a question.
type Intent string

const (
	SelfIdentification Intent = "self_identification"
	PageContextQuery   Intent = "page_context"
	Personality        Intent = "personality"
	Acknowledgement    Intent = "acknowledgement"
	Contact            Intent = "contact"
	Resume             Intent = "resume"
	WorkStyle          Intent = "work_style"
	Personal           Intent = "personal"
	Professional       Intent = "professional"
)

// Deterministic reports whether the intent is answered without retrieval
// and without the generator.
func (i Intent) Deterministic() bool {
	return i != Professional
}

// Turn is one prior message of the conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PageContext describes the page the visitor is on.
type PageContext struct {
	Path     string `json:"path"`
	Title    string `json:"title"`
	PageSlug string `json:"pageSlug"`
	PageType string `json:"pageType"`
}

// Input is what the classifier sees.
type Input struct {
	Question string
	History  []Turn
	Page     *PageContext
}

// Rule maps a set of patterns to an intent. A rule matches when any pattern
// matches the normalized question and Requires (if set) holds.
type Rule struct {
	Name     string
	Intent   Intent
	Patterns []*regexp.Regexp
	Requires func(Input) bool
}

// Matches reports whether the rule applies to the normalized question.
func (r Rule) Matches(in Input, normalized string) bool {
	if r.Requires != nil && !r.Requires(in) {
		return false
	}
	for _, p := range r.Patterns {
		if p.MatchString(normalized) {
			return true
		}
	}
	return false
}

// KnownContact is a correspondent who gets a personal greeting.
type KnownContact struct {
	Name     string
	Greeting string
}

// Config parameterizes the rule set.
type Config struct {
	PersonName string
	Contacts   []KnownContact
}

// Classification is the classifier's verdict.
type Classification struct {
	Intent         Intent
	Rule           string
	AboutAssistant bool
	Contact        *KnownContact
}

type contactPattern struct {
	contact KnownContact
	pattern *regexp.Regexp
}

// Classifier evaluates rules in order.
type Classifier struct {
	rules     []Rule
	assistant []*regexp.Regexp
	contacts  []contactPattern
}

// NewClassifier compiles the default rule set for cfg.
func NewClassifier(cfg Config) *Classifier {
	c := &Classifier{
		assistant: compileAll(cfg.PersonName, assistantPatterns),
	}
	for _, kc := range cfg.Contacts {
		if strings.TrimSpace(kc.Name) == "" {
			continue
		}
		c.contacts = append(c.contacts, contactPattern{contact: kc, pattern: IdentityPattern(kc.Name)})
	}
	c.rules = DefaultRules(cfg.PersonName, c.contactRegexps())
	return c
}

// newClassifierWithRules builds a classifier over a caller-provided rule list.
func newClassifierWithRules(rules []Rule, contacts []KnownContact) *Classifier {
	c := &Classifier{rules: rules, assistant: compileAll("", assistantPatterns)}
	for _, kc := range contacts {
		c.contacts = append(c.contacts, contactPattern{contact: kc, pattern: IdentityPattern(kc.Name)})
	}
	return c
}

// Rules returns the rules in evaluation order.
func (c *Classifier) Rules() []Rule {
	return c.rules
}

// ContactPatterns returns the compiled self-identification patterns.
func (c *Classifier) ContactPatterns() []*regexp.Regexp {
	return c.contactRegexps()
}

func (c *Classifier) contactRegexps() []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(c.contacts))
	for _, cp := range c.contacts {
		out = append(out, cp.pattern)
	}
	return out
}

// Classify returns the intent of the first matching rule, or Professional.
func (c *Classifier) Classify(in Input) Classification {
	q := shared.Normalize(in.Question)
	out := Classification{Intent: Professional, Rule: "default"}

	for _, r := range c.rules {
		if r.Matches(in, q) {
			out.Intent = r.Intent
			out.Rule = r.Name
			break
		}
	}
	if out.Intent == SelfIdentification {
		for _, cp := range c.contacts {
			if cp.pattern.MatchString(q) {
				kc := cp.contact
				out.Contact = &kc
				break
			}
		}
	}
	out.AboutAssistant = anyMatch(c.assistant, q)
	return out
}

// IdentityPattern matches a visitor introducing themselves by name.
func IdentityPattern(name string) *regexp.Regexp {
	n := regexp.QuoteMeta(shared.Normalize(name))
	return regexp.MustCompile(`(?:^|[\s,.!])(?:this is|i am|i'm|im|it's|its|my name is)\s+` + n + `\b`)
}

func anyMatch(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
