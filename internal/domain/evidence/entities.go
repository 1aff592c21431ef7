// Package evidence holds the read-only portfolio model: projects, skills,
// pages, the fact tables linking them and the pre-joined marts used to
// assemble answers.
package evidence

import (
	"fmt"
	"regexp"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidSlug reports whether s is a URL-safe slug.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// ProjectStatus is the publication state of a project.
type ProjectStatus string

const (
	StatusPublished ProjectStatus = "published"
	StatusDraft     ProjectStatus = "draft"
)

// IsValid reports whether the status is one of the closed set.
func (s ProjectStatus) IsValid() bool {
	return s == StatusPublished || s == StatusDraft
}

// Confidence is how strongly a skill is claimed.
type Confidence string

const (
	ConfidenceExpert Confidence = "expert"
	ConfidenceStrong Confidence = "strong"
)

// IsValid reports whether the confidence is one of the closed set.
func (c Confidence) IsValid() bool {
	return c == ConfidenceExpert || c == ConfidenceStrong
}

// Strength of a project-skill link.
type Strength string

const (
	StrengthPrimary   Strength = "primary"
	StrengthSecondary Strength = "secondary"
)

// PageType classifies site pages.
type PageType string

const (
	PageHome      PageType = "home"
	PageAbout     PageType = "about"
	PageProject   PageType = "project"
	PageDashboard PageType = "dashboard"
	PageWriteup   PageType = "writeup"
	PageAssistant PageType = "assistant"
)

// IsValid reports whether the page type is one of the closed set.
func (p PageType) IsValid() bool {
	switch p {
	case PageHome, PageAbout, PageProject, PageDashboard, PageWriteup, PageAssistant:
		return true
	}
	return false
}

// Relationship of a page to a project.
type Relationship string

const (
	RelationshipPrimary    Relationship = "primary"
	RelationshipSupporting Relationship = "supporting"
)

// Project is a portfolio project. SelfReferential marks the project that
// describes this assistant itself.
type Project struct {
	ID              int64
	Slug            string
	Name            string
	Summary         string
	Status          ProjectStatus
	RepoURL         string
	DemoURL         string
	SelfReferential bool
}

// Published reports whether the project's evidence may be shown to users.
func (p Project) Published() bool {
	return p.Status == StatusPublished
}

// Skill is a claimed skill with its alternate names.
type Skill struct {
	ID         int64
	Name       string
	Confidence Confidence
	Aliases    []string
	Summary    string
}

// Page is a page of the portfolio site.
type Page struct {
	ID    int64
	Slug  string
	Title string
	URL   string
	Type  PageType
}

// PersonalityAttribute is a single public trait of the portfolio owner.
type PersonalityAttribute struct {
	ID          int64
	Category    string
	Subcategory string
	Value       string
}

// Link is an evidence link returned to clients.
type Link struct {
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
}

// Validate re-checks the closed enumerations and slug format of a project row.
func (p Project) Validate() error {
	if !ValidSlug(p.Slug) {
		return fmt.Errorf("project %d: invalid slug %q", p.ID, p.Slug)
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("project %s: invalid status %q", p.Slug, p.Status)
	}
	return nil
}

// Validate re-checks the confidence enumeration of a skill row.
func (s Skill) Validate() error {
	if !s.Confidence.IsValid() {
		return fmt.Errorf("skill %s: invalid confidence %q", s.Name, s.Confidence)
	}
	return nil
}
