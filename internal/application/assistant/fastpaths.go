package assistant

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rowens2025/powervisualize/internal/application/retrieval"
	"github.com/rowens2025/powervisualize/internal/domain/evidence"
	"github.com/rowens2025/powervisualize/internal/domain/intent"
)

// maxTraits caps the personality rows quoted in one answer.
const maxTraits = 6

var workCategories = []string{"work", "work_style", "work style"}

// fastPath answers deterministic intents without retrieval or the generator.
func (s *Service) fastPath(ctx context.Context, req Request, cls intent.Classification) *Response {
	switch cls.Intent {
	case intent.Acknowledgement:
		return NewResponse(s.acknowledgementMessage())
	case intent.SelfIdentification:
		return s.greet(cls.Contact)
	case intent.Personal:
		return NewResponse(s.personalRefusalMessage())
	case intent.Contact:
		resp := NewResponse(fmt.Sprintf("The best way to reach %s is the contact page.", s.cfg.PersonName))
		resp.EvidenceLinks = append(resp.EvidenceLinks, evidence.Link{Title: "Contact", URL: s.cfg.ContactURL})
		return resp
	case intent.Resume:
		resp := NewResponse(fmt.Sprintf("%s's resume is available here.", s.cfg.PersonName))
		resp.EvidenceLinks = append(resp.EvidenceLinks, evidence.Link{Title: "Resume", URL: s.cfg.ResumeURL})
		return resp
	case intent.WorkStyle:
		return s.traitsAnswer(ctx, true)
	case intent.Personality:
		return s.traitsAnswer(ctx, false)
	case intent.PageContextQuery:
		return s.pageAnswer(ctx, req.Page)
	}
	return NewResponse(s.acknowledgementMessage())
}

func (s *Service) greet(kc *intent.KnownContact) *Response {
	if kc == nil {
		return NewResponse(s.acknowledgementMessage())
	}
	if kc.Greeting != "" {
		return NewResponse(kc.Greeting)
	}
	return NewResponse(s.greetingMessage(kc.Name))
}

// traitsAnswer templates public personality rows. workOnly restricts the
// rows to the work category.
func (s *Service) traitsAnswer(ctx context.Context, workOnly bool) *Response {
	attrs, err := s.evidence.PublicPersonality(ctx)
	if err != nil {
		s.log(ctx).Warn("Failed to load personality attributes", zap.Error(err))
		return NewResponse(s.cannotConfirmMessage(""))
	}

	values := make([]string, 0, maxTraits)
	for _, a := range attrs {
		if workOnly && !containsFold(workCategories, a.Category) {
			continue
		}
		v := strings.TrimSpace(a.Value)
		if v == "" || containsFold(values, v) {
			continue
		}
		if a.Subcategory != "" {
			v = a.Subcategory + ": " + v
		}
		values = append(values, v)
		if len(values) == maxTraits {
			break
		}
	}

	if len(values) == 0 {
		resp := NewResponse(fmt.Sprintf("%s hasn't published anything about that yet. %s", s.cfg.PersonName, s.contactLine()))
		resp.MissingInfo = append(resp.MissingInfo, "No public personality details")
		return resp
	}

	lead := "Here is how %s describes themselves: %s."
	if workOnly {
		lead = "Here is how %s likes to work: %s."
	}
	resp := NewResponse(fmt.Sprintf(lead, s.cfg.PersonName, strings.Join(values, "; ")))
	resp.Meta.SourcesUsed = []string{retrieval.SourcePersonality}
	return resp
}

// pageAnswer describes the visitor's current page. Project pages are
// described from the project's profile.
func (s *Service) pageAnswer(ctx context.Context, page *intent.PageContext) *Response {
	if page == nil || (page.Title == "" && page.PageSlug == "" && page.Path == "") {
		return NewResponse(fmt.Sprintf("I can't tell which page you're on. Ask me about %s's projects or dashboards instead.",
			s.cfg.PersonName))
	}

	if evidence.PageType(page.PageType) == evidence.PageProject && page.PageSlug != "" {
		profiles, err := s.evidence.ProjectProfiles(ctx, []string{page.PageSlug})
		if err != nil {
			s.log(ctx).Warn("Failed to load page project profile", zap.String("slug", page.PageSlug), zap.Error(err))
		} else if len(profiles) > 0 {
			return s.describeProject(profiles[0])
		}
	}

	title := page.Title
	if title == "" {
		title = page.Path
	}
	kind := page.PageType
	if kind == "" {
		kind = "site"
	}
	resp := NewResponse(fmt.Sprintf("You're on the %q %s page of %s's portfolio. Ask me about anything you see here.",
		title, kind, s.cfg.PersonName))
	if page.Path != "" {
		resp.EvidenceLinks = append(resp.EvidenceLinks, evidence.Link{Title: title, URL: page.Path})
	}
	return resp
}

func (s *Service) describeProject(p evidence.ProjectProfile) *Response {
	var b strings.Builder
	fmt.Fprintf(&b, "You're looking at %s.", p.Project.Name)
	if p.Project.Summary != "" {
		fmt.Fprintf(&b, " %s", strings.TrimSpace(p.Project.Summary))
	}

	skills := make([]string, 0, len(p.Skills))
	for _, sk := range p.Skills {
		skills = append(skills, sk.Name)
	}
	if len(skills) > 0 {
		fmt.Fprintf(&b, " It uses %s.", strings.Join(skills, ", "))
	}

	resp := NewResponse(b.String())
	resp.SkillsConfirmed = skills
	if l, ok := p.PrimaryLink(); ok {
		resp.EvidenceLinks = append(resp.EvidenceLinks, l)
	}
	resp.Meta.SourcesUsed = []string{retrieval.SourceProfiles}
	resp.Meta.MatchedProjectSlugs = []string{p.Project.Slug}
	return resp
}
