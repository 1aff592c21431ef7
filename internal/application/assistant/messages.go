package assistant

import (
	"fmt"
	"strings"
	"time"
)

func (s *Service) contactLine() string {
	return fmt.Sprintf("You can reach %s directly at %s.", s.cfg.PersonName, s.cfg.ContactURL)
}

func (s *Service) acknowledgementMessage() string {
	return fmt.Sprintf("Happy to help. Ask me anything about %s's projects, skills or dashboards.", s.cfg.PersonName)
}

func (s *Service) greetingMessage(name string) string {
	return fmt.Sprintf("Hi %s! Good to hear from you. Ask me anything about %s's work.", name, s.cfg.PersonName)
}

func (s *Service) personalRefusalMessage() string {
	return fmt.Sprintf("I only answer questions about %s's professional work, so I'll skip that one. "+
		"Try asking about projects, skills or dashboards. %s", s.cfg.PersonName, s.contactLine())
}

func (s *Service) offTopicMessage() string {
	return fmt.Sprintf("I'm here to talk about %s's work: projects, skills, dashboards and how %s works. "+
		"What would you like to know? %s", s.cfg.PersonName, s.cfg.PersonName, s.contactLine())
}

// strikeMessage escalates with the number of strikes recorded so far.
func (s *Service) strikeMessage(strikes int) string {
	switch {
	case strikes <= 1:
		return "That message isn't appropriate here. Please keep questions professional. " + s.contactLine()
	default:
		return "Final warning: one more message like that and this chat will be locked for a while. " + s.contactLine()
	}
}

func (s *Service) lockoutMessage(until time.Time) string {
	mins := int(until.Sub(s.now()).Round(time.Minute) / time.Minute)
	if mins < 1 {
		mins = 1
	}
	return fmt.Sprintf("This chat is temporarily locked. Please try again in about %d minute(s). %s",
		mins, s.contactLine())
}

func (s *Service) rateLimitMessage() string {
	return "You're sending questions faster than I can answer them. Please wait a moment and try again. " + s.contactLine()
}

func (s *Service) formattingTroubleMessage() string {
	return "I had trouble formatting that answer. Please try asking again. " + s.contactLine()
}

func (s *Service) timeoutMessage() string {
	return "That took longer than expected and I couldn't finish the answer. Please try again. " + s.contactLine()
}

func (s *Service) internalErrorMessage() string {
	return "Something went wrong on my side. " + s.contactLine()
}

func (s *Service) cannotConfirmMessage(skill string) string {
	if skill == "" {
		return fmt.Sprintf("I couldn't find published evidence in %s's portfolio that answers that. %s",
			s.cfg.PersonName, s.contactLine())
	}
	return fmt.Sprintf("I can't confirm %s from %s's published projects. %s",
		skill, s.cfg.PersonName, s.contactLine())
}

func (s *Service) dashboardIndexMessage(skill string, count int, summary string) string {
	msg := fmt.Sprintf("%s has published %d dashboards built with %s.", s.cfg.PersonName, count, skill)
	if summary != "" {
		msg += " " + summary
		if !strings.HasSuffix(summary, ".") {
			msg += "."
		}
	}
	if s.cfg.DashboardsURL != "" {
		msg += fmt.Sprintf(" You can browse them at %s.", s.cfg.DashboardsURL)
	}
	return msg
}
