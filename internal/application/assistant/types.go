package assistant

import (
	"time"

	"github.com/rowens2025/powervisualize/internal/domain/evidence"
	"github.com/rowens2025/powervisualize/internal/domain/intent"
)

// MaxQuestionRunes is the longest accepted question.
const MaxQuestionRunes = 800

// Request is one question from a visitor.
type Request struct {
	Question  string
	History   []intent.Turn
	Page      *intent.PageContext
	ClientID  string
	RequestID string
}

// Response is the answer payload. Slices are never nil so they encode as [].
type Response struct {
	Answer          string          `json:"answer"`
	SkillsConfirmed []string        `json:"skills_confirmed"`
	EvidenceLinks   []evidence.Link `json:"evidence_links"`
	MissingInfo     []string        `json:"missing_info"`
	Trace           []string        `json:"trace"`
	Meta            *Meta           `json:"meta,omitempty"`
}

// Meta describes how the answer was produced.
type Meta struct {
	Blocked             bool       `json:"blocked,omitempty"`
	LockedUntil         *time.Time `json:"locked_until,omitempty"`
	Strikes             int        `json:"strikes,omitempty"`
	FastPath            bool       `json:"fast_path,omitempty"`
	Intent              string     `json:"intent,omitempty"`
	SourcesUsed         []string   `json:"sources_used,omitempty"`
	MatchedSkillName    string     `json:"matched_skill_name,omitempty"`
	MatchedProjectSlugs []string   `json:"matched_project_slugs,omitempty"`
	Degraded            bool       `json:"degraded,omitempty"`
	Retryable           bool       `json:"retryable,omitempty"`
	RequestID           string     `json:"request_id,omitempty"`
	Quota               *Quota     `json:"-"`
}

// Quota is the client's allowance in the current rate window. The
// transport renders it as headers.
type Quota struct {
	Limit     int
	Remaining int
}

// NewResponse returns a response with answer and empty evidence.
func NewResponse(answer string) *Response {
	return &Response{
		Answer:          answer,
		SkillsConfirmed: []string{},
		EvidenceLinks:   []evidence.Link{},
		MissingInfo:     []string{},
		Trace:           []string{},
		Meta:            &Meta{},
	}
}

// Config holds persona settings and limits of the assembler.
type Config struct {
	PersonName       string
	ContactURL       string
	ResumeURL        string
	DashboardsURL    string
	MaxHistoryTurns  int
	MaxTurnRunes     int
	GeneratorTimeout time.Duration
	MaxTokens        int
	Temperature      float64
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		PersonName:       "Ryan",
		ContactURL:       "/contact",
		ResumeURL:        "/resume",
		DashboardsURL:    "/dashboards",
		MaxHistoryTurns:  6,
		MaxTurnRunes:     800,
		GeneratorTimeout: 15 * time.Second,
		MaxTokens:        700,
		Temperature:      0.2,
	}
}
