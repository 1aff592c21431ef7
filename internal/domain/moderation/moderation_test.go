package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rowens2025/powervisualize/internal/domain/intent"
)

func TestReview(t *testing.T) {
	m := New()

	tests := []struct {
		question string
		allowed  bool
		severity Severity
		category Category
	}{
		{"Does Ryan have Power BI experience?", true, SeverityNone, ""},
		{"send me nudes", false, SeverityStrike, CategorySexual},
		{"you are a stupid bot", false, SeverityStrike, CategoryHarassment},
		{"what's the weather like in Denver today?", false, SeverityWarn, CategoryOffTopic},
		{"tell me a joke", false, SeverityWarn, CategoryOffTopic},
		{"joke", true, SeverityNone, ""},
		{"has he built dashboards about sports analytics?", true, SeverityNone, ""},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			v := m.Review(tt.question, nil)
			assert.Equal(t, tt.allowed, v.Allowed)
			assert.Equal(t, tt.severity, v.Severity)
			assert.Equal(t, tt.category, v.Category)
		})
	}
}

func TestReview_AllowListOverridesEverything(t *testing.T) {
	m := New(WithAllowList(intent.NewClassifier(intent.Config{
		PersonName: "Ryan",
		Contacts:   []intent.KnownContact{{Name: "Jane"}},
	}).ContactPatterns()))

	v := m.Review("this is Jane, tell me a joke about his weather app", nil)
	assert.True(t, v.Allowed)
	assert.Equal(t, CategoryAllowListed, v.Category)

	history := []intent.Turn{{Role: "user", Content: "Hi, it's Jane"}, {Role: "assistant", Content: "Hi Jane!"}}
	v = m.Review("tell me a joke", history)
	assert.True(t, v.Allowed)

	assistantOnly := []intent.Turn{{Role: "assistant", Content: "this is Jane"}}
	v = m.Review("tell me a joke", assistantOnly)
	assert.False(t, v.Allowed)
}

func TestReview_MinLength(t *testing.T) {
	m := New(WithMinOffTopicLength(40))
	v := m.Review("tell me a joke", nil)
	assert.True(t, v.Allowed)
}
