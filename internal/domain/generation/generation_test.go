package generation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	base := errors.New("boom")

	transient := fmt.Errorf("call: %w", NewTransientError(base))
	assert.True(t, IsTransient(transient))
	assert.False(t, IsFatal(transient))
	assert.ErrorIs(t, transient, base)

	fatal := NewFatalError(base)
	assert.True(t, IsFatal(fatal))
	assert.False(t, IsTransient(fatal))
	assert.Equal(t, "boom", fatal.Error())

	assert.False(t, IsTransient(base))
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"answer":"hi"}`, `{"answer":"hi"}`},
		{"fenced", "Here you go:\n```json\n{\"answer\":\"hi\"}\n```\n", `{"answer":"hi"}`},
		{"fence without lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding prose", `Sure! {"answer":"x","missing_info":[]} hope that helps`, `{"answer":"x","missing_info":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSON_Malformed(t *testing.T) {
	for _, in := range []string{"", "no json here", "{not json}", "} {"} {
		_, err := ExtractJSON(in)
		assert.ErrorIs(t, err, ErrMalformedOutput, in)
	}
}

func TestParseOutput(t *testing.T) {
	out, err := ParseOutput("```json\n{\"answer\":\"Yes.\",\"skills_confirmed\":[\"Power BI\"],\"missing_info\":[\"Rust\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Yes.", out.Answer)
	assert.Equal(t, []string{"Power BI"}, out.SkillsConfirmed)
	assert.Equal(t, []string{"Rust"}, out.MissingInfo)

	_, err = ParseOutput(`{"answer":"  "}`)
	assert.ErrorIs(t, err, ErrMalformedOutput)

	_, err = ParseOutput(`{"answer": 3}`)
	assert.ErrorIs(t, err, ErrMalformedOutput)
}
