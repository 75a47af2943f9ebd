package collection

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain name passes through", "reports", "reports"},
		{"spaces and punctuation replaced", "Q3 Report (final)", "Q3_Report__final_"},
		{"unicode replaced", "отчёт", "c______"},
		{"leading digit gets prefix", "2024_data", "c_2024_data"},
		{"leading underscore gets prefix", "_hidden", "c__hidden"},
		{"empty gets prefix", "", "c_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.input))
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"reports",
		"Q3 Report (final)",
		"2024_data",
		strings.Repeat("x", 150),
		strings.Repeat("name with spaces ", 20),
	}

	for _, in := range inputs {
		once := Sanitize(in)
		twice := Sanitize(once)
		assert.Equal(t, once, twice, "sanitizing %q twice must be stable", in)
	}
}

func TestSanitize_LongNames(t *testing.T) {
	long := strings.Repeat("a", 150)

	got := Sanitize(long)
	assert.LessOrEqual(t, len(got), maxNameLength)
	assert.True(t, strings.HasPrefix(got, strings.Repeat("a", truncatedPrefixLength)))

	// Deterministic across calls.
	assert.Equal(t, got, Sanitize(long))

	// Distinct long names keep distinct backing names even when the
	// truncated prefixes collide.
	other := strings.Repeat("a", 149) + "b"
	assert.NotEqual(t, got, Sanitize(other))
}

func TestAdminBackingName(t *testing.T) {
	assert.Equal(t, "admin_policies", AdminBackingName("policies"))
	assert.True(t, HasAdminPrefix(AdminBackingName("anything at all")))
	assert.Equal(t, "policies", StripAdminPrefix("admin_policies"))
	assert.Equal(t, "policies", StripAdminPrefix("policies"))
}

func TestBackingName(t *testing.T) {
	assert.Equal(t, "reports", BackingName("reports", false))
	assert.Equal(t, "admin_reports", BackingName("reports", true))
}

func TestConversationCollectionName(t *testing.T) {
	got := ConversationCollectionName("5f1c6f0a-8f7e-4f3b-9a2d-1c0e9b8a7d6e")
	assert.Equal(t, "conversation_5f1c6f0a_8f7e_4f3b_9a2d_1c0e9b8a7d6e", got)
}
