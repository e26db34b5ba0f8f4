package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "collapses whitespace and trims",
			input:    "  upload   failed \t again ",
			expected: "upload failed again",
		},
		{
			name:     "strips follow-up prefix",
			input:    "Follow-up: still broken",
			expected: "still broken",
		},
		{
			name:     "strips followup prefix without hyphen",
			input:    "followup: still broken",
			expected: "still broken",
		},
		{
			name:     "strips stacked follow-up prefixes",
			input:    "follow up: follow-up: nested",
			expected: "nested",
		},
		{
			name:     "empty input yields empty string",
			input:    "   ",
			expected: "",
		},
		{
			name:     "plain message unchanged",
			input:    "upload failed",
			expected: "upload failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"  Follow-up:  my   uploads keep failing ",
		"how do I reset my password",
		"",
		"follow up: follow-up: nested",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "normalize must be idempotent for %q", in)
	}
}

func TestStripFluff(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "strips how do I",
			input:    "how do I reset my password",
			expected: "reset my password",
		},
		{
			name:     "strips please",
			input:    "please fix my profile photo",
			expected: "fix my profile photo",
		},
		{
			name:     "strips stacked lead-ins",
			input:    "can you please help with billing",
			expected: "billing",
		},
		{
			name:     "keeps original when result too short",
			input:    "can I go",
			expected: "can I go",
		},
		{
			name:     "no lead-in is a no-op",
			input:    "upload failed",
			expected: "upload failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripFluff(tt.input))
		})
	}
}
