package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name           string
		message        string
		gatePassed     bool
		wantCategory   Category
		wantReason     Reason
		wantConfidence float64
	}{
		{
			name:           "hard system signal",
			message:        "Getting 500 error on every page",
			gatePassed:     false,
			wantCategory:   CategorySystemFailure,
			wantReason:     ReasonSystemSignal,
			wantConfidence: 0.7,
		},
		{
			name:           "hard signal wins over bug terms",
			message:        "timeout error, everything is broken",
			gatePassed:     false,
			wantCategory:   CategorySystemFailure,
			wantReason:     ReasonSystemSignal,
			wantConfidence: 0.7,
		},
		{
			name:           "hard signal unaffected by gate pass",
			message:        "connection refused when saving",
			gatePassed:     true,
			wantCategory:   CategorySystemFailure,
			wantReason:     ReasonSystemSignal,
			wantConfidence: 0.7,
		},
		{
			name:           "feature request",
			message:        "please add LinkedIn import",
			gatePassed:     false,
			wantCategory:   CategoryFeatureRequest,
			wantReason:     ReasonFeatureSignal,
			wantConfidence: 0.7,
		},
		{
			name:           "feature beats bug terms",
			message:        "feature request: the export is broken anyway",
			gatePassed:     false,
			wantCategory:   CategoryFeatureRequest,
			wantReason:     ReasonFeatureSignal,
			wantConfidence: 0.7,
		},
		{
			name:           "bug report",
			message:        "the export button doesn't work",
			gatePassed:     false,
			wantCategory:   CategoryValidBug,
			wantReason:     ReasonBugSignal,
			wantConfidence: 0.7,
		},
		{
			name:           "soft system signal with gate miss",
			message:        "the page is stuck on a spinner",
			gatePassed:     false,
			wantCategory:   CategorySystemFailure,
			wantReason:     ReasonSystemSignal,
			wantConfidence: 0.6,
		},
		{
			name:           "soft system signal with gate pass falls through",
			message:        "the page is stuck on a spinner",
			gatePassed:     true,
			wantCategory:   CategoryUserError,
			wantReason:     ReasonNoKBMatch,
			wantConfidence: 0.5,
		},
		{
			name:           "no signal defaults to user error",
			message:        "how do I change my photo",
			gatePassed:     false,
			wantCategory:   CategoryUserError,
			wantReason:     ReasonNoKBMatch,
			wantConfidence: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.message, tt.gatePassed)
			assert.Equal(t, tt.wantCategory, got.Category)
			assert.Equal(t, ActionCreateTicket, got.Action)
			assert.Equal(t, tt.wantReason, got.Reason)
			assert.InDelta(t, tt.wantConfidence, got.Confidence, 1e-9)
			assert.False(t, got.Forced)
		})
	}
}

func TestShouldSkipAnswer(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		forced   bool
		expected bool
	}{
		{"forced always skips", "how do I change my photo", true, true},
		{"hard system signal skips", "getting a 503 on login", false, true},
		{"bug signal skips", "export is broken", false, true},
		{"feature signal skips", "please add dark mode", false, true},
		{"soft system signal does not skip", "page is stuck loading", false, false},
		{"plain question does not skip", "upload failed", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShouldSkipAnswer(tt.message, tt.forced))
		})
	}
}
