package query

import "strings"

const (
	// RoleUser and RoleAssistant are the only recognized conversation roles.
	RoleUser      = "user"
	RoleAssistant = "assistant"

	shortMessageLen = 30
	maxContextTurns = 3
)

// Turn is a single message in a conversation history.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// FromHistory derives a supplementary search query from prior user turns.
// Assistant turns are never used: feeding the bot's own text back into
// retrieval makes results drift toward earlier answers. Returns "" when no
// user turn survives normalization.
func FromHistory(history []Turn, current string) string {
	var userTurns []string
	for _, t := range history {
		if t.Role != RoleUser {
			continue
		}
		if n := Normalize(t.Text); n != "" {
			userTurns = append(userTurns, n)
		}
	}
	if len(userTurns) == 0 {
		return ""
	}
	if len(userTurns) > maxContextTurns {
		userTurns = userTurns[len(userTurns)-maxContextTurns:]
	}

	current = Normalize(current)
	if len(current) < shortMessageLen {
		// A short follow-up on its own is a weak retrieval signal; anchor it
		// to the most recent user turn.
		last := userTurns[len(userTurns)-1]
		return strings.TrimSpace(current + " " + last)
	}
	return strings.Join(userTurns, " ")
}
