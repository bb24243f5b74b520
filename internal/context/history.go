package context

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValidateHistory checks that caller-supplied history holds only user and
// assistant turns and carries no images.
func ValidateHistory(history []Turn) error {
	for i, t := range history {
		switch t.Role {
		case RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("history[%d]: unsupported role %q", i, t.Role)
		}
		if t.HasImage() {
			return fmt.Errorf("history[%d]: images are not allowed in history", i)
		}
	}
	return nil
}

// AppendExchange returns a new history: prior turns, the user's text, and the
// assistant reply. The input slice is never modified.
func AppendExchange(history []Turn, userText, reply string) []Turn {
	out := make([]Turn, 0, len(history)+2)
	out = append(out, CloneTurns(history)...)
	out = append(out,
		Turn{Role: RoleUser, Content: Text(userText)},
		Turn{Role: RoleAssistant, Content: Text(reply)},
	)
	return out
}

// CloneTurns copies a turn slice, including any content parts.
func CloneTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[i] = t.clone()
	}
	return out
}

// DecodeHistory parses a JSON array of turns. Blank input is an empty history.
func DecodeHistory(raw string) ([]Turn, error) {
	if strings.TrimSpace(raw) == "" {
		return []Turn{}, nil
	}
	var turns []Turn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	if turns == nil {
		turns = []Turn{}
	}
	return turns, nil
}
