package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DefaultWorkspace names the key scope for requests without a target.
const DefaultWorkspace = "default"

// BuildAnswerKey builds an AnswerKey from the request text and target
// workspace. The text is hashed as-is (only surrounding whitespace is
// trimmed) so distinct questions never share an entry; the target scopes the
// key so the same question in two workspaces is cached twice.
func BuildAnswerKey(text, target string) AnswerKey {
	workspace := strings.TrimSpace(target)
	if workspace == "" {
		workspace = DefaultWorkspace
	}

	normalized := "workspace:" + workspace + "|text:" + strings.TrimSpace(text)

	sum := sha256.Sum256([]byte(normalized))

	return AnswerKey{
		Workspace: workspace,
		Hash:      hex.EncodeToString(sum[:]),
	}
}
