package cache

import "testing"

func TestBuildAnswerKey(t *testing.T) {
	a := BuildAnswerKey("what is X?", "")
	b := BuildAnswerKey("  what is X?  ", "default")
	if a.String() != b.String() {
		t.Fatalf("expected default workspace and trimmed text to share a key: %s vs %s", a, b)
	}
	if a.Workspace != DefaultWorkspace {
		t.Fatalf("expected workspace %q, got %q", DefaultWorkspace, a.Workspace)
	}

	other := BuildAnswerKey("what is X?", "room-1")
	if other.String() == a.String() {
		t.Fatalf("expected target to scope the key")
	}

	parts, ok := parseAnswerKey(other.String())
	if !ok {
		t.Fatalf("expected key %q to parse", other)
	}
	if parts.workspace != "room-1" || parts.hash != other.Hash {
		t.Fatalf("unexpected parts: %#v", parts)
	}
}
