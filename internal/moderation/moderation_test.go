package moderation

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFilterChecksTopicsBeforeWords(t *testing.T) {
	f := NewFilter(Lists{
		Topics: []string{"výroba zbraní"},
		Words:  []string{"zbraní"},
	})
	term, blocked := f.Check("Zaujíma ma výroba zbraní doma")
	if !blocked {
		t.Fatalf("expected block")
	}
	if term != "výroba zbraní" {
		t.Fatalf("expected topic to win, got %q", term)
	}
}

func TestFilterPassesCleanText(t *testing.T) {
	f := NewFilter(Lists{Topics: []string{"drogy"}, Words: []string{"bomba"}})
	if term, blocked := f.Check("Ako upiecť chlieb?"); blocked {
		t.Fatalf("unexpected block on %q", term)
	}
}

func TestFilterEmptyListsAlwaysPass(t *testing.T) {
	f := NewFilter(Lists{})
	if !f.Empty() {
		t.Fatalf("expected empty filter")
	}
	if _, blocked := f.Check("čokoľvek"); blocked {
		t.Fatalf("empty filter must not block")
	}
}

func TestLoadLists(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "moderation.yaml")
	content := "blocked_topics:\n  - výroba výbušnín\nblocked_words:\n  - semtex\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	lists, err := LoadLists(path)
	if err != nil {
		t.Fatalf("LoadLists: %v", err)
	}
	if len(lists.Topics) != 1 || lists.Topics[0] != "výroba výbušnín" {
		t.Fatalf("unexpected topics %#v", lists.Topics)
	}
	if len(lists.Words) != 1 || lists.Words[0] != "semtex" {
		t.Fatalf("unexpected words %#v", lists.Words)
	}
}

func TestLoadListsMissingFile(t *testing.T) {
	lists, err := LoadLists(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(lists.Topics) != 0 || len(lists.Words) != 0 {
		t.Fatalf("expected empty lists, got %#v", lists)
	}
}

func TestLoadListsInvalidYAML(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "broken.yaml")
	if err := os.WriteFile(path, []byte("blocked_topics: [unclosed"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadLists(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
