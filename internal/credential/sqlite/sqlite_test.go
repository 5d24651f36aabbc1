package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/lumichat/lumichat-relay/internal/chat"
	"github.com/lumichat/lumichat-relay/internal/credential"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "credentials.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndList(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, credential.Credential{
		Provider: "openai",
		APIKey:   "sk-1",
		Endpoint: "https://api.openai.com/v1",
		Model:    "gpt-4o",
		Modes:    []chat.Mode{chat.ModeCode, chat.ModeTalk},
		Active:   true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected assigned id")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps set")
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 credential, got %d", len(list))
	}
	got := list[0]
	if got.APIKey != "sk-1" || got.Provider != "openai" {
		t.Fatalf("unexpected credential %+v", got)
	}
	if len(got.Modes) != 2 || got.Modes[0] != chat.ModeCode || got.Modes[1] != chat.ModeTalk {
		t.Fatalf("modes did not round-trip: %#v", got.Modes)
	}
	if !got.Active {
		t.Fatalf("expected active credential")
	}
}

func TestOldestActiveForMode(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, credential.Credential{
		Provider: "openai", APIKey: "sk-old", Modes: []chat.Mode{chat.ModeCode}, Active: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create(ctx, credential.Credential{
		Provider: "gemini", APIKey: "sk-new", Modes: []chat.Mode{chat.ModeCode}, Active: true,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create(ctx, credential.Credential{
		Provider: "grok", APIKey: "sk-other", Modes: []chat.Mode{chat.ModeTalk}, Active: true,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.OldestActiveForMode(ctx, chat.ModeCode)
	if err != nil {
		t.Fatalf("OldestActiveForMode: %v", err)
	}
	if got == nil || got.ID != first.ID {
		t.Fatalf("expected oldest eligible credential, got %+v", got)
	}

	none, err := s.OldestActiveForMode(ctx, chat.ModePentest)
	if err != nil {
		t.Fatalf("OldestActiveForMode: %v", err)
	}
	if none != nil {
		t.Fatalf("expected nil for unmatched mode, got %+v", none)
	}
}

func TestOldestActiveForModeSkipsInactive(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	inactive, err := s.Create(ctx, credential.Credential{
		Provider: "openai", APIKey: "sk-off", Modes: []chat.Mode{chat.ModeCode}, Active: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	active, err := s.Create(ctx, credential.Credential{
		Provider: "openai", APIKey: "sk-on", Modes: []chat.Mode{chat.ModeCode}, Active: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.SetActive(ctx, inactive.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	got, err := s.OldestActiveForMode(ctx, chat.ModeCode)
	if err != nil {
		t.Fatalf("OldestActiveForMode: %v", err)
	}
	if got == nil || got.ID != active.ID {
		t.Fatalf("expected the remaining active credential, got %+v", got)
	}
}

func TestSetActiveMissing(t *testing.T) {
	s := newStore(t)
	if err := s.SetActive(context.Background(), 999, false); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestDeleteAndCount(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, credential.Credential{
		Provider: "openai", APIKey: "sk-del", Modes: []chat.Mode{chat.ModeCode}, Active: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n, err := s.Count(ctx); err != nil || n != 1 {
		t.Fatalf("Count = %d, %v", n, err)
	}
	if err := s.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n, err := s.Count(ctx); err != nil || n != 0 {
		t.Fatalf("Count after delete = %d, %v", n, err)
	}
	if err := s.Delete(ctx, created.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows on missing delete, got %v", err)
	}
}
