package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lumichat/lumichat-relay/internal/chat"
	"github.com/lumichat/lumichat-relay/internal/history"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndListConversations(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, chat.ModeTalk)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if conv.ID == "" {
		t.Fatalf("expected generated id")
	}
	if conv.Title != "" {
		t.Fatalf("new conversation must be untitled, got %q", conv.Title)
	}

	list, err := s.ListConversations(ctx)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(list) != 1 || list[0].ID != conv.ID || list[0].Mode != chat.ModeTalk {
		t.Fatalf("unexpected list %#v", list)
	}
}

func TestAppendMessageSetsTitleFromFirstUserTurn(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, chat.ModeCode)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	long := strings.Repeat("x", 60)
	if _, err := s.AppendMessage(ctx, conv.ID, history.StoredMessage{Role: chat.RoleUser, Content: long}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if _, err := s.AppendMessage(ctx, conv.ID, history.StoredMessage{Role: chat.RoleUser, Content: "druhá otázka"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	list, err := s.ListConversations(ctx)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	want := strings.Repeat("x", 50) + "..."
	if list[0].Title != want {
		t.Fatalf("title = %q, want %q", list[0].Title, want)
	}
}

func TestAppendMessageAssistantDoesNotTitle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, chat.ModeCode)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if _, err := s.AppendMessage(ctx, conv.ID, history.StoredMessage{Role: chat.RoleAssistant, Content: "ahoj"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	list, err := s.ListConversations(ctx)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if list[0].Title != "" {
		t.Fatalf("assistant turn must not title the conversation, got %q", list[0].Title)
	}
}

func TestListMessagesOrdered(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, chat.ModeImage)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if _, err := s.AppendMessage(ctx, conv.ID, history.StoredMessage{Role: chat.RoleUser, Content: "nakresli psa"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if _, err := s.AppendMessage(ctx, conv.ID, history.StoredMessage{
		Role: chat.RoleAssistant, Content: "Obrázok je hotový!", ImageURL: "https://img.example/pes.png",
	}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	msgs, err := s.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != chat.RoleUser || msgs[1].Role != chat.RoleAssistant {
		t.Fatalf("unexpected order %#v", msgs)
	}
	if msgs[1].ImageURL != "https://img.example/pes.png" {
		t.Fatalf("image url did not round-trip: %q", msgs[1].ImageURL)
	}
	if msgs[0].ImageURL != "" {
		t.Fatalf("expected empty image url, got %q", msgs[0].ImageURL)
	}
}

func TestAppendMessageMissingConversation(t *testing.T) {
	s := newStore(t)
	_, err := s.AppendMessage(context.Background(), "missing", history.StoredMessage{Role: chat.RoleUser, Content: "x"})
	if !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteConversation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, chat.ModeTalk)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if _, err := s.AppendMessage(ctx, conv.ID, history.StoredMessage{Role: chat.RoleUser, Content: "x"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := s.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if err := s.DeleteConversation(ctx, conv.ID); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	msgs, err := s.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("messages must be deleted with the conversation, got %d", len(msgs))
	}
}

func TestTitleFromShortContent(t *testing.T) {
	if got := history.TitleFrom("krátky titulok"); got != "krátky titulok" {
		t.Fatalf("short content must pass through, got %q", got)
	}
}
