package conversations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ergokit/ergokit/llm"
	"github.com/ergokit/ergokit/migrations"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory database and runs migrations.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := migrations.RunMigrations(db, filepath.Join("..", "migrations"), zerolog.Nop()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func TestStore_AppendAndLoadRoundtrip(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	history := []llm.Message{
		llm.NewTextMessage(llm.RoleUser, "what is in the fridge?"),
		{
			Role: llm.RoleAssistant,
			Content: []llm.ContentBlock{
				{Type: llm.ContentBlockTypeToolUse, ToolUse: &llm.ToolUseBlock{
					ID: "call_1", Name: "list_items", Arguments: `{"location":"fridge"}`,
				}},
			},
		},
		llm.NewToolResultMessage([]llm.ToolResultBlock{
			{ID: "call_1", Content: `["milk","eggs"]`},
		}),
		llm.NewTextMessage(llm.RoleAssistant, "milk and eggs"),
	}

	if err := store.AppendMessages(ctx, "session-1", history...); err != nil {
		t.Fatalf("append: %v", err)
	}

	loaded, err := store.LoadMessages(ctx, "session-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != len(history) {
		t.Fatalf("loaded %d messages, want %d", len(loaded), len(history))
	}
	if loaded[1].Content[0].ToolUse == nil || loaded[1].Content[0].ToolUse.ID != "call_1" {
		t.Errorf("tool use block lost: %+v", loaded[1].Content)
	}
	if loaded[2].Content[0].ToolResult == nil || loaded[2].Content[0].ToolResult.Content != `["milk","eggs"]` {
		t.Errorf("tool result block lost: %+v", loaded[2].Content)
	}
	if loaded[3].Content[0].Text != "milk and eggs" {
		t.Errorf("final text = %q", loaded[3].Content[0].Text)
	}
}

func TestStore_LoadMissingSessionIsEmpty(t *testing.T) {
	store := NewStore(setupTestDB(t))

	msgs, err := store.LoadMessages(context.Background(), "no-such-session")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages, want 0", len(msgs))
	}
}

func TestStore_SessionsAndDelete(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	if err := store.AppendMessages(ctx, "a", llm.NewTextMessage(llm.RoleUser, "hi")); err != nil {
		t.Fatalf("append a: %v", err)
	}
	if err := store.AppendMessages(ctx, "b",
		llm.NewTextMessage(llm.RoleUser, "hi"),
		llm.NewTextMessage(llm.RoleAssistant, "hello")); err != nil {
		t.Fatalf("append b: %v", err)
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
	counts := map[string]int{}
	for _, s := range sessions {
		counts[s.SessionID] = s.MessageCount
	}
	if counts["a"] != 1 || counts["b"] != 2 {
		t.Errorf("counts = %v", counts)
	}

	if err := store.DeleteSession(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	sessions, err = store.Sessions(ctx)
	if err != nil {
		t.Fatalf("sessions after delete: %v", err)
	}
	if len(sessions) != 1 || sessions[0].SessionID != "b" {
		t.Errorf("sessions after delete = %+v", sessions)
	}
}

func TestStore_SequenceContinuesAcrossAppends(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	if err := store.AppendMessages(ctx, "s", llm.NewTextMessage(llm.RoleUser, "one")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.AppendMessages(ctx, "s", llm.NewTextMessage(llm.RoleAssistant, "two")); err != nil {
		t.Fatalf("append: %v", err)
	}

	msgs, err := store.LoadMessages(ctx, "s")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content[0].Text != "one" || msgs[1].Content[0].Text != "two" {
		t.Errorf("order broken: %+v", msgs)
	}
}
