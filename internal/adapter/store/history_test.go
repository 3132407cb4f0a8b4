package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"wads/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "wads.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestHistoryAppendAndRecent(t *testing.T) {
	h := NewHistoryStore(newTestDB(t))
	ctx := context.Background()
	scope := domain.PrivateScope(1)

	first, err := h.Append(ctx, scope, domain.Message{Role: domain.RoleUser, Content: "hi"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if first.ID == 0 {
		t.Error("Append did not assign an id")
	}
	if first.CreatedAt.IsZero() {
		t.Error("Append did not assign a timestamp")
	}

	if _, err := h.Append(ctx, scope, domain.Message{Role: domain.RoleAssistant, Content: "hey"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := h.Recent(ctx, scope, 50)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent returned %d rows, want 2", len(got))
	}
	if got[0].Content != "hi" || got[1].Content != "hey" {
		t.Errorf("Recent order = [%q, %q], want oldest first", got[0].Content, got[1].Content)
	}
}

func TestHistoryRecentLimitKeepsNewest(t *testing.T) {
	h := NewHistoryStore(newTestDB(t))
	ctx := context.Background()
	scope := domain.PrivateScope(1)

	for _, content := range []string{"a", "b", "c", "d"} {
		if _, err := h.Append(ctx, scope, domain.Message{Role: domain.RoleUser, Content: content}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := h.Recent(ctx, scope, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent returned %d rows, want 2", len(got))
	}
	if got[0].Content != "c" || got[1].Content != "d" {
		t.Errorf("Recent = [%q, %q], want the newest two oldest-first", got[0].Content, got[1].Content)
	}
}

func TestHistoryRecentOrdersSubsecondTimestamps(t *testing.T) {
	h := NewHistoryStore(newTestDB(t))
	ctx := context.Background()
	scope := domain.PrivateScope(1)

	// A whole second followed by .1s and .15s offsets. RFC3339Nano renders
	// these as "…00Z", "…00.1Z", "…00.15Z", which sort byte-wise in exactly
	// the reverse of chronological order.
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	turns := []struct {
		at      time.Time
		content string
	}{
		{base, "first"},
		{base.Add(100 * time.Millisecond), "second"},
		{base.Add(150 * time.Millisecond), "third"},
	}
	for _, turn := range turns {
		at := turn.at
		h.now = func() time.Time { return at }
		if _, err := h.Append(ctx, scope, domain.Message{Role: domain.RoleUser, Content: turn.content}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := h.Recent(ctx, scope, 50)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent returned %d rows, want 3", len(got))
	}
	for i, want := range []string{"first", "second", "third"} {
		if got[i].Content != want {
			t.Errorf("Recent[%d] = %q, want %q", i, got[i].Content, want)
		}
	}
}

func TestHistoryScopeIsolation(t *testing.T) {
	h := NewHistoryStore(newTestDB(t))
	ctx := context.Background()

	if _, err := h.Append(ctx, domain.PrivateScope(1), domain.Message{Role: domain.RoleUser, Content: "private"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	group := domain.Scope{UserID: 1, GroupChatID: "g-1"}
	if _, err := h.Append(ctx, group, domain.Message{Role: domain.RoleUser, Content: "shared"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	private, err := h.Recent(ctx, domain.PrivateScope(1), 50)
	if err != nil {
		t.Fatalf("Recent private: %v", err)
	}
	if len(private) != 1 || private[0].Content != "private" {
		t.Errorf("private read leaked group rows: %+v", private)
	}

	shared, err := h.Recent(ctx, domain.GroupScope("g-1"), 50)
	if err != nil {
		t.Fatalf("Recent group: %v", err)
	}
	if len(shared) != 1 || shared[0].Content != "shared" {
		t.Errorf("group read leaked private rows: %+v", shared)
	}
}

func TestHistoryToolCallsRoundTrip(t *testing.T) {
	h := NewHistoryStore(newTestDB(t))
	ctx := context.Background()
	scope := domain.PrivateScope(7)

	calls := []domain.ToolCall{{ID: "tc1", Name: "search_movies", Arguments: []byte(`{"query":"dune"}`)}}
	if _, err := h.Append(ctx, scope, domain.Message{Role: domain.RoleAssistant, ToolCalls: calls}); err != nil {
		t.Fatalf("Append assistant: %v", err)
	}
	if _, err := h.Append(ctx, scope, domain.Message{Role: domain.RoleTool, Content: `{"results":[]}`, ToolCallID: "tc1"}); err != nil {
		t.Fatalf("Append tool: %v", err)
	}

	got, err := h.Recent(ctx, scope, 50)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent returned %d rows, want 2", len(got))
	}
	if len(got[0].ToolCalls) != 1 || got[0].ToolCalls[0].ID != "tc1" {
		t.Errorf("tool calls did not round-trip: %+v", got[0].ToolCalls)
	}
	if got[1].ToolCallID != "tc1" {
		t.Errorf("ToolCallID = %q, want tc1", got[1].ToolCallID)
	}
}

func TestHistoryClearRemovesPrivateOnly(t *testing.T) {
	h := NewHistoryStore(newTestDB(t))
	ctx := context.Background()

	if _, err := h.Append(ctx, domain.PrivateScope(1), domain.Message{Role: domain.RoleUser, Content: "private"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	group := domain.Scope{UserID: 1, GroupChatID: "g-1"}
	if _, err := h.Append(ctx, group, domain.Message{Role: domain.RoleUser, Content: "shared"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := h.Clear(ctx, 1); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	private, _ := h.Recent(ctx, domain.PrivateScope(1), 50)
	if len(private) != 0 {
		t.Errorf("private history survived Clear: %+v", private)
	}
	shared, _ := h.Recent(ctx, domain.GroupScope("g-1"), 50)
	if len(shared) != 1 {
		t.Errorf("Clear deleted shared group rows: %+v", shared)
	}
}
