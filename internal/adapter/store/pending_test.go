package store

import (
	"context"
	"testing"
	"time"

	"wads/internal/domain"
)

func TestPendingSaveGetClear(t *testing.T) {
	p := NewPendingActionStore(newTestDB(t))
	ctx := context.Background()

	action := domain.PendingAction{
		UserID:     1,
		ToolName:   "remove_movie",
		Arguments:  `{"title":"Dune"}`,
		PromptText: "Remove Dune from the library?",
		ExpiresAt:  time.Now().Add(domain.PendingActionTTL),
	}
	if err := p.Save(ctx, action); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := p.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for a live action")
	}
	if got.ToolName != "remove_movie" || got.Arguments != `{"title":"Dune"}` {
		t.Errorf("Get = %+v, want saved action", got)
	}

	if err := p.Clear(ctx, 1); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, err = p.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get after Clear: %v", err)
	}
	if got != nil {
		t.Errorf("action survived Clear: %+v", got)
	}
}

func TestPendingSaveReplacesExisting(t *testing.T) {
	p := NewPendingActionStore(newTestDB(t))
	ctx := context.Background()

	for _, name := range []string{"remove_movie", "remove_series"} {
		err := p.Save(ctx, domain.PendingAction{
			UserID:    1,
			ToolName:  name,
			ExpiresAt: time.Now().Add(domain.PendingActionTTL),
		})
		if err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
	}

	got, err := p.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.ToolName != "remove_series" {
		t.Errorf("Get = %+v, want the replacing action", got)
	}
}

func TestPendingGetDeletesExpired(t *testing.T) {
	p := NewPendingActionStore(newTestDB(t))
	ctx := context.Background()

	start := time.Now()
	p.now = func() time.Time { return start }

	err := p.Save(ctx, domain.PendingAction{
		UserID:    1,
		ToolName:  "remove_movie",
		ExpiresAt: start.Add(domain.PendingActionTTL),
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	p.now = func() time.Time { return start.Add(domain.PendingActionTTL + time.Second) }
	got, err := p.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("expired action returned: %+v", got)
	}

	// The expired row is gone even if the clock rolls back.
	p.now = func() time.Time { return start }
	got, err = p.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get after expiry delete: %v", err)
	}
	if got != nil {
		t.Errorf("expired row was not deleted: %+v", got)
	}
}

func TestPendingClearExpiredKeepsSubsecondDeadline(t *testing.T) {
	p := NewPendingActionStore(newTestDB(t))
	ctx := context.Background()

	// A deadline half a second ahead of a whole-second clock. RFC3339Nano
	// renders the deadline "…00.5Z" and the clock "…00Z", so a byte-wise
	// string comparison would count the live action as expired.
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return base }

	err := p.Save(ctx, domain.PendingAction{
		UserID:    1,
		ToolName:  "remove_movie",
		ExpiresAt: base.Add(500 * time.Millisecond),
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := p.ClearExpired(ctx); err != nil {
		t.Fatalf("ClearExpired: %v", err)
	}
	got, err := p.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Error("sweep removed an action whose deadline had not passed")
	}
}

func TestPendingClearExpiredSweep(t *testing.T) {
	p := NewPendingActionStore(newTestDB(t))
	ctx := context.Background()

	start := time.Now()
	p.now = func() time.Time { return start }

	live := domain.PendingAction{UserID: 1, ToolName: "remove_movie", ExpiresAt: start.Add(time.Hour)}
	dead := domain.PendingAction{UserID: 2, ToolName: "remove_series", ExpiresAt: start.Add(time.Minute)}
	for _, a := range []domain.PendingAction{live, dead} {
		if err := p.Save(ctx, a); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	p.now = func() time.Time { return start.Add(10 * time.Minute) }
	if err := p.ClearExpired(ctx); err != nil {
		t.Fatalf("ClearExpired: %v", err)
	}

	got, err := p.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get live: %v", err)
	}
	if got == nil {
		t.Error("sweep removed a live action")
	}
	got, err = p.Get(ctx, 2)
	if err != nil {
		t.Fatalf("Get dead: %v", err)
	}
	if got != nil {
		t.Errorf("sweep left an expired action: %+v", got)
	}
}
