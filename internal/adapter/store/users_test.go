package store

import (
	"context"
	"errors"
	"testing"

	"wads/internal/domain"
)

func TestUserCreateAndLookups(t *testing.T) {
	u := NewUserStore(newTestDB(t))
	ctx := context.Background()

	created, err := u.Create(ctx, domain.User{
		DisplayName:    "Alice",
		PhoneNumber:    "+15550001111",
		TelegramChatID: "tg-100",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == 0 {
		t.Error("Create did not assign an id")
	}
	if created.Status != domain.UserPending {
		t.Errorf("new user status = %q, want pending", created.Status)
	}

	byPhone, err := u.GetByPhone(ctx, "+15550001111")
	if err != nil {
		t.Fatalf("GetByPhone: %v", err)
	}
	if byPhone.ID != created.ID {
		t.Errorf("GetByPhone id = %d, want %d", byPhone.ID, created.ID)
	}

	byTelegram, err := u.GetByTelegram(ctx, "tg-100")
	if err != nil {
		t.Fatalf("GetByTelegram: %v", err)
	}
	if byTelegram.DisplayName != "Alice" {
		t.Errorf("GetByTelegram name = %q, want Alice", byTelegram.DisplayName)
	}
}

func TestUserGetMissing(t *testing.T) {
	u := NewUserStore(newTestDB(t))

	_, err := u.GetByID(context.Background(), 99)
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("GetByID missing returned %v, want ErrUserNotFound", err)
	}
}

func TestUserSetStatus(t *testing.T) {
	u := NewUserStore(newTestDB(t))
	ctx := context.Background()

	created, err := u.Create(ctx, domain.User{DisplayName: "Bob", PhoneNumber: "+15550002222"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := u.SetStatus(ctx, created.ID, domain.UserActive); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	got, err := u.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.UserActive {
		t.Errorf("status = %q, want active", got.Status)
	}

	if err := u.SetStatus(ctx, 99, domain.UserBlocked); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("SetStatus missing returned %v, want ErrUserNotFound", err)
	}
}

func TestUserListPendingAndFindByName(t *testing.T) {
	u := NewUserStore(newTestDB(t))
	ctx := context.Background()

	alice, err := u.Create(ctx, domain.User{DisplayName: "Alice", PhoneNumber: "+15550001111"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	bob, err := u.Create(ctx, domain.User{DisplayName: "Bobby", PhoneNumber: "+15550002222"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := u.SetStatus(ctx, alice.ID, domain.UserActive); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	pending, err := u.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != bob.ID {
		t.Errorf("ListPending = %+v, want only Bobby", pending)
	}

	found, err := u.FindByName(ctx, "bob")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if len(found) != 1 || found[0].ID != bob.ID {
		t.Errorf("FindByName(bob) = %+v, want Bobby", found)
	}
}
