package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/groupledger/internal/errs"
	"github.com/tinoosan/groupledger/internal/ledger"
)

func seedGroup(t *testing.T, s *Store, users ...uuid.UUID) ledger.Group {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	g := ledger.Group{ID: uuid.New(), Name: "Flat", CreatedBy: users[0], CreatedAt: now}
	if _, err := s.CreateGroup(ctx, g, ledger.Member{GroupID: g.ID, UserID: users[0], Role: ledger.RoleOwner, JoinedAt: now}); err != nil {
		t.Fatalf("create group: %v", err)
	}
	for i, u := range users[1:] {
		m := ledger.Member{GroupID: g.ID, UserID: u, Role: ledger.RoleMember, JoinedAt: now.Add(time.Duration(i+1) * time.Second)}
		if _, err := s.AddMember(ctx, m); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}
	return g
}

func TestAddMember_DuplicateAndUnknownGroup(t *testing.T) {
	s := New()
	a, b := uuid.New(), uuid.New()
	g := seedGroup(t, s, a, b)
	ctx := context.Background()

	_, err := s.AddMember(ctx, ledger.Member{GroupID: g.ID, UserID: b, Role: ledger.RoleMember})
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	_, err = s.AddMember(ctx, ledger.Member{GroupID: uuid.New(), UserID: b})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	ms, _ := s.MembersByGroup(ctx, g.ID)
	if len(ms) != 2 {
		t.Fatalf("expected 2 members, got %d", len(ms))
	}
}

func TestCreateExpense_IdempotencyKeyIsAtomic(t *testing.T) {
	s := New()
	a, b := uuid.New(), uuid.New()
	g := seedGroup(t, s, a, b)
	ms, _ := s.MembersByGroup(context.Background(), g.ID)
	amt, _ := ledger.AmountFromMinor("INR", 1000)

	e1, err := ledger.PrepareExpense(ledger.ExpenseDraft{GroupID: g.ID, PayerID: a, Amount: amt}, ms)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	key := &ledger.IdempotencyKey{Key: "k1", Fingerprint: "fp"}
	if _, err := s.CreateExpense(context.Background(), e1, key); err != nil {
		t.Fatalf("create: %v", err)
	}

	e2, _ := ledger.PrepareExpense(ledger.ExpenseDraft{GroupID: g.ID, PayerID: b, Amount: amt}, ms)
	if _, err := s.CreateExpense(context.Background(), e2, key); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected conflict for reused key, got %v", err)
	}
	list, _ := s.ExpensesByGroup(context.Background(), g.ID)
	if len(list) != 1 {
		t.Fatalf("rejected write must not persist, got %d expenses", len(list))
	}

	got, rec, ok, err := s.ExpenseByIdempotencyKey(context.Background(), g.ID, "k1")
	if err != nil || !ok || got.ID != e1.ID || rec.Fingerprint != "fp" {
		t.Fatalf("unexpected key resolution: %v %v %+v", err, ok, rec)
	}
	if _, _, ok, _ := s.ExpenseByIdempotencyKey(context.Background(), uuid.New(), "k1"); ok {
		t.Fatalf("keys must be scoped to the group")
	}
}

func TestExpenseByID_ReturnsCopies(t *testing.T) {
	s := New()
	a, b := uuid.New(), uuid.New()
	g := seedGroup(t, s, a, b)
	ms, _ := s.MembersByGroup(context.Background(), g.ID)
	amt, _ := ledger.AmountFromMinor("INR", 1000)
	e, _ := ledger.PrepareExpense(ledger.ExpenseDraft{GroupID: g.ID, PayerID: a, Amount: amt}, ms)
	if _, err := s.CreateExpense(context.Background(), e, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.ExpenseByID(context.Background(), g.ID, e.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Shares[0].MemberID = uuid.Nil
	again, _ := s.ExpenseByID(context.Background(), g.ID, e.ID)
	if again.Shares[0].MemberID == uuid.Nil {
		t.Fatalf("store leaked internal share slice")
	}
	if _, err := s.ExpenseByID(context.Background(), uuid.New(), e.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found for other group, got %v", err)
	}
}

func TestConcurrentJoins(t *testing.T) {
	s := New()
	owner := uuid.New()
	g := seedGroup(t, s, owner)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.AddMember(context.Background(), ledger.Member{GroupID: g.ID, UserID: uuid.New(), Role: ledger.RoleMember})
		}()
	}
	wg.Wait()
	ms, _ := s.MembersByGroup(context.Background(), g.ID)
	if len(ms) != 51 {
		t.Fatalf("expected 51 members, got %d", len(ms))
	}
	gs, _ := s.GroupsForUser(context.Background(), owner)
	if len(gs) != 1 || gs[0].ID != g.ID {
		t.Fatalf("unexpected groups for owner: %+v", gs)
	}
}
