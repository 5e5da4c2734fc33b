// Package memory provides an in-memory store used for development and tests.
// Every write validates first and then mutates under one lock, so a failed
// write leaves no partial state.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tinoosan/groupledger/internal/errs"
	"github.com/tinoosan/groupledger/internal/ledger"
)

type idemRecord struct {
	expenseID   uuid.UUID
	fingerprint string
}

// Store is an in-memory implementation of the service repos and writers.
// It is guarded by an RWMutex for concurrent reads/writes.
type Store struct {
	mu          sync.RWMutex
	groups      map[uuid.UUID]ledger.Group
	members     map[uuid.UUID][]ledger.Member
	expenses    map[uuid.UUID]*ledger.GroupExpense
	byGroup     map[uuid.UUID][]uuid.UUID
	idem        map[uuid.UUID]map[string]idemRecord
	settlements map[uuid.UUID][]ledger.Settlement
}

// New constructs an empty in-memory store.
func New() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// Reset drops all data.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = map[uuid.UUID]ledger.Group{}
	s.members = map[uuid.UUID][]ledger.Member{}
	s.expenses = map[uuid.UUID]*ledger.GroupExpense{}
	s.byGroup = map[uuid.UUID][]uuid.UUID{}
	s.idem = map[uuid.UUID]map[string]idemRecord{}
	s.settlements = map[uuid.UUID][]ledger.Settlement{}
}

// Ready always succeeds.
func (s *Store) Ready(context.Context) error { return nil }

// --- Groups ---

func (s *Store) CreateGroup(_ context.Context, g ledger.Group, owner ledger.Member) (ledger.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID]; ok {
		return ledger.Group{}, errs.ErrConflict
	}
	s.groups[g.ID] = g
	s.members[g.ID] = []ledger.Member{owner}
	return g, nil
}

func (s *Store) AddMember(_ context.Context, m ledger.Member) (ledger.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[m.GroupID]; !ok {
		return ledger.Member{}, errs.ErrNotFound
	}
	for _, existing := range s.members[m.GroupID] {
		if existing.UserID == m.UserID {
			return ledger.Member{}, errs.ErrConflict
		}
	}
	s.members[m.GroupID] = append(s.members[m.GroupID], m)
	return m, nil
}

func (s *Store) UpdateGroup(_ context.Context, g ledger.Group) (ledger.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.groups[g.ID]
	if !ok {
		return ledger.Group{}, errs.ErrNotFound
	}
	cur.Name = g.Name
	s.groups[g.ID] = cur
	return cur, nil
}

func (s *Store) GroupByID(_ context.Context, id uuid.UUID) (ledger.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return ledger.Group{}, errs.ErrNotFound
	}
	return g, nil
}

// GroupsForUser returns groups userID belongs to, newest first.
func (s *Store) GroupsForUser(_ context.Context, userID uuid.UUID) ([]ledger.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Group, 0)
	for gid, ms := range s.members {
		for _, m := range ms {
			if m.UserID == userID {
				out = append(out, s.groups[gid])
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *Store) MembersByGroup(_ context.Context, groupID uuid.UUID) ([]ledger.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ledger.Member(nil), s.members[groupID]...), nil
}

// --- Expenses ---

// CreateExpense stores the expense, its shares and the optional idempotency key together.
func (s *Store) CreateExpense(_ context.Context, e ledger.GroupExpense, idem *ledger.IdempotencyKey) (ledger.GroupExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[e.GroupID]; !ok {
		return ledger.GroupExpense{}, errs.ErrNotFound
	}
	if _, ok := s.expenses[e.ID]; ok {
		return ledger.GroupExpense{}, errs.ErrConflict
	}
	if idem != nil {
		if _, taken := s.idem[e.GroupID][idem.Key]; taken {
			return ledger.GroupExpense{}, errs.ErrConflict
		}
	}

	cp := copyExpense(e)
	s.expenses[e.ID] = &cp
	s.byGroup[e.GroupID] = append(s.byGroup[e.GroupID], e.ID)
	if idem != nil {
		m, ok := s.idem[e.GroupID]
		if !ok {
			m = make(map[string]idemRecord)
			s.idem[e.GroupID] = m
		}
		m[idem.Key] = idemRecord{expenseID: e.ID, fingerprint: idem.Fingerprint}
	}
	return copyExpense(e), nil
}

func (s *Store) ExpensesByGroup(_ context.Context, groupID uuid.UUID) ([]ledger.GroupExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byGroup[groupID]
	out := make([]ledger.GroupExpense, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.expenses[id]; ok {
			out = append(out, copyExpense(*e))
		}
	}
	return out, nil
}

func (s *Store) ExpenseByID(_ context.Context, groupID, expenseID uuid.UUID) (ledger.GroupExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses[expenseID]
	if !ok || e.GroupID != groupID {
		return ledger.GroupExpense{}, errs.ErrNotFound
	}
	return copyExpense(*e), nil
}

func (s *Store) ExpenseByIdempotencyKey(_ context.Context, groupID uuid.UUID, key string) (ledger.GroupExpense, ledger.IdempotencyKey, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.idem[groupID][key]
	if !ok {
		return ledger.GroupExpense{}, ledger.IdempotencyKey{}, false, nil
	}
	e, ok := s.expenses[rec.expenseID]
	if !ok {
		return ledger.GroupExpense{}, ledger.IdempotencyKey{}, false, nil
	}
	return copyExpense(*e), ledger.IdempotencyKey{Key: key, Fingerprint: rec.fingerprint}, true, nil
}

// --- Settlements ---

func (s *Store) CreateSettlement(_ context.Context, st ledger.Settlement) (ledger.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[st.GroupID]; !ok {
		return ledger.Settlement{}, errs.ErrNotFound
	}
	s.settlements[st.GroupID] = append(s.settlements[st.GroupID], st)
	return st, nil
}

func (s *Store) SettlementsByGroup(_ context.Context, groupID uuid.UUID) ([]ledger.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ledger.Settlement(nil), s.settlements[groupID]...), nil
}

func copyExpense(e ledger.GroupExpense) ledger.GroupExpense {
	e.Shares = append([]ledger.ExpenseShare(nil), e.Shares...)
	e.Metadata = e.Metadata.Clone()
	return e
}
