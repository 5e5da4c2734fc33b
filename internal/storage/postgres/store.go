package postgres

// Package postgres provides a pgx-backed store that satisfies the repository
// and writer interfaces used by the services.
//
// The schema lives in internal/storage/migrations. This package maps between
// domain entities and rows and runs the statements and transactions.

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tinoosan/groupledger/internal/errs"
	"github.com/tinoosan/groupledger/internal/ledger"
	"github.com/tinoosan/groupledger/internal/meta"
)

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// --- Groups ---

// CreateGroup inserts the group and its owner membership in a transaction.
func (s *Store) CreateGroup(ctx context.Context, g ledger.Group, owner ledger.Member) (ledger.Group, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.Group{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `
        insert into groups (id, name, created_by, created_at)
        values ($1,$2,$3,$4)
    `, g.ID, g.Name, g.CreatedBy, g.CreatedAt); err != nil {
		return ledger.Group{}, fmt.Errorf("insert group: %w", err)
	}
	if _, err := tx.Exec(ctx, `
        insert into group_members (group_id, user_id, role, joined_at)
        values ($1,$2,$3,$4)
    `, g.ID, owner.UserID, owner.Role, owner.JoinedAt); err != nil {
		return ledger.Group{}, fmt.Errorf("insert owner: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.Group{}, err
	}
	return g, nil
}

// AddMember appends a roster row. Duplicate members are reported as a conflict.
func (s *Store) AddMember(ctx context.Context, m ledger.Member) (ledger.Member, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.Member{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	var exists bool
	if err := tx.QueryRow(ctx, `select exists(select 1 from groups where id = $1)`, m.GroupID).Scan(&exists); err != nil {
		return ledger.Member{}, err
	}
	if !exists {
		return ledger.Member{}, errs.ErrNotFound
	}
	ct, err := tx.Exec(ctx, `
        insert into group_members (group_id, user_id, role, joined_at)
        values ($1,$2,$3,$4)
        on conflict (group_id, user_id) do nothing
    `, m.GroupID, m.UserID, m.Role, m.JoinedAt)
	if err != nil {
		return ledger.Member{}, fmt.Errorf("insert member: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ledger.Member{}, errs.ErrConflict
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.Member{}, err
	}
	return m, nil
}

// UpdateGroup persists a rename.
func (s *Store) UpdateGroup(ctx context.Context, g ledger.Group) (ledger.Group, error) {
	var out ledger.Group
	err := s.pool.QueryRow(ctx, `
        update groups set name = $1 where id = $2
        returning id, name, created_by, created_at
    `, g.Name, g.ID).Scan(&out.ID, &out.Name, &out.CreatedBy, &out.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Group{}, errs.ErrNotFound
	}
	return out, err
}

func (s *Store) GroupByID(ctx context.Context, id uuid.UUID) (ledger.Group, error) {
	var g ledger.Group
	err := s.pool.QueryRow(ctx, `
        select id, name, created_by, created_at from groups where id = $1
    `, id).Scan(&g.ID, &g.Name, &g.CreatedBy, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Group{}, errs.ErrNotFound
	}
	return g, err
}

func (s *Store) GroupsForUser(ctx context.Context, userID uuid.UUID) ([]ledger.Group, error) {
	rows, err := s.pool.Query(ctx, `
        select g.id, g.name, g.created_by, g.created_at
        from groups g
        join group_members m on m.group_id = g.id
        where m.user_id = $1
        order by g.created_at desc, g.id asc
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Group, 0)
	for rows.Next() {
		var g ledger.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedBy, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) MembersByGroup(ctx context.Context, groupID uuid.UUID) ([]ledger.Member, error) {
	rows, err := s.pool.Query(ctx, `
        select group_id, user_id, role, joined_at
        from group_members
        where group_id = $1
        order by joined_at asc, user_id asc
    `, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Member, 0)
	for rows.Next() {
		var m ledger.Member
		var role string
		if err := rows.Scan(&m.GroupID, &m.UserID, &role, &m.JoinedAt); err != nil {
			return nil, err
		}
		m.Role = ledger.Role(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- Expenses ---

// CreateExpense inserts the expense, its shares and the optional idempotency
// key in one transaction.
func (s *Store) CreateExpense(ctx context.Context, e ledger.GroupExpense, idem *ledger.IdempotencyKey) (ledger.GroupExpense, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.GroupExpense{}, err
	}
	if err := createExpense(ctx, tx, e, idem); err != nil {
		_ = tx.Rollback(ctx)
		return ledger.GroupExpense{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.GroupExpense{}, err
	}
	return e, nil
}

// createExpense inserts the expense header, shares and key within tx.
func createExpense(ctx context.Context, tx pgx.Tx, e ledger.GroupExpense, idem *ledger.IdempotencyKey) error {
	md, _ := e.Metadata.MarshalStableJSON()
	if _, err := tx.Exec(ctx, `
        insert into group_expenses (id, group_id, payer_id, description, amount_minor, currency, date, split_policy, metadata, created_at)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    `, e.ID, e.GroupID, e.PayerID, e.Description, ledger.Minor(e.Amount), e.Currency(), e.Date, e.SplitPolicy, md, e.CreatedAt); err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	batch := &pgx.Batch{}
	for _, sh := range e.Shares {
		batch.Queue(`
            insert into group_expense_shares (expense_id, member_id, amount_minor)
            values ($1,$2,$3)
        `, e.ID, sh.MemberID, ledger.Minor(sh.Amount))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert shares: %w", err)
	}
	if idem == nil {
		return nil
	}
	ct, err := tx.Exec(ctx, `
        insert into expense_idempotency (group_id, key, expense_id, fingerprint)
        values ($1,$2,$3,$4)
        on conflict (group_id, key) do nothing
    `, e.GroupID, idem.Key, e.ID, idem.Fingerprint)
	if err != nil {
		return fmt.Errorf("insert idempotency key: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrConflict
	}
	return nil
}

const expenseColumns = `id, group_id, payer_id, description, amount_minor, currency, date, split_policy, metadata, created_at`

func (s *Store) ExpensesByGroup(ctx context.Context, groupID uuid.UUID) ([]ledger.GroupExpense, error) {
	rows, err := s.pool.Query(ctx, `
        select `+expenseColumns+`
        from group_expenses
        where group_id = $1
        order by date desc, created_at desc
    `, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.GroupExpense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, s.loadShares(ctx, out)
}

func (s *Store) ExpenseByID(ctx context.Context, groupID, expenseID uuid.UUID) (ledger.GroupExpense, error) {
	row := s.pool.QueryRow(ctx, `
        select `+expenseColumns+`
        from group_expenses
        where id = $1 and group_id = $2
    `, expenseID, groupID)
	e, err := scanExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.GroupExpense{}, errs.ErrNotFound
	}
	if err != nil {
		return ledger.GroupExpense{}, err
	}
	list := []ledger.GroupExpense{e}
	if err := s.loadShares(ctx, list); err != nil {
		return ledger.GroupExpense{}, err
	}
	return list[0], nil
}

func (s *Store) ExpenseByIdempotencyKey(ctx context.Context, groupID uuid.UUID, key string) (ledger.GroupExpense, ledger.IdempotencyKey, bool, error) {
	var id uuid.UUID
	var fp string
	err := s.pool.QueryRow(ctx, `
        select expense_id, fingerprint from expense_idempotency where group_id = $1 and key = $2
    `, groupID, key).Scan(&id, &fp)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.GroupExpense{}, ledger.IdempotencyKey{}, false, nil
	}
	if err != nil {
		return ledger.GroupExpense{}, ledger.IdempotencyKey{}, false, err
	}
	e, err := s.ExpenseByID(ctx, groupID, id)
	if err != nil {
		return ledger.GroupExpense{}, ledger.IdempotencyKey{}, false, err
	}
	return e, ledger.IdempotencyKey{Key: key, Fingerprint: fp}, true, nil
}

func scanExpense(row pgx.Row) (ledger.GroupExpense, error) {
	var e ledger.GroupExpense
	var minor int64
	var curr, policy string
	var mdBytes []byte
	if err := row.Scan(&e.ID, &e.GroupID, &e.PayerID, &e.Description, &minor, &curr, &e.Date, &policy, &mdBytes, &e.CreatedAt); err != nil {
		return ledger.GroupExpense{}, err
	}
	amt, err := ledger.AmountFromMinor(curr, minor)
	if err != nil {
		return ledger.GroupExpense{}, fmt.Errorf("decode amount: %w", err)
	}
	e.Amount = amt
	e.SplitPolicy = ledger.SplitPolicy(policy)
	e.Metadata = meta.Metadata{}
	if len(mdBytes) > 0 {
		var m meta.Metadata
		if err := m.UnmarshalJSON(mdBytes); err != nil {
			return ledger.GroupExpense{}, fmt.Errorf("decode metadata: %w", err)
		}
		e.Metadata = m
	}
	return e, nil
}

// loadShares fills Shares for each expense, in roster order. Shares whose
// member is not on the roster are kept and sort last.
func (s *Store) loadShares(ctx context.Context, list []ledger.GroupExpense) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(list))
	idx := make(map[uuid.UUID]*ledger.GroupExpense, len(list))
	for i := range list {
		ids = append(ids, list[i].ID)
		idx[list[i].ID] = &list[i]
	}
	rows, err := s.pool.Query(ctx, `
        select s.expense_id, s.member_id, s.amount_minor
        from group_expense_shares s
        join group_expenses e on e.id = s.expense_id
        left join group_members m on m.group_id = e.group_id and m.user_id = s.member_id
        where s.expense_id = any($1)
        order by m.joined_at asc nulls last, s.member_id asc
    `, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var expenseID, memberID uuid.UUID
		var minor int64
		if err := rows.Scan(&expenseID, &memberID, &minor); err != nil {
			return err
		}
		e := idx[expenseID]
		if e == nil {
			continue
		}
		amt, err := ledger.AmountFromMinor(e.Currency(), minor)
		if err != nil {
			return fmt.Errorf("decode share amount: %w", err)
		}
		e.Shares = append(e.Shares, ledger.ExpenseShare{ExpenseID: expenseID, MemberID: memberID, Amount: amt})
	}
	return rows.Err()
}

// --- Settlements ---

func (s *Store) CreateSettlement(ctx context.Context, st ledger.Settlement) (ledger.Settlement, error) {
	if _, err := s.pool.Exec(ctx, `
        insert into settlements (id, group_id, from_user_id, to_user_id, amount_minor, currency, note, created_at)
        values ($1,$2,$3,$4,$5,$6,$7,$8)
    `, st.ID, st.GroupID, st.FromID, st.ToID, ledger.Minor(st.Amount), st.Amount.Curr().Code(), st.Note, st.CreatedAt); err != nil {
		return ledger.Settlement{}, fmt.Errorf("insert settlement: %w", err)
	}
	return st, nil
}

func (s *Store) SettlementsByGroup(ctx context.Context, groupID uuid.UUID) ([]ledger.Settlement, error) {
	rows, err := s.pool.Query(ctx, `
        select id, group_id, from_user_id, to_user_id, amount_minor, currency, note, created_at
        from settlements
        where group_id = $1
        order by created_at desc
    `, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Settlement, 0)
	for rows.Next() {
		var st ledger.Settlement
		var minor int64
		var curr string
		if err := rows.Scan(&st.ID, &st.GroupID, &st.FromID, &st.ToID, &minor, &curr, &st.Note, &st.CreatedAt); err != nil {
			return nil, err
		}
		amt, err := ledger.AmountFromMinor(curr, minor)
		if err != nil {
			return nil, fmt.Errorf("decode amount: %w", err)
		}
		st.Amount = amt
		out = append(out, st)
	}
	return out, rows.Err()
}
