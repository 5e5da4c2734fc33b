// Package sqlite provides a SQLite-backed store using the pure Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/tinoosan/groupledger/internal/errs"
	"github.com/tinoosan/groupledger/internal/ledger"
	"github.com/tinoosan/groupledger/internal/meta"
	"github.com/tinoosan/groupledger/internal/storage/migrations"
)

// Store implements the service repos and writers on SQLite.
type Store struct {
	db *sql.DB
}

// Open creates parent directories, applies migrations and opens the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	if _, err := migrations.SQLite(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Ready pings the database.
func (s *Store) Ready(ctx context.Context) error { return s.db.PingContext(ctx) }

func toUnix(t time.Time) int64 { return t.UTC().UnixNano() }

func fromUnix(n int64) time.Time { return time.Unix(0, n).UTC() }

// --- Groups ---

func (s *Store) CreateGroup(ctx context.Context, g ledger.Group, owner ledger.Member) (ledger.Group, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Group{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO groups (id, name, created_by, created_at) VALUES (?, ?, ?, ?)`,
		g.ID.String(), g.Name, g.CreatedBy.String(), toUnix(g.CreatedAt),
	); err != nil {
		return ledger.Group{}, fmt.Errorf("insert group: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		g.ID.String(), owner.UserID.String(), string(owner.Role), toUnix(owner.JoinedAt),
	); err != nil {
		return ledger.Group{}, fmt.Errorf("insert owner: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return ledger.Group{}, fmt.Errorf("commit: %w", err)
	}
	return g, nil
}

func (s *Store) AddMember(ctx context.Context, m ledger.Member) (ledger.Member, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Member{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM groups WHERE id = ?`, m.GroupID.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Member{}, errs.ErrNotFound
	}
	if err != nil {
		return ledger.Member{}, fmt.Errorf("check group: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (group_id, user_id) DO NOTHING`,
		m.GroupID.String(), m.UserID.String(), string(m.Role), toUnix(m.JoinedAt),
	)
	if err != nil {
		return ledger.Member{}, fmt.Errorf("insert member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.Member{}, errs.ErrConflict
	}
	if err := tx.Commit(); err != nil {
		return ledger.Member{}, fmt.Errorf("commit: %w", err)
	}
	return m, nil
}

func (s *Store) UpdateGroup(ctx context.Context, g ledger.Group) (ledger.Group, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE groups SET name = ? WHERE id = ?`, g.Name, g.ID.String())
	if err != nil {
		return ledger.Group{}, fmt.Errorf("update group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.Group{}, errs.ErrNotFound
	}
	return s.GroupByID(ctx, g.ID)
}

func (s *Store) GroupByID(ctx context.Context, id uuid.UUID) (ledger.Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, created_by, created_at FROM groups WHERE id = ?`, id.String())
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Group{}, errs.ErrNotFound
	}
	return g, err
}

func (s *Store) GroupsForUser(ctx context.Context, userID uuid.UUID) ([]ledger.Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.created_by, g.created_at
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = ?
		ORDER BY g.created_at DESC, g.id ASC`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()
	out := make([]ledger.Group, 0)
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) MembersByGroup(ctx context.Context, groupID uuid.UUID) ([]ledger.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id, user_id, role, joined_at
		FROM group_members
		WHERE group_id = ?
		ORDER BY joined_at ASC, user_id ASC`, groupID.String())
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()
	out := make([]ledger.Member, 0)
	for rows.Next() {
		var gid, uid, role string
		var joined int64
		if err := rows.Scan(&gid, &uid, &role, &joined); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m := ledger.Member{Role: ledger.Role(role), JoinedAt: fromUnix(joined)}
		if m.GroupID, err = uuid.Parse(gid); err != nil {
			return nil, err
		}
		if m.UserID, err = uuid.Parse(uid); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanGroup(r scanner) (ledger.Group, error) {
	var id, name, createdBy string
	var created int64
	if err := r.Scan(&id, &name, &createdBy, &created); err != nil {
		return ledger.Group{}, err
	}
	g := ledger.Group{Name: name, CreatedAt: fromUnix(created)}
	var err error
	if g.ID, err = uuid.Parse(id); err != nil {
		return ledger.Group{}, err
	}
	if g.CreatedBy, err = uuid.Parse(createdBy); err != nil {
		return ledger.Group{}, err
	}
	return g, nil
}

// --- Expenses ---

// CreateExpense inserts the expense, its shares and the optional idempotency
// key in one transaction.
func (s *Store) CreateExpense(ctx context.Context, e ledger.GroupExpense, idem *ledger.IdempotencyKey) (ledger.GroupExpense, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.GroupExpense{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	md, _ := e.Metadata.MarshalStableJSON()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO group_expenses (id, group_id, payer_id, description, amount_minor, currency, date, split_policy, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.GroupID.String(), e.PayerID.String(), e.Description,
		ledger.Minor(e.Amount), e.Currency(), toUnix(e.Date), string(e.SplitPolicy), string(md), toUnix(e.CreatedAt),
	); err != nil {
		return ledger.GroupExpense{}, fmt.Errorf("insert expense: %w", err)
	}
	for _, sh := range e.Shares {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO group_expense_shares (expense_id, member_id, amount_minor) VALUES (?, ?, ?)`,
			e.ID.String(), sh.MemberID.String(), ledger.Minor(sh.Amount),
		); err != nil {
			return ledger.GroupExpense{}, fmt.Errorf("insert share: %w", err)
		}
	}
	if idem != nil {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO expense_idempotency (group_id, key, expense_id, fingerprint, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (group_id, key) DO NOTHING`,
			e.GroupID.String(), idem.Key, e.ID.String(), idem.Fingerprint, toUnix(e.CreatedAt),
		)
		if err != nil {
			return ledger.GroupExpense{}, fmt.Errorf("insert idempotency key: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ledger.GroupExpense{}, errs.ErrConflict
		}
	}
	if err := tx.Commit(); err != nil {
		return ledger.GroupExpense{}, fmt.Errorf("commit: %w", err)
	}
	return e, nil
}

const expenseColumns = `id, group_id, payer_id, description, amount_minor, currency, date, split_policy, metadata, created_at`

func (s *Store) ExpensesByGroup(ctx context.Context, groupID uuid.UUID) ([]ledger.GroupExpense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM group_expenses WHERE group_id = ? ORDER BY date DESC, created_at DESC`,
		groupID.String())
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	out := make([]ledger.GroupExpense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadShares(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ExpenseByID(ctx context.Context, groupID, expenseID uuid.UUID) (ledger.GroupExpense, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM group_expenses WHERE id = ? AND group_id = ?`,
		expenseID.String(), groupID.String())
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
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
	var expenseID, fp string
	err := s.db.QueryRowContext(ctx,
		`SELECT expense_id, fingerprint FROM expense_idempotency WHERE group_id = ? AND key = ?`,
		groupID.String(), key).Scan(&expenseID, &fp)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.GroupExpense{}, ledger.IdempotencyKey{}, false, nil
	}
	if err != nil {
		return ledger.GroupExpense{}, ledger.IdempotencyKey{}, false, fmt.Errorf("query idempotency key: %w", err)
	}
	id, err := uuid.Parse(expenseID)
	if err != nil {
		return ledger.GroupExpense{}, ledger.IdempotencyKey{}, false, err
	}
	e, err := s.ExpenseByID(ctx, groupID, id)
	if err != nil {
		return ledger.GroupExpense{}, ledger.IdempotencyKey{}, false, err
	}
	return e, ledger.IdempotencyKey{Key: key, Fingerprint: fp}, true, nil
}

func scanExpense(r scanner) (ledger.GroupExpense, error) {
	var id, gid, payer, desc, curr, policy string
	var minor, date, created int64
	var md meta.Metadata
	if err := r.Scan(&id, &gid, &payer, &desc, &minor, &curr, &date, &policy, &md, &created); err != nil {
		return ledger.GroupExpense{}, err
	}
	amt, err := ledger.AmountFromMinor(curr, minor)
	if err != nil {
		return ledger.GroupExpense{}, fmt.Errorf("decode amount: %w", err)
	}
	e := ledger.GroupExpense{
		Description: desc,
		Amount:      amt,
		Date:        fromUnix(date),
		SplitPolicy: ledger.SplitPolicy(policy),
		Metadata:    md,
		CreatedAt:   fromUnix(created),
	}
	if e.ID, err = uuid.Parse(id); err != nil {
		return ledger.GroupExpense{}, err
	}
	if e.GroupID, err = uuid.Parse(gid); err != nil {
		return ledger.GroupExpense{}, err
	}
	if e.PayerID, err = uuid.Parse(payer); err != nil {
		return ledger.GroupExpense{}, err
	}
	return e, nil
}

// shareChunkSize caps the expense ids bound into one share query, keeping
// well under SQLite's host parameter limit.
var shareChunkSize = 500

// loadShares fills Shares for each expense, in roster order. Shares whose
// member is not on the roster are kept and sort last.
func (s *Store) loadShares(ctx context.Context, list []ledger.GroupExpense) error {
	idx := make(map[string]*ledger.GroupExpense, len(list))
	for i := range list {
		idx[list[i].ID.String()] = &list[i]
	}
	for start := 0; start < len(list); start += shareChunkSize {
		end := min(start+shareChunkSize, len(list))
		if err := s.loadShareChunk(ctx, list[start:end], idx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadShareChunk(ctx context.Context, chunk []ledger.GroupExpense, idx map[string]*ledger.GroupExpense) error {
	args := make([]any, 0, len(chunk))
	for _, e := range chunk {
		args = append(args, e.ID.String())
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.expense_id, s.member_id, s.amount_minor
		FROM group_expense_shares s
		JOIN group_expenses e ON e.id = s.expense_id
		LEFT JOIN group_members m ON m.group_id = e.group_id AND m.user_id = s.member_id
		WHERE s.expense_id IN (`+placeholders+`)
		ORDER BY m.joined_at IS NULL, m.joined_at ASC, s.member_id ASC`, args...)
	if err != nil {
		return fmt.Errorf("query shares: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var eid, mid string
		var minor int64
		if err := rows.Scan(&eid, &mid, &minor); err != nil {
			return fmt.Errorf("scan share: %w", err)
		}
		e := idx[eid]
		if e == nil {
			continue
		}
		memberID, err := uuid.Parse(mid)
		if err != nil {
			return err
		}
		amt, err := ledger.AmountFromMinor(e.Currency(), minor)
		if err != nil {
			return fmt.Errorf("decode share amount: %w", err)
		}
		e.Shares = append(e.Shares, ledger.ExpenseShare{ExpenseID: e.ID, MemberID: memberID, Amount: amt})
	}
	return rows.Err()
}

// --- Settlements ---

func (s *Store) CreateSettlement(ctx context.Context, st ledger.Settlement) (ledger.Settlement, error) {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO settlements (id, group_id, from_user_id, to_user_id, amount_minor, currency, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID.String(), st.GroupID.String(), st.FromID.String(), st.ToID.String(),
		ledger.Minor(st.Amount), st.Amount.Curr().Code(), st.Note, toUnix(st.CreatedAt),
	); err != nil {
		return ledger.Settlement{}, fmt.Errorf("insert settlement: %w", err)
	}
	return st, nil
}

func (s *Store) SettlementsByGroup(ctx context.Context, groupID uuid.UUID) ([]ledger.Settlement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_id, from_user_id, to_user_id, amount_minor, currency, note, created_at
		FROM settlements
		WHERE group_id = ?
		ORDER BY created_at DESC`, groupID.String())
	if err != nil {
		return nil, fmt.Errorf("query settlements: %w", err)
	}
	defer rows.Close()
	out := make([]ledger.Settlement, 0)
	for rows.Next() {
		var id, gid, from, to, curr, note string
		var minor, created int64
		if err := rows.Scan(&id, &gid, &from, &to, &minor, &curr, &note, &created); err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		amt, err := ledger.AmountFromMinor(curr, minor)
		if err != nil {
			return nil, fmt.Errorf("decode amount: %w", err)
		}
		st := ledger.Settlement{Amount: amt, Note: note, CreatedAt: fromUnix(created)}
		for _, p := range []struct {
			dst *uuid.UUID
			src string
		}{{&st.ID, id}, {&st.GroupID, gid}, {&st.FromID, from}, {&st.ToID, to}} {
			if *p.dst, err = uuid.Parse(p.src); err != nil {
				return nil, err
			}
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
