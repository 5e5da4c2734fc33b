package expense

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/groupledger/internal/errs"
	"github.com/tinoosan/groupledger/internal/events"
	"github.com/tinoosan/groupledger/internal/ledger"
	"github.com/tinoosan/groupledger/internal/meta"
)

// MaxIdempotencyKeyLen bounds client-supplied keys.
const MaxIdempotencyKeyLen = 128

// Repo defines read operations needed by the service.
type Repo interface {
	GroupByID(ctx context.Context, id uuid.UUID) (ledger.Group, error)
	MembersByGroup(ctx context.Context, groupID uuid.UUID) ([]ledger.Member, error)
	ExpensesByGroup(ctx context.Context, groupID uuid.UUID) ([]ledger.GroupExpense, error)
	ExpenseByID(ctx context.Context, groupID, expenseID uuid.UUID) (ledger.GroupExpense, error)
	// ExpenseByIdempotencyKey resolves a key previously stored with CreateExpense.
	ExpenseByIdempotencyKey(ctx context.Context, groupID uuid.UUID, key string) (ledger.GroupExpense, ledger.IdempotencyKey, bool, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	// CreateExpense stores the expense, its shares and, when idem is non-nil,
	// the key mapping in one atomic step. A key that already exists for the
	// group yields errs.ErrConflict and nothing is written.
	CreateExpense(ctx context.Context, e ledger.GroupExpense, idem *ledger.IdempotencyKey) (ledger.GroupExpense, error)
}

// RecordInput is a request to record a new expense.
type RecordInput struct {
	GroupID        uuid.UUID
	PayerID        uuid.UUID
	Description    string
	Amount         money.Amount
	Date           time.Time
	SplitPolicy    ledger.SplitPolicy
	Metadata       meta.Metadata
	IdempotencyKey string
}

// Recorded is the outcome of Record. Replayed is true when an earlier call
// with the same idempotency key already stored the expense.
type Recorded struct {
	Expense  ledger.GroupExpense
	Replayed bool
}

// Service records expenses against a group's current roster.
type Service interface {
	Record(ctx context.Context, in RecordInput) (Recorded, error)
	List(ctx context.Context, groupID uuid.UUID) ([]ledger.GroupExpense, error)
	Get(ctx context.Context, groupID, expenseID uuid.UUID) (ledger.GroupExpense, error)
}

type service struct {
	repo   Repo
	writer Writer
	pub    events.Publisher
	log    *slog.Logger
}

func New(repo Repo, writer Writer, pub events.Publisher, log *slog.Logger) Service {
	return &service{repo: repo, writer: writer, pub: pub, log: log}
}

// Record snapshots the roster, splits the amount and persists expense and
// shares in one writer call. Validation failures write nothing.
func (s *service) Record(ctx context.Context, in RecordInput) (Recorded, error) {
	if in.GroupID == uuid.Nil {
		return Recorded{}, errs.Invalid("group_id", errs.ReasonRequired)
	}
	if in.PayerID == uuid.Nil {
		return Recorded{}, errs.Invalid("payer_id", errs.ReasonRequired)
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > MaxIdempotencyKeyLen {
		return Recorded{}, errs.Invalid("idempotency_key", errs.ReasonTooLong)
	}
	fp := fingerprint(in)

	if key != "" {
		if rec, ok, err := s.replay(ctx, in.GroupID, key, fp); err != nil || ok {
			return rec, err
		}
	}

	if _, err := s.repo.GroupByID(ctx, in.GroupID); err != nil {
		return Recorded{}, errs.Storage("get group", err)
	}
	roster, err := s.repo.MembersByGroup(ctx, in.GroupID)
	if err != nil {
		return Recorded{}, errs.Storage("load roster", err)
	}
	e, err := ledger.PrepareExpense(ledger.ExpenseDraft{
		GroupID:     in.GroupID,
		PayerID:     in.PayerID,
		Description: in.Description,
		Amount:      in.Amount,
		Date:        in.Date,
		SplitPolicy: in.SplitPolicy,
		Metadata:    in.Metadata,
	}, roster)
	if err != nil {
		return Recorded{}, err
	}

	var idem *ledger.IdempotencyKey
	if key != "" {
		idem = &ledger.IdempotencyKey{Key: key, Fingerprint: fp}
	}
	saved, err := s.writer.CreateExpense(ctx, e, idem)
	if err != nil {
		// A concurrent request with the same key won the race.
		if idem != nil && errors.Is(err, errs.ErrConflict) {
			if rec, ok, rerr := s.replay(ctx, in.GroupID, key, fp); rerr != nil || ok {
				return rec, rerr
			}
		}
		return Recorded{}, errs.Storage("create expense", err)
	}
	s.log.InfoContext(ctx, "expense recorded",
		"group_id", saved.GroupID,
		"expense_id", saved.ID,
		"currency", saved.Currency(),
		"amount_minor", ledger.Minor(saved.Amount),
		"shares", len(saved.Shares),
	)
	events.Emit(ctx, s.pub, s.log, events.ExpenseRecorded(saved))
	return Recorded{Expense: saved}, nil
}

// replay resolves key. A stored key with a different request fingerprint is a conflict.
func (s *service) replay(ctx context.Context, groupID uuid.UUID, key, fp string) (Recorded, bool, error) {
	prev, stored, ok, err := s.repo.ExpenseByIdempotencyKey(ctx, groupID, key)
	if err != nil {
		return Recorded{}, false, errs.Storage("resolve idempotency key", err)
	}
	if !ok {
		return Recorded{}, false, nil
	}
	if stored.Fingerprint != fp {
		return Recorded{}, false, errs.ErrConflict
	}
	s.log.DebugContext(ctx, "expense replayed", "group_id", groupID, "expense_id", prev.ID)
	return Recorded{Expense: prev, Replayed: true}, true, nil
}

// List returns the group's expenses, most recent date first.
func (s *service) List(ctx context.Context, groupID uuid.UUID) ([]ledger.GroupExpense, error) {
	if groupID == uuid.Nil {
		return nil, errs.Invalid("group_id", errs.ReasonRequired)
	}
	if _, err := s.repo.GroupByID(ctx, groupID); err != nil {
		return nil, errs.Storage("get group", err)
	}
	list, err := s.repo.ExpensesByGroup(ctx, groupID)
	if err != nil {
		return nil, errs.Storage("list expenses", err)
	}
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].Date.Equal(list[j].Date) {
			return list[i].Date.After(list[j].Date)
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (s *service) Get(ctx context.Context, groupID, expenseID uuid.UUID) (ledger.GroupExpense, error) {
	if groupID == uuid.Nil || expenseID == uuid.Nil {
		return ledger.GroupExpense{}, errs.Invalid("expense_id", errs.ReasonRequired)
	}
	e, err := s.repo.ExpenseByID(ctx, groupID, expenseID)
	if err != nil {
		return ledger.GroupExpense{}, errs.Storage("get expense", err)
	}
	return e, nil
}

// fingerprint hashes the fields that define an expense request so a reused
// idempotency key with a different body can be told apart from a retry.
func fingerprint(in RecordInput) string {
	h := sha256.New()
	date := ""
	if !in.Date.IsZero() {
		date = in.Date.UTC().Format(time.RFC3339Nano)
	}
	policy := in.SplitPolicy
	if policy == "" {
		policy = ledger.SplitEqual
	}
	md, _ := in.Metadata.MarshalStableJSON()
	for _, part := range []string{
		in.GroupID.String(),
		in.PayerID.String(),
		strings.TrimSpace(in.Description),
		in.Amount.Curr().Code(),
		strconv.FormatInt(ledger.Minor(in.Amount), 10),
		date,
		string(policy),
		string(md),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
