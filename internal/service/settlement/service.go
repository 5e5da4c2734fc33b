package settlement

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/groupledger/internal/errs"
	"github.com/tinoosan/groupledger/internal/events"
	"github.com/tinoosan/groupledger/internal/ledger"
)

// MaxNoteLen bounds Settlement.Note.
const MaxNoteLen = 200

// Repo defines read operations needed by the service.
type Repo interface {
	GroupByID(ctx context.Context, id uuid.UUID) (ledger.Group, error)
	MembersByGroup(ctx context.Context, groupID uuid.UUID) ([]ledger.Member, error)
	SettlementsByGroup(ctx context.Context, groupID uuid.UUID) ([]ledger.Settlement, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	CreateSettlement(ctx context.Context, s ledger.Settlement) (ledger.Settlement, error)
}

// RecordInput is a request to record a repayment from one member to another.
type RecordInput struct {
	GroupID uuid.UUID
	FromID  uuid.UUID
	ToID    uuid.UUID
	Amount  money.Amount
	Note    string
}

// Service records and lists settlements.
type Service interface {
	Record(ctx context.Context, in RecordInput) (ledger.Settlement, error)
	List(ctx context.Context, groupID uuid.UUID) ([]ledger.Settlement, error)
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

func (s *service) Record(ctx context.Context, in RecordInput) (ledger.Settlement, error) {
	if in.GroupID == uuid.Nil {
		return ledger.Settlement{}, errs.Invalid("group_id", errs.ReasonRequired)
	}
	if in.FromID == uuid.Nil {
		return ledger.Settlement{}, errs.Invalid("from_id", errs.ReasonRequired)
	}
	if in.ToID == uuid.Nil {
		return ledger.Settlement{}, errs.Invalid("to_id", errs.ReasonRequired)
	}
	if in.FromID == in.ToID {
		return ledger.Settlement{}, errs.Invalid("to_id", errs.ReasonSameMember)
	}
	if !ledger.InRange(in.Amount) {
		return ledger.Settlement{}, errs.Invalid("amount", errs.ReasonInvalidAmount)
	}
	note := strings.TrimSpace(in.Note)
	if utf8.RuneCountInString(note) > MaxNoteLen {
		return ledger.Settlement{}, errs.Invalid("note", errs.ReasonTooLong)
	}

	if _, err := s.repo.GroupByID(ctx, in.GroupID); err != nil {
		return ledger.Settlement{}, errs.Storage("get group", err)
	}
	roster, err := s.repo.MembersByGroup(ctx, in.GroupID)
	if err != nil {
		return ledger.Settlement{}, errs.Storage("load roster", err)
	}
	if !isMember(roster, in.FromID) {
		return ledger.Settlement{}, errs.Invalid("from_id", errs.ReasonUnknownMember)
	}
	if !isMember(roster, in.ToID) {
		return ledger.Settlement{}, errs.Invalid("to_id", errs.ReasonUnknownMember)
	}

	st := ledger.Settlement{
		ID:        uuid.New(),
		GroupID:   in.GroupID,
		FromID:    in.FromID,
		ToID:      in.ToID,
		Amount:    in.Amount,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	st, err = s.writer.CreateSettlement(ctx, st)
	if err != nil {
		return ledger.Settlement{}, errs.Storage("create settlement", err)
	}
	s.log.InfoContext(ctx, "settlement recorded", "group_id", st.GroupID, "settlement_id", st.ID, "amount_minor", ledger.Minor(st.Amount))
	events.Emit(ctx, s.pub, s.log, events.SettlementRecorded(st))
	return st, nil
}

// List returns settlements newest first.
func (s *service) List(ctx context.Context, groupID uuid.UUID) ([]ledger.Settlement, error) {
	if groupID == uuid.Nil {
		return nil, errs.Invalid("group_id", errs.ReasonRequired)
	}
	if _, err := s.repo.GroupByID(ctx, groupID); err != nil {
		return nil, errs.Storage("get group", err)
	}
	list, err := s.repo.SettlementsByGroup(ctx, groupID)
	if err != nil {
		return nil, errs.Storage("list settlements", err)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func isMember(roster []ledger.Member, id uuid.UUID) bool {
	for _, m := range roster {
		if m.UserID == id {
			return true
		}
	}
	return false
}
