package balance

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tinoosan/groupledger/internal/errs"
	"github.com/tinoosan/groupledger/internal/ledger"
)

// Repo defines read operations needed by the service.
type Repo interface {
	GroupByID(ctx context.Context, id uuid.UUID) (ledger.Group, error)
	MembersByGroup(ctx context.Context, groupID uuid.UUID) ([]ledger.Member, error)
	ExpensesByGroup(ctx context.Context, groupID uuid.UUID) ([]ledger.GroupExpense, error)
	SettlementsByGroup(ctx context.Context, groupID uuid.UUID) ([]ledger.Settlement, error)
}

// Summary is a group's position after expenses and settlements.
type Summary struct {
	GroupID   uuid.UUID
	Balances  ledger.Balances
	Transfers []ledger.Transfer
}

// Service computes balances. It never writes.
type Service interface {
	Summary(ctx context.Context, groupID uuid.UUID) (Summary, error)
}

type service struct {
	repo            Repo
	defaultCurrency string
}

// New returns a Service. defaultCurrency is reported with all-zero nets for
// groups that have no activity yet.
func New(repo Repo, defaultCurrency string) Service {
	return &service{repo: repo, defaultCurrency: defaultCurrency}
}

func (s *service) Summary(ctx context.Context, groupID uuid.UUID) (Summary, error) {
	if groupID == uuid.Nil {
		return Summary{}, errs.Invalid("group_id", errs.ReasonRequired)
	}
	if _, err := s.repo.GroupByID(ctx, groupID); err != nil {
		return Summary{}, errs.Storage("get group", err)
	}

	var (
		members     []ledger.Member
		expenses    []ledger.GroupExpense
		settlements []ledger.Settlement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		members, err = s.repo.MembersByGroup(gctx, groupID)
		return errs.Storage("load roster", err)
	})
	g.Go(func() error {
		var err error
		expenses, err = s.repo.ExpensesByGroup(gctx, groupID)
		return errs.Storage("load expenses", err)
	})
	g.Go(func() error {
		var err error
		settlements, err = s.repo.SettlementsByGroup(gctx, groupID)
		return errs.Storage("load settlements", err)
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	b, err := ledger.ComputeBalances(members, expenses)
	if err != nil {
		return Summary{}, err
	}
	b, err = ledger.ApplySettlements(b, settlements)
	if err != nil {
		return Summary{}, err
	}
	if len(b.Currencies()) == 0 && s.defaultCurrency != "" {
		b.Ensure(s.defaultCurrency)
	}
	return Summary{GroupID: groupID, Balances: b, Transfers: ledger.SuggestTransfers(b)}, nil
}
