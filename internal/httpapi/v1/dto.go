package v1

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/groupledger/internal/errs"
	"github.com/tinoosan/groupledger/internal/ledger"
	"github.com/tinoosan/groupledger/internal/service/balance"
)

// Groups

type createGroupRequest struct {
	Name      string    `json:"name"`
	CreatedBy uuid.UUID `json:"created_by"`
}

type renameGroupRequest struct {
	ActorID uuid.UUID `json:"actor_id"`
	Name    string    `json:"name"`
}

type joinGroupRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

type groupResponse struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	CreatedBy uuid.UUID        `json:"created_by"`
	CreatedAt time.Time        `json:"created_at"`
	Members   []memberResponse `json:"members,omitempty"`
}

type memberResponse struct {
	GroupID  uuid.UUID   `json:"group_id"`
	UserID   uuid.UUID   `json:"user_id"`
	Role     ledger.Role `json:"role"`
	JoinedAt time.Time   `json:"joined_at"`
}

type listGroupsResponse struct {
	Items []groupResponse `json:"items"`
}

type listMembersResponse struct {
	Items []memberResponse `json:"items"`
}

// Expenses

// recordExpenseRequest accepts the amount either as integer minor units or as
// a decimal string; exactly one must be set.
type recordExpenseRequest struct {
	PayerID         uuid.UUID         `json:"payer_id"`
	Description     string            `json:"description"`
	Currency        string            `json:"currency"`
	AmountMinor     *int64            `json:"amount_minor,omitempty"`
	Amount          string            `json:"amount,omitempty"`
	Date            *time.Time        `json:"date,omitempty"`
	SplitPolicy     string            `json:"split_policy,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	ClientExpenseID string            `json:"client_expense_id,omitempty"`
}

type expenseResponse struct {
	ID          uuid.UUID          `json:"id"`
	GroupID     uuid.UUID          `json:"group_id"`
	PayerID     uuid.UUID          `json:"payer_id"`
	Description string             `json:"description"`
	Currency    string             `json:"currency"`
	AmountMinor int64              `json:"amount_minor"`
	Amount      string             `json:"amount"`
	Date        time.Time          `json:"date"`
	SplitPolicy ledger.SplitPolicy `json:"split_policy"`
	Metadata    map[string]string  `json:"metadata,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	Shares      []shareResponse    `json:"shares"`
}

type shareResponse struct {
	MemberID    uuid.UUID `json:"member_id"`
	AmountMinor int64     `json:"amount_minor"`
	Amount      string    `json:"amount"`
}

type listExpensesResponse struct {
	Items []expenseResponse `json:"items"`
}

// Balances

type balancesResponse struct {
	GroupID    uuid.UUID          `json:"group_id"`
	Currencies []currencyBalances `json:"currencies"`
}

type currencyBalances struct {
	Currency  string             `json:"currency"`
	Members   []memberBalance    `json:"members"`
	Transfers []transferResponse `json:"transfers"`
}

type memberBalance struct {
	MemberID  uuid.UUID `json:"member_id"`
	PaidMinor int64     `json:"paid_minor"`
	OwedMinor int64     `json:"owed_minor"`
	NetMinor  int64     `json:"net_minor"`
	Net       string    `json:"net"`
}

type transferResponse struct {
	FromID      uuid.UUID `json:"from_id"`
	ToID        uuid.UUID `json:"to_id"`
	AmountMinor int64     `json:"amount_minor"`
	Amount      string    `json:"amount"`
}

// Settlements

type recordSettlementRequest struct {
	FromID      uuid.UUID `json:"from_id"`
	ToID        uuid.UUID `json:"to_id"`
	Currency    string    `json:"currency"`
	AmountMinor *int64    `json:"amount_minor,omitempty"`
	Amount      string    `json:"amount,omitempty"`
	Note        string    `json:"note,omitempty"`
}

type settlementResponse struct {
	ID          uuid.UUID `json:"id"`
	GroupID     uuid.UUID `json:"group_id"`
	FromID      uuid.UUID `json:"from_id"`
	ToID        uuid.UUID `json:"to_id"`
	Currency    string    `json:"currency"`
	AmountMinor int64     `json:"amount_minor"`
	Amount      string    `json:"amount"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type listSettlementsResponse struct {
	Items []settlementResponse `json:"items"`
}

// wireAmount resolves the amount_minor/amount pair of a request body.
func wireAmount(currency string, minor *int64, decimal string) (money.Amount, error) {
	if _, err := ledger.ParseCurrency(currency); err != nil {
		return money.Amount{}, err
	}
	switch {
	case minor != nil && decimal != "":
		return money.Amount{}, errs.Invalid("amount", errs.ReasonInvalidAmount)
	case minor != nil:
		return ledger.AmountFromMinor(currency, *minor)
	case decimal != "":
		return ledger.ParseAmount(currency, decimal)
	default:
		return money.Amount{}, errs.Invalid("amount", errs.ReasonInvalidAmount)
	}
}

func toGroupResponse(g ledger.Group, members []ledger.Member) groupResponse {
	out := groupResponse{ID: g.ID, Name: g.Name, CreatedBy: g.CreatedBy, CreatedAt: g.CreatedAt}
	for _, m := range members {
		out.Members = append(out.Members, toMemberResponse(m))
	}
	return out
}

func toMemberResponse(m ledger.Member) memberResponse {
	return memberResponse{GroupID: m.GroupID, UserID: m.UserID, Role: m.Role, JoinedAt: m.JoinedAt}
}

func toExpenseResponse(e ledger.GroupExpense) expenseResponse {
	out := expenseResponse{
		ID:          e.ID,
		GroupID:     e.GroupID,
		PayerID:     e.PayerID,
		Description: e.Description,
		Currency:    e.Currency(),
		AmountMinor: ledger.Minor(e.Amount),
		Amount:      ledger.FormatAmount(e.Amount),
		Date:        e.Date,
		SplitPolicy: e.SplitPolicy,
		CreatedAt:   e.CreatedAt,
		Shares:      make([]shareResponse, 0, len(e.Shares)),
	}
	if len(e.Metadata) > 0 {
		out.Metadata = e.Metadata.Clone()
	}
	for _, sh := range e.Shares {
		out.Shares = append(out.Shares, shareResponse{
			MemberID:    sh.MemberID,
			AmountMinor: ledger.Minor(sh.Amount),
			Amount:      ledger.FormatAmount(sh.Amount),
		})
	}
	return out
}

func toBalancesResponse(sum balance.Summary) balancesResponse {
	out := balancesResponse{GroupID: sum.GroupID, Currencies: make([]currencyBalances, 0)}
	for _, curr := range sum.Balances.Currencies() {
		cb := currencyBalances{Currency: curr, Members: make([]memberBalance, 0), Transfers: make([]transferResponse, 0)}
		for _, mb := range sum.Balances.Members(curr) {
			cb.Members = append(cb.Members, memberBalance{
				MemberID:  mb.MemberID,
				PaidMinor: ledger.Minor(mb.Paid),
				OwedMinor: ledger.Minor(mb.Owed),
				NetMinor:  ledger.Minor(mb.Net),
				Net:       ledger.FormatAmount(mb.Net),
			})
		}
		for _, t := range sum.Transfers {
			if t.Amount.Curr().Code() != curr {
				continue
			}
			cb.Transfers = append(cb.Transfers, transferResponse{
				FromID:      t.FromID,
				ToID:        t.ToID,
				AmountMinor: ledger.Minor(t.Amount),
				Amount:      ledger.FormatAmount(t.Amount),
			})
		}
		out.Currencies = append(out.Currencies, cb)
	}
	return out
}

func toSettlementResponse(st ledger.Settlement) settlementResponse {
	return settlementResponse{
		ID:          st.ID,
		GroupID:     st.GroupID,
		FromID:      st.FromID,
		ToID:        st.ToID,
		Currency:    st.Amount.Curr().Code(),
		AmountMinor: ledger.Minor(st.Amount),
		Amount:      ledger.FormatAmount(st.Amount),
		Note:        st.Note,
		CreatedAt:   st.CreatedAt,
	}
}
