package ledger

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/groupledger/internal/errs"
	"github.com/tinoosan/groupledger/internal/meta"
)

// MaxDescriptionLen bounds GroupExpense.Description, in characters.
const MaxDescriptionLen = 200

// ExpenseDraft is the caller-supplied part of an expense before it is split.
type ExpenseDraft struct {
	ID          uuid.UUID
	GroupID     uuid.UUID
	PayerID     uuid.UUID
	Description string
	Amount      money.Amount
	Date        time.Time
	SplitPolicy SplitPolicy
	Metadata    meta.Metadata
	CreatedAt   time.Time
}

// SortRoster orders members by join time, then user id.
func SortRoster(members []Member) []Member {
	out := make([]Member, len(members))
	copy(out, members)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID.String() < out[j].UserID.String()
	})
	return out
}

// PrepareExpense validates d against roster and returns the expense with one
// share per roster member. Nothing is persisted; a zero ID or timestamp is filled in.
func PrepareExpense(d ExpenseDraft, roster []Member) (GroupExpense, error) {
	if !InRange(d.Amount) {
		return GroupExpense{}, errs.Invalid("amount", errs.ReasonInvalidAmount)
	}
	if len(roster) == 0 {
		return GroupExpense{}, errs.Invalid("members", errs.ReasonEmptyRoster)
	}
	policy := d.SplitPolicy
	if policy == "" {
		policy = SplitEqual
	}
	if policy != SplitEqual {
		return GroupExpense{}, errs.Invalid("split_policy", errs.ReasonUnsupportedSplit)
	}
	if !inRoster(roster, d.PayerID) {
		return GroupExpense{}, errs.Invalid("payer_id", errs.ReasonPayerNotInRoster)
	}
	desc := strings.TrimSpace(d.Description)
	if utf8.RuneCountInString(desc) > MaxDescriptionLen {
		return GroupExpense{}, errs.Invalid("description", errs.ReasonTooLong)
	}
	if err := d.Metadata.Validate(); err != nil {
		return GroupExpense{}, err
	}

	id := d.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	created := d.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	date := d.Date
	if date.IsZero() {
		date = created
	}

	shares, err := SplitEqually(id, d.PayerID, d.Amount, roster)
	if err != nil {
		return GroupExpense{}, err
	}
	return GroupExpense{
		ID:          id,
		GroupID:     d.GroupID,
		PayerID:     d.PayerID,
		Description: desc,
		Amount:      d.Amount,
		Date:        date.UTC(),
		SplitPolicy: policy,
		Metadata:    d.Metadata.Clone(),
		CreatedAt:   created.UTC(),
		Shares:      shares,
	}, nil
}

// SplitEqually divides amount over roster in minor units. Every member gets
// amount/n; the payer also absorbs the remainder, so shares sum to amount exactly.
func SplitEqually(expenseID, payerID uuid.UUID, amount money.Amount, roster []Member) ([]ExpenseShare, error) {
	if len(roster) == 0 {
		return nil, errs.Invalid("members", errs.ReasonEmptyRoster)
	}
	if !inRoster(roster, payerID) {
		return nil, errs.Invalid("payer_id", errs.ReasonPayerNotInRoster)
	}
	units := Minor(amount)
	n := int64(len(roster))
	base, rem := units/n, units%n
	curr := amount.Curr().Code()

	ordered := SortRoster(roster)
	shares := make([]ExpenseShare, 0, len(ordered))
	for _, m := range ordered {
		part := base
		if m.UserID == payerID {
			part += rem
		}
		shares = append(shares, ExpenseShare{ExpenseID: expenseID, MemberID: m.UserID, Amount: fromMinor(curr, part)})
	}
	return shares, nil
}

func inRoster(roster []Member, userID uuid.UUID) bool {
	for _, m := range roster {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
