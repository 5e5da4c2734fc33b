package ledger

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/groupledger/internal/errs"
)

// MemberBalance is one member's position in one currency.
// Net is Paid minus Owed: positive means the group owes the member.
type MemberBalance struct {
	MemberID uuid.UUID
	Paid     money.Amount
	Owed     money.Amount
	Net      money.Amount
}

type tally struct{ paid, owed int64 }

// Balances holds per-currency member positions derived from expenses and,
// optionally, settlements. The zero value is empty and usable.
type Balances struct {
	roster  []uuid.UUID
	members map[uuid.UUID]struct{}
	byCurr  map[string]map[uuid.UUID]*tally
}

func newBalances(members []Member) Balances {
	ordered := SortRoster(members)
	b := Balances{
		roster:  make([]uuid.UUID, 0, len(ordered)),
		members: make(map[uuid.UUID]struct{}, len(ordered)),
		byCurr:  make(map[string]map[uuid.UUID]*tally),
	}
	for _, m := range ordered {
		if _, dup := b.members[m.UserID]; dup {
			continue
		}
		b.members[m.UserID] = struct{}{}
		b.roster = append(b.roster, m.UserID)
	}
	return b
}

// ComputeBalances folds expenses into per-member nets. Every roster member
// starts at zero in each currency that appears. Payers are credited the full
// amount and each persisted share is debited from its member, so the result
// does not depend on expense order and nets sum to zero per currency.
// A payer or share outside the roster, shares that do not add up to the
// amount, or a tally that would overflow is rejected.
func ComputeBalances(members []Member, expenses []GroupExpense) (Balances, error) {
	b := newBalances(members)
	for _, e := range expenses {
		if _, ok := b.members[e.PayerID]; !ok {
			return Balances{}, errs.Invalid("payer_id", errs.ReasonUnknownMember)
		}
		if !InRange(e.Amount) {
			return Balances{}, errs.Invalid("amount", errs.ReasonInvalidAmount)
		}
		if len(e.Shares) == 0 {
			return Balances{}, errs.Invalid("shares", errs.ReasonShareMismatch)
		}
		curr := e.Currency()
		var sum int64
		for _, sh := range e.Shares {
			if _, ok := b.members[sh.MemberID]; !ok {
				return Balances{}, errs.Invalid("member_id", errs.ReasonUnknownMember)
			}
			if sh.Amount.Curr().Code() != curr {
				return Balances{}, errs.Invalid("currency", errs.ReasonMixedCurrency)
			}
			part := Minor(sh.Amount)
			if part < 0 || part > MaxAmountMinor {
				return Balances{}, errs.Invalid("shares", errs.ReasonShareMismatch)
			}
			sum += part
		}
		if sum != Minor(e.Amount) {
			return Balances{}, errs.Invalid("shares", errs.ReasonShareMismatch)
		}

		t := b.currency(curr)
		if err := credit(&t[e.PayerID].paid, sum); err != nil {
			return Balances{}, err
		}
		for _, sh := range e.Shares {
			if err := credit(&t[sh.MemberID].owed, Minor(sh.Amount)); err != nil {
				return Balances{}, err
			}
		}
	}
	return b, nil
}

// ApplySettlements returns a copy of b with settlements folded in. The payer
// of a settlement is credited and the receiver debited, preserving the zero sum.
func ApplySettlements(b Balances, settlements []Settlement) (Balances, error) {
	out := b.clone()
	for _, s := range settlements {
		if _, ok := out.members[s.FromID]; !ok {
			return Balances{}, errs.Invalid("from_id", errs.ReasonUnknownMember)
		}
		if _, ok := out.members[s.ToID]; !ok {
			return Balances{}, errs.Invalid("to_id", errs.ReasonUnknownMember)
		}
		if !InRange(s.Amount) {
			return Balances{}, errs.Invalid("amount", errs.ReasonInvalidAmount)
		}
		t := out.currency(s.Amount.Curr().Code())
		units := Minor(s.Amount)
		if err := credit(&t[s.FromID].paid, units); err != nil {
			return Balances{}, err
		}
		if err := credit(&t[s.ToID].owed, units); err != nil {
			return Balances{}, err
		}
	}
	return out, nil
}

// credit adds a non-negative delta to a tally.
func credit(total *int64, delta int64) error {
	if delta > math.MaxInt64-*total {
		return errs.Invalid("amount", errs.ReasonOverflow)
	}
	*total += delta
	return nil
}

// Ensure adds currency with every member at zero if it is not already present.
func (b *Balances) Ensure(currency string) {
	if b.byCurr == nil {
		b.byCurr = make(map[string]map[uuid.UUID]*tally)
	}
	b.currency(currency)
}

// Currencies lists the currencies present, sorted.
func (b Balances) Currencies() []string {
	out := make([]string, 0, len(b.byCurr))
	for c := range b.byCurr {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Net returns member's net in currency. Roster members with no activity are zero.
func (b Balances) Net(currency string, member uuid.UUID) money.Amount {
	if t, ok := b.byCurr[currency][member]; ok {
		return fromMinor(currency, t.paid-t.owed)
	}
	return zero(currency)
}

// Members lists positions in currency in roster order.
func (b Balances) Members(currency string) []MemberBalance {
	t := b.byCurr[currency]
	out := make([]MemberBalance, 0, len(b.roster))
	for _, id := range b.roster {
		var paid, owed int64
		if v, ok := t[id]; ok {
			paid, owed = v.paid, v.owed
		}
		out = append(out, MemberBalance{
			MemberID: id,
			Paid:     fromMinor(currency, paid),
			Owed:     fromMinor(currency, owed),
			Net:      fromMinor(currency, paid-owed),
		})
	}
	return out
}

// NetMinor returns member → net minor units for currency.
func (b Balances) NetMinor(currency string) map[uuid.UUID]int64 {
	out := make(map[uuid.UUID]int64, len(b.roster))
	for _, id := range b.roster {
		var net int64
		if v, ok := b.byCurr[currency][id]; ok {
			net = v.paid - v.owed
		}
		out[id] = net
	}
	return out
}

func (b Balances) currency(code string) map[uuid.UUID]*tally {
	t, ok := b.byCurr[code]
	if !ok {
		t = make(map[uuid.UUID]*tally, len(b.roster))
		for _, id := range b.roster {
			t[id] = &tally{}
		}
		b.byCurr[code] = t
	}
	return t
}

func (b Balances) clone() Balances {
	out := Balances{
		roster:  append([]uuid.UUID(nil), b.roster...),
		members: make(map[uuid.UUID]struct{}, len(b.members)),
		byCurr:  make(map[string]map[uuid.UUID]*tally, len(b.byCurr)),
	}
	for id := range b.members {
		out.members[id] = struct{}{}
	}
	for c, t := range b.byCurr {
		ct := make(map[uuid.UUID]*tally, len(t))
		for id, v := range t {
			cp := *v
			ct[id] = &cp
		}
		out.byCurr[c] = ct
	}
	return out
}
