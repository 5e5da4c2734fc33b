package ledger

import (
	"sort"

	"github.com/google/uuid"
	"github.com/govalues/money"
)

// Transfer is a suggested payment that moves nets toward zero.
type Transfer struct {
	FromID uuid.UUID
	ToID   uuid.UUID
	Amount money.Amount
}

type position struct {
	id    uuid.UUID
	units int64
}

// SuggestTransfers proposes payments that settle every net in b. Per currency
// it repeatedly pairs the largest debtor with the largest creditor, which needs
// at most n-1 transfers for n members with a non-zero net.
func SuggestTransfers(b Balances) []Transfer {
	var out []Transfer
	for _, curr := range b.Currencies() {
		var debtors, creditors []position
		nets := b.NetMinor(curr)
		for _, id := range b.roster {
			net := nets[id]
			switch {
			case net < 0:
				debtors = append(debtors, position{id: id, units: -net})
			case net > 0:
				creditors = append(creditors, position{id: id, units: net})
			}
		}
		byLargest(debtors)
		byLargest(creditors)

		i, j := 0, 0
		for i < len(debtors) && j < len(creditors) {
			pay := min(debtors[i].units, creditors[j].units)
			out = append(out, Transfer{FromID: debtors[i].id, ToID: creditors[j].id, Amount: fromMinor(curr, pay)})
			debtors[i].units -= pay
			creditors[j].units -= pay
			if debtors[i].units == 0 {
				i++
			}
			if creditors[j].units == 0 {
				j++
			}
		}
	}
	return out
}

func byLargest(ps []position) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].units != ps[j].units {
			return ps[i].units > ps[j].units
		}
		return ps[i].id.String() < ps[j].id.String()
	})
}
