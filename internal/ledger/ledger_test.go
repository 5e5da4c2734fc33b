package ledger

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/groupledger/internal/errs"
	"github.com/tinoosan/groupledger/internal/meta"
)

type trio struct {
	group   uuid.UUID
	a, b, c uuid.UUID
	roster  []Member
}

func newTrio() trio {
	t0 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	tr := trio{group: uuid.New(), a: uuid.New(), b: uuid.New(), c: uuid.New()}
	tr.roster = []Member{
		{GroupID: tr.group, UserID: tr.a, Role: RoleOwner, JoinedAt: t0},
		{GroupID: tr.group, UserID: tr.b, Role: RoleMember, JoinedAt: t0.Add(time.Minute)},
		{GroupID: tr.group, UserID: tr.c, Role: RoleMember, JoinedAt: t0.Add(2 * time.Minute)},
	}
	return tr
}

func inr(t *testing.T, units int64) money.Amount {
	t.Helper()
	amt, err := AmountFromMinor("INR", units)
	require.NoError(t, err)
	return amt
}

func prepare(t *testing.T, tr trio, payer uuid.UUID, units int64) GroupExpense {
	t.Helper()
	e, err := PrepareExpense(ExpenseDraft{GroupID: tr.group, PayerID: payer, Description: "dinner", Amount: inr(t, units)}, tr.roster)
	require.NoError(t, err)
	return e
}

func sharesByMember(e GroupExpense) map[uuid.UUID]int64 {
	out := map[uuid.UUID]int64{}
	for _, s := range e.Shares {
		out[s.MemberID] = Minor(s.Amount)
	}
	return out
}

func TestPrepareExpense_EqualSplit(t *testing.T) {
	tr := newTrio()
	e := prepare(t, tr, tr.a, 30000)

	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, SplitEqual, e.SplitPolicy)
	assert.Equal(t, "INR", e.Currency())
	require.Len(t, e.Shares, 3)
	assert.Equal(t, map[uuid.UUID]int64{tr.a: 10000, tr.b: 10000, tr.c: 10000}, sharesByMember(e))
	for _, s := range e.Shares {
		assert.Equal(t, e.ID, s.ExpenseID)
	}
	// roster order
	assert.Equal(t, []uuid.UUID{tr.a, tr.b, tr.c}, []uuid.UUID{e.Shares[0].MemberID, e.Shares[1].MemberID, e.Shares[2].MemberID})
}

func TestPrepareExpense_RemainderGoesToPayer(t *testing.T) {
	tr := newTrio()
	e := prepare(t, tr, tr.b, 10000)

	got := sharesByMember(e)
	assert.Equal(t, int64(3334), got[tr.b])
	assert.Equal(t, int64(3333), got[tr.a])
	assert.Equal(t, int64(3333), got[tr.c])

	var sum int64
	for _, v := range got {
		sum += v
	}
	assert.Equal(t, int64(10000), sum)
}

func TestPrepareExpense_Rejections(t *testing.T) {
	tr := newTrio()
	outsider := uuid.New()
	cases := []struct {
		name   string
		draft  ExpenseDraft
		roster []Member
		reason errs.Reason
	}{
		{"zero amount", ExpenseDraft{PayerID: tr.a, Amount: inr(t, 0)}, tr.roster, errs.ReasonInvalidAmount},
		{"negative amount", ExpenseDraft{PayerID: tr.a, Amount: inr(t, -500)}, tr.roster, errs.ReasonInvalidAmount},
		{"empty roster", ExpenseDraft{PayerID: tr.a, Amount: inr(t, 500)}, nil, errs.ReasonEmptyRoster},
		{"payer outside roster", ExpenseDraft{PayerID: outsider, Amount: inr(t, 500)}, tr.roster, errs.ReasonPayerNotInRoster},
		{"unsupported policy", ExpenseDraft{PayerID: tr.a, Amount: inr(t, 500), SplitPolicy: "percentage"}, tr.roster, errs.ReasonUnsupportedSplit},
		{"bad metadata", ExpenseDraft{PayerID: tr.a, Amount: inr(t, 500), Metadata: meta.New(map[string]string{"": "x"})}, tr.roster, errs.ReasonInvalidMetadata},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := PrepareExpense(tc.draft, tc.roster)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrInvalid))
			ve, ok := errs.AsValidation(err)
			require.True(t, ok)
			assert.Equal(t, tc.reason, ve.Reason)
		})
	}
}

func TestComputeBalances_TwoExpenseScenario(t *testing.T) {
	tr := newTrio()
	first := prepare(t, tr, tr.a, 30000)

	b, err := ComputeBalances(tr.roster, []GroupExpense{first})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]int64{tr.a: 20000, tr.b: -10000, tr.c: -10000}, b.NetMinor("INR"))

	second := prepare(t, tr, tr.b, 9000)
	b, err = ComputeBalances(tr.roster, []GroupExpense{first, second})
	require.NoError(t, err)
	nets := b.NetMinor("INR")
	assert.Equal(t, map[uuid.UUID]int64{tr.a: 17000, tr.b: -4000, tr.c: -13000}, nets)
	assert.Equal(t, int64(0), nets[tr.a]+nets[tr.b]+nets[tr.c])
	assert.Equal(t, "170.00", FormatAmount(b.Net("INR", tr.a)))
}

func TestComputeBalances_OrderIndependentAndIdempotent(t *testing.T) {
	tr := newTrio()
	expenses := []GroupExpense{
		prepare(t, tr, tr.a, 30000),
		prepare(t, tr, tr.b, 9000),
		prepare(t, tr, tr.c, 10001),
	}
	forward, err := ComputeBalances(tr.roster, expenses)
	require.NoError(t, err)
	reversed, err := ComputeBalances(tr.roster, []GroupExpense{expenses[2], expenses[1], expenses[0]})
	require.NoError(t, err)
	again, err := ComputeBalances(tr.roster, expenses)
	require.NoError(t, err)

	assert.Equal(t, forward.NetMinor("INR"), reversed.NetMinor("INR"))
	assert.Equal(t, forward.NetMinor("INR"), again.NetMinor("INR"))

	var sum int64
	for _, v := range forward.NetMinor("INR") {
		sum += v
	}
	assert.Equal(t, int64(0), sum)
}

func TestComputeBalances_NoExpensesIsAllZero(t *testing.T) {
	tr := newTrio()
	b, err := ComputeBalances(tr.roster, nil)
	require.NoError(t, err)
	assert.Empty(t, b.Currencies())
	b.Ensure("INR")
	assert.Equal(t, []string{"INR"}, b.Currencies())
	for _, mb := range b.Members("INR") {
		assert.Equal(t, int64(0), Minor(mb.Net))
	}
	assert.Len(t, b.Members("INR"), 3)
}

func TestComputeBalances_UsesPersistedSharesAfterRosterGrows(t *testing.T) {
	tr := newTrio()
	e := prepare(t, tr, tr.a, 30000)
	late := Member{GroupID: tr.group, UserID: uuid.New(), Role: RoleMember, JoinedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}

	b, err := ComputeBalances(append(tr.roster, late), []GroupExpense{e})
	require.NoError(t, err)
	nets := b.NetMinor("INR")
	assert.Equal(t, int64(0), nets[late.UserID])
	assert.Equal(t, int64(20000), nets[tr.a])
}

func TestComputeBalances_UnknownMember(t *testing.T) {
	tr := newTrio()
	e := prepare(t, tr, tr.a, 30000)
	_, err := ComputeBalances(tr.roster[:2], []GroupExpense{e})
	ve, ok := errs.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, errs.ReasonUnknownMember, ve.Reason)

	e.PayerID = uuid.New()
	_, err = ComputeBalances(tr.roster, []GroupExpense{e})
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestComputeBalances_SeparatesCurrencies(t *testing.T) {
	tr := newTrio()
	usd, err := AmountFromMinor("USD", 600)
	require.NoError(t, err)
	dollars, err := PrepareExpense(ExpenseDraft{PayerID: tr.c, Amount: usd}, tr.roster)
	require.NoError(t, err)

	b, err := ComputeBalances(tr.roster, []GroupExpense{prepare(t, tr, tr.a, 30000), dollars})
	require.NoError(t, err)
	assert.Equal(t, []string{"INR", "USD"}, b.Currencies())
	assert.Equal(t, int64(400), b.NetMinor("USD")[tr.c])
	assert.Equal(t, int64(20000), b.NetMinor("INR")[tr.a])
}

func TestApplySettlementsAndSuggestTransfers(t *testing.T) {
	tr := newTrio()
	b, err := ComputeBalances(tr.roster, []GroupExpense{prepare(t, tr, tr.a, 30000), prepare(t, tr, tr.b, 9000)})
	require.NoError(t, err)

	transfers := SuggestTransfers(b)
	require.Len(t, transfers, 2)
	assert.Equal(t, tr.c, transfers[0].FromID)
	assert.Equal(t, tr.a, transfers[0].ToID)
	assert.Equal(t, int64(13000), Minor(transfers[0].Amount))
	assert.Equal(t, tr.b, transfers[1].FromID)
	assert.Equal(t, tr.a, transfers[1].ToID)
	assert.Equal(t, int64(4000), Minor(transfers[1].Amount))

	settled, err := ApplySettlements(b, []Settlement{{FromID: tr.b, ToID: tr.a, Amount: inr(t, 4000)}})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]int64{tr.a: 13000, tr.b: 0, tr.c: -13000}, settled.NetMinor("INR"))
	// input untouched
	assert.Equal(t, int64(-4000), b.NetMinor("INR")[tr.b])
	assert.Len(t, SuggestTransfers(settled), 1)

	_, err = ApplySettlements(b, []Settlement{{FromID: uuid.New(), ToID: tr.a, Amount: inr(t, 100)}})
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestParseAndFormatAmount(t *testing.T) {
	amt, err := ParseAmount("usd", "12.50")
	require.NoError(t, err)
	assert.Equal(t, int64(1250), Minor(amt))
	assert.Equal(t, "USD", amt.Curr().Code())
	assert.Equal(t, "12.50", FormatAmount(amt))

	yen, err := ParseAmount("JPY", "300")
	require.NoError(t, err)
	assert.Equal(t, int64(300), Minor(yen))

	for _, bad := range []string{"12.505", "abc", ""} {
		_, err := ParseAmount("USD", bad)
		assert.ErrorIs(t, err, errs.ErrInvalid, bad)
	}
	_, err = ParseAmount("", "1.00")
	ve, ok := errs.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, errs.ReasonInvalidCurrency, ve.Reason)

	neg, err := AmountFromMinor("USD", -1250)
	require.NoError(t, err)
	assert.Equal(t, "-12.50", FormatAmount(neg))
}

func rosterOf(n int) []Member {
	t0 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	group := uuid.New()
	out := make([]Member, n)
	for i := range out {
		out[i] = Member{GroupID: group, UserID: uuid.New(), Role: RoleMember, JoinedAt: t0.Add(time.Duration(i) * time.Minute)}
	}
	out[0].Role = RoleOwner
	return out
}

func TestSplitEqually_SharesAlwaysSumToAmount(t *testing.T) {
	cases := []struct {
		units int64
		n     int
		payer int
	}{
		{1, 1, 0},
		{1, 3, 2},
		{2, 3, 0},
		{10000, 7, 3},
		{99999, 7, 6},
		{1000003, 50, 17},
		{12345, 200, 199},
		{MaxAmountMinor, 97, 40},
	}
	for _, tc := range cases {
		roster := rosterOf(tc.n)
		payer := roster[tc.payer].UserID
		e, err := PrepareExpense(ExpenseDraft{PayerID: payer, Amount: inr(t, tc.units)}, roster)
		require.NoError(t, err, "%d over %d", tc.units, tc.n)
		require.Len(t, e.Shares, tc.n)

		base, rem := tc.units/int64(tc.n), tc.units%int64(tc.n)
		var sum int64
		for _, sh := range e.Shares {
			part := Minor(sh.Amount)
			sum += part
			if sh.MemberID == payer {
				assert.Equal(t, base+rem, part, "payer share for %d over %d", tc.units, tc.n)
			} else {
				assert.Equal(t, base, part, "share for %d over %d", tc.units, tc.n)
			}
		}
		assert.Equal(t, tc.units, sum, "%d over %d", tc.units, tc.n)
	}
}

func TestComputeBalances_RandomHistoriesSumToZero(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	currencies := []string{"INR", "USD", "JPY"}
	for round := 0; round < 20; round++ {
		roster := rosterOf(2 + rng.Intn(6))
		var expenses []GroupExpense
		var settlements []Settlement
		for i := 0; i < 60; i++ {
			curr := currencies[rng.Intn(len(currencies))]
			amt, err := AmountFromMinor(curr, 1+rng.Int63n(1_000_000))
			require.NoError(t, err)
			if rng.Intn(4) == 0 {
				from := rng.Intn(len(roster))
				to := (from + 1 + rng.Intn(len(roster)-1)) % len(roster)
				settlements = append(settlements, Settlement{FromID: roster[from].UserID, ToID: roster[to].UserID, Amount: amt})
				continue
			}
			e, err := PrepareExpense(ExpenseDraft{PayerID: roster[rng.Intn(len(roster))].UserID, Amount: amt}, roster)
			require.NoError(t, err)
			expenses = append(expenses, e)
		}

		b, err := ComputeBalances(roster, expenses)
		require.NoError(t, err)
		b, err = ApplySettlements(b, settlements)
		require.NoError(t, err)

		shuffled := append([]GroupExpense(nil), expenses...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		again, err := ComputeBalances(roster, shuffled)
		require.NoError(t, err)
		again, err = ApplySettlements(again, settlements)
		require.NoError(t, err)

		for _, curr := range b.Currencies() {
			var sum int64
			for _, net := range b.NetMinor(curr) {
				sum += net
			}
			assert.Zero(t, sum, "round %d %s", round, curr)
			assert.Equal(t, b.NetMinor(curr), again.NetMinor(curr), "round %d %s", round, curr)
		}
	}
}

func TestAmountBounds(t *testing.T) {
	top, err := AmountFromMinor("INR", MaxAmountMinor)
	require.NoError(t, err)
	assert.True(t, InRange(top))
	_, err = AmountFromMinor("INR", MaxAmountMinor+1)
	assert.ErrorIs(t, err, errs.ErrInvalid)
	_, err = AmountFromMinor("INR", -MaxAmountMinor-1)
	assert.ErrorIs(t, err, errs.ErrInvalid)

	parsed, err := ParseAmount("INR", "10000000000000.00")
	require.NoError(t, err)
	assert.Equal(t, MaxAmountMinor, Minor(parsed))
	for _, big := range []string{"10000000000000.01", "184467440737095516.17", "-184467440737095516.17", "1e30"} {
		_, err := ParseAmount("INR", big)
		ve, ok := errs.AsValidation(err)
		require.True(t, ok, big)
		assert.Equal(t, errs.ReasonInvalidAmount, ve.Reason, big)
	}

	huge, err := money.NewAmountFromMinorUnits("INR", MaxAmountMinor+1)
	require.NoError(t, err)
	assert.False(t, InRange(huge))
	tr := newTrio()
	_, err = PrepareExpense(ExpenseDraft{PayerID: tr.a, Amount: huge}, tr.roster)
	ve, ok := errs.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, errs.ReasonInvalidAmount, ve.Reason)
}

func TestComputeBalances_RejectsMalformedExpenses(t *testing.T) {
	tr := newTrio()
	reason := func(err error) errs.Reason {
		t.Helper()
		ve, ok := errs.AsValidation(err)
		require.True(t, ok, "got %v", err)
		return ve.Reason
	}

	missing := prepare(t, tr, tr.a, 1000)
	missing.Shares = missing.Shares[:2]
	_, err := ComputeBalances(tr.roster, []GroupExpense{missing})
	assert.Equal(t, errs.ReasonShareMismatch, reason(err))

	empty := prepare(t, tr, tr.a, 1000)
	empty.Shares = nil
	_, err = ComputeBalances(tr.roster, []GroupExpense{empty})
	assert.Equal(t, errs.ReasonShareMismatch, reason(err))

	inflated := prepare(t, tr, tr.a, 1000)
	inflated.Shares = append([]ExpenseShare(nil), inflated.Shares...)
	inflated.Shares[1].Amount = inr(t, 999)
	_, err = ComputeBalances(tr.roster, []GroupExpense{inflated})
	assert.Equal(t, errs.ReasonShareMismatch, reason(err))

	huge, err := money.NewAmountFromMinorUnits("INR", 9_000_000_000_000_000_000)
	require.NoError(t, err)
	oversized := prepare(t, tr, tr.a, 1000)
	oversized.Amount = huge
	_, err = ComputeBalances(tr.roster, []GroupExpense{oversized, oversized})
	assert.Equal(t, errs.ReasonInvalidAmount, reason(err))
}

func TestComputeBalances_TallyOverflowIsRejected(t *testing.T) {
	solo := rosterOf(1)
	e, err := PrepareExpense(ExpenseDraft{PayerID: solo[0].UserID, Amount: inr(t, MaxAmountMinor)}, solo)
	require.NoError(t, err)

	// 9300 maximal expenses exceed int64 in the payer's tally.
	many := make([]GroupExpense, 9300)
	for i := range many {
		many[i] = e
	}
	_, err = ComputeBalances(solo, many)
	ve, ok := errs.AsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, errs.ReasonOverflow, ve.Reason)

	pair := rosterOf(2)
	b, err := ComputeBalances(pair, nil)
	require.NoError(t, err)
	settlements := make([]Settlement, 9300)
	for i := range settlements {
		settlements[i] = Settlement{FromID: pair[0].UserID, ToID: pair[1].UserID, Amount: inr(t, MaxAmountMinor)}
	}
	_, err = ApplySettlements(b, settlements)
	ve, ok = errs.AsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, errs.ReasonOverflow, ve.Reason)
}

func TestPrepareExpense_DescriptionLimitCountsCharacters(t *testing.T) {
	tr := newTrio()
	ok := strings.Repeat("क", MaxDescriptionLen)
	e, err := PrepareExpense(ExpenseDraft{PayerID: tr.a, Amount: inr(t, 300), Description: ok}, tr.roster)
	require.NoError(t, err)
	assert.Equal(t, ok, e.Description)

	_, err = PrepareExpense(ExpenseDraft{PayerID: tr.a, Amount: inr(t, 300), Description: ok + "क"}, tr.roster)
	assert.ErrorIs(t, err, errs.ErrInvalid)
}
