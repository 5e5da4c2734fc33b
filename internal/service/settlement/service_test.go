package settlement_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/groupledger/internal/errs"
	"github.com/tinoosan/groupledger/internal/events"
	"github.com/tinoosan/groupledger/internal/ledger"
	"github.com/tinoosan/groupledger/internal/service/group"
	"github.com/tinoosan/groupledger/internal/service/settlement"
	"github.com/tinoosan/groupledger/internal/storage/memory"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func setup(t *testing.T) (settlement.Service, uuid.UUID, uuid.UUID, uuid.UUID) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	gs := group.New(store, store, events.Nop{}, testLogger())
	g, err := gs.Create(ctx, "Flat", a)
	require.NoError(t, err)
	_, err = gs.Join(ctx, g.ID, b)
	require.NoError(t, err)
	return settlement.New(store, store, events.Nop{}, testLogger()), g.ID, a, b
}

func inr(t *testing.T, minor int64) money.Amount {
	t.Helper()
	amt, err := ledger.AmountFromMinor("INR", minor)
	require.NoError(t, err)
	return amt
}

func TestRecordAndList(t *testing.T) {
	svc, gid, a, b := setup(t)
	ctx := context.Background()

	first, err := svc.Record(ctx, settlement.RecordInput{GroupID: gid, FromID: b, ToID: a, Amount: inr(t, 1500), Note: " cash "})
	require.NoError(t, err)
	assert.Equal(t, "cash", first.Note)
	time.Sleep(2 * time.Millisecond)
	second, err := svc.Record(ctx, settlement.RecordInput{GroupID: gid, FromID: a, ToID: b, Amount: inr(t, 200)})
	require.NoError(t, err)

	list, err := svc.List(ctx, gid)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	assert.Equal(t, first.ID, list[1].ID)
}

func TestRecord_Validation(t *testing.T) {
	svc, gid, a, b := setup(t)
	ctx := context.Background()
	huge, err := money.NewAmountFromMinorUnits("INR", ledger.MaxAmountMinor+1)
	require.NoError(t, err)

	cases := []struct {
		name   string
		in     settlement.RecordInput
		reason errs.Reason
	}{
		{"same member", settlement.RecordInput{GroupID: gid, FromID: a, ToID: a, Amount: inr(t, 100)}, errs.ReasonSameMember},
		{"zero amount", settlement.RecordInput{GroupID: gid, FromID: a, ToID: b, Amount: inr(t, 0)}, errs.ReasonInvalidAmount},
		{"outsider", settlement.RecordInput{GroupID: gid, FromID: uuid.New(), ToID: b, Amount: inr(t, 100)}, errs.ReasonUnknownMember},
		{"above limit", settlement.RecordInput{GroupID: gid, FromID: a, ToID: b, Amount: huge}, errs.ReasonInvalidAmount},
		{"missing to", settlement.RecordInput{GroupID: gid, FromID: a, Amount: inr(t, 100)}, errs.ReasonRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Record(ctx, tc.in)
			ve, ok := errs.AsValidation(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tc.reason, ve.Reason)
		})
	}

	_, err = svc.Record(ctx, settlement.RecordInput{GroupID: uuid.New(), FromID: a, ToID: b, Amount: inr(t, 100)})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	list, err := svc.List(ctx, gid)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRecord_NoteLimitCountsCharacters(t *testing.T) {
	svc, gid, a, b := setup(t)
	ctx := context.Background()
	note := strings.Repeat("ü", settlement.MaxNoteLen)

	st, err := svc.Record(ctx, settlement.RecordInput{GroupID: gid, FromID: a, ToID: b, Amount: inr(t, 100), Note: note})
	require.NoError(t, err)
	assert.Equal(t, note, st.Note)

	_, err = svc.Record(ctx, settlement.RecordInput{GroupID: gid, FromID: a, ToID: b, Amount: inr(t, 100), Note: note + "ü"})
	assert.ErrorIs(t, err, errs.ErrInvalid)
}
