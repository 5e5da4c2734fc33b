package events

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/groupledger/internal/ledger"
)

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, Event) error {
	f.calls++
	return errors.New("broker unavailable")
}

func TestEmit_LogsFailureWithoutReturningIt(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	pub := &failingPublisher{}

	Emit(context.Background(), pub, log, GroupCreated(ledger.Group{ID: uuid.New(), Name: "Trip"}))

	assert.Equal(t, 1, pub.calls)
	assert.True(t, strings.Contains(buf.String(), "event publish failed"), buf.String())
	assert.True(t, strings.Contains(buf.String(), TypeGroupCreated))
}

func TestEmit_NilPublisherIsSkipped(t *testing.T) {
	Emit(context.Background(), nil, slog.Default(), Event{})
	require.NoError(t, Nop{}.Publish(context.Background(), Event{}))
}

func TestExpenseRecorded_CarriesShares(t *testing.T) {
	payer, other := uuid.New(), uuid.New()
	amt, err := ledger.AmountFromMinor("INR", 1000)
	require.NoError(t, err)
	e, err := ledger.PrepareExpense(ledger.ExpenseDraft{GroupID: uuid.New(), PayerID: payer, Amount: amt},
		[]ledger.Member{{UserID: payer}, {UserID: other}})
	require.NoError(t, err)

	ev := ExpenseRecorded(e)
	assert.Equal(t, TypeExpenseRecorded, ev.Type)
	assert.Equal(t, e.GroupID, ev.GroupID)
	p, ok := ev.Data.(expensePayload)
	require.True(t, ok)
	assert.Equal(t, int64(1000), p.AmountMinor)
	assert.Equal(t, "INR", p.Currency)
	require.Len(t, p.Shares, 2)
	assert.Equal(t, int64(500), p.Shares[0].AmountMinor)
}
