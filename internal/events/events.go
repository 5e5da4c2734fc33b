// Package events publishes domain notifications after state has been committed.
// Delivery is best effort: a failed publish is logged and never undoes a write.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/groupledger/internal/ledger"
)

// Event types, also used as AMQP routing keys.
const (
	TypeGroupCreated       = "group.created"
	TypeMemberJoined       = "member.joined"
	TypeExpenseRecorded    = "expense.recorded"
	TypeSettlementRecorded = "settlement.recorded"
)

// Event is the envelope sent to subscribers.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	GroupID    uuid.UUID `json:"group_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// Publisher delivers events to an external broker.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Emit publishes ev and logs a warning if delivery fails.
func Emit(ctx context.Context, pub Publisher, log *slog.Logger, ev Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, ev); err != nil {
		log.WarnContext(ctx, "event publish failed", "type", ev.Type, "group_id", ev.GroupID, "err", err)
	}
}

func newEvent(typ string, groupID uuid.UUID, data any) Event {
	return Event{ID: uuid.New(), Type: typ, GroupID: groupID, OccurredAt: time.Now().UTC(), Data: data}
}

type groupPayload struct {
	Name      string    `json:"name"`
	CreatedBy uuid.UUID `json:"created_by"`
}

// GroupCreated describes a new group.
func GroupCreated(g ledger.Group) Event {
	return newEvent(TypeGroupCreated, g.ID, groupPayload{Name: g.Name, CreatedBy: g.CreatedBy})
}

type memberPayload struct {
	UserID uuid.UUID   `json:"user_id"`
	Role   ledger.Role `json:"role"`
}

// MemberJoined describes a roster addition.
func MemberJoined(m ledger.Member) Event {
	return newEvent(TypeMemberJoined, m.GroupID, memberPayload{UserID: m.UserID, Role: m.Role})
}

type sharePayload struct {
	MemberID    uuid.UUID `json:"member_id"`
	AmountMinor int64     `json:"amount_minor"`
}

type expensePayload struct {
	ExpenseID   uuid.UUID      `json:"expense_id"`
	PayerID     uuid.UUID      `json:"payer_id"`
	Currency    string         `json:"currency"`
	AmountMinor int64          `json:"amount_minor"`
	Shares      []sharePayload `json:"shares"`
}

// ExpenseRecorded describes a committed expense and its shares.
func ExpenseRecorded(e ledger.GroupExpense) Event {
	p := expensePayload{ExpenseID: e.ID, PayerID: e.PayerID, Currency: e.Currency(), AmountMinor: ledger.Minor(e.Amount)}
	for _, s := range e.Shares {
		p.Shares = append(p.Shares, sharePayload{MemberID: s.MemberID, AmountMinor: ledger.Minor(s.Amount)})
	}
	return newEvent(TypeExpenseRecorded, e.GroupID, p)
}

type settlementPayload struct {
	SettlementID uuid.UUID `json:"settlement_id"`
	FromID       uuid.UUID `json:"from_id"`
	ToID         uuid.UUID `json:"to_id"`
	Currency     string    `json:"currency"`
	AmountMinor  int64     `json:"amount_minor"`
}

// SettlementRecorded describes a committed settlement.
func SettlementRecorded(s ledger.Settlement) Event {
	return newEvent(TypeSettlementRecorded, s.GroupID, settlementPayload{
		SettlementID: s.ID, FromID: s.FromID, ToID: s.ToID,
		Currency: s.Amount.Curr().Code(), AmountMinor: ledger.Minor(s.Amount),
	})
}
