package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/groupledger/internal/meta"
)

// Role is a member's standing inside a group.
type Role string

const (
	// RoleOwner is assigned to the member who created the group.
	RoleOwner Role = "owner"
	// RoleMember is assigned to everyone who joins afterwards.
	RoleMember Role = "member"
)

// SplitPolicy names how an expense amount is divided between members.
type SplitPolicy string

const (
	// SplitEqual divides the amount evenly across the roster captured at recording time.
	SplitEqual SplitPolicy = "equal"
)

// Group is a set of people sharing expenses. Only Name is mutable.
type Group struct {
	ID        uuid.UUID
	Name      string
	CreatedBy uuid.UUID
	CreatedAt time.Time
}

// Member links a user to a group. A user appears at most once per group.
type Member struct {
	GroupID  uuid.UUID
	UserID   uuid.UUID
	Role     Role
	JoinedAt time.Time
}

// GroupExpense is a payment made by one member on behalf of the group.
// It is immutable once recorded; Shares are the persisted split.
type GroupExpense struct {
	ID          uuid.UUID
	GroupID     uuid.UUID
	PayerID     uuid.UUID
	Description string
	Amount      money.Amount
	Date        time.Time
	SplitPolicy SplitPolicy
	// Metadata holds additional key-value attributes for the expense.
	Metadata  meta.Metadata `json:"metadata,omitempty"`
	CreatedAt time.Time
	Shares    []ExpenseShare
}

// Currency returns the ISO 4217 code of the expense amount.
func (e GroupExpense) Currency() string { return e.Amount.Curr().Code() }

// ExpenseShare is the portion of an expense attributed to one member.
type ExpenseShare struct {
	ExpenseID uuid.UUID
	MemberID  uuid.UUID
	Amount    money.Amount
}

// Settlement records a direct repayment between two members.
type Settlement struct {
	ID        uuid.UUID
	GroupID   uuid.UUID
	FromID    uuid.UUID
	ToID      uuid.UUID
	Amount    money.Amount
	Note      string
	CreatedAt time.Time
}

// IdempotencyKey ties a client-supplied key to the request that first used it.
type IdempotencyKey struct {
	Key         string
	Fingerprint string
}
