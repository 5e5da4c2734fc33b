package dictionary

import "github.com/tinoosan/groupledger/internal/ledger"

type Entry struct {
	Code        string `json:"code"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Default     bool   `json:"default"`
}

var roles = []Entry{
	{Code: string(ledger.RoleOwner), Label: "Owner", Description: "Created the group and may rename it"},
	{Code: string(ledger.RoleMember), Label: "Member", Default: true},
}

var splitPolicies = []Entry{
	{Code: string(ledger.SplitEqual), Label: "Equal", Description: "Divided evenly across the roster; the payer absorbs any remainder", Default: true},
}

// Roles lists the member roles in display order.
func Roles() []Entry { return append([]Entry(nil), roles...) }

// SplitPolicies lists the supported split policies.
func SplitPolicies() []Entry { return append([]Entry(nil), splitPolicies...) }
