package memory

import (
	"github.com/tinoosan/groupledger/internal/service/balance"
	"github.com/tinoosan/groupledger/internal/service/expense"
	"github.com/tinoosan/groupledger/internal/service/group"
	"github.com/tinoosan/groupledger/internal/service/settlement"
)

// Compile-time interface assertions documenting which interfaces Store satisfies.
var (
	_ group.Repo        = (*Store)(nil)
	_ group.Writer      = (*Store)(nil)
	_ expense.Repo      = (*Store)(nil)
	_ expense.Writer    = (*Store)(nil)
	_ settlement.Repo   = (*Store)(nil)
	_ settlement.Writer = (*Store)(nil)
	_ balance.Repo      = (*Store)(nil)
)
