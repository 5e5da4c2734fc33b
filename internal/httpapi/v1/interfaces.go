package v1

import (
	"context"

	"github.com/tinoosan/groupledger/internal/service/balance"
	"github.com/tinoosan/groupledger/internal/service/expense"
	"github.com/tinoosan/groupledger/internal/service/group"
	"github.com/tinoosan/groupledger/internal/service/settlement"
)

// Store composes the read and write operations used by the API.
// It is a convenience union satisfied by every storage backend.
type Store interface {
	group.Repo
	group.Writer
	expense.Repo
	expense.Writer
	settlement.Repo
	settlement.Writer
	balance.Repo
}

// ReadyChecker is optionally implemented by stores to indicate readiness.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}
