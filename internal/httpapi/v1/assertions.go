package v1

import (
	"github.com/tinoosan/groupledger/internal/storage/memory"
	"github.com/tinoosan/groupledger/internal/storage/postgres"
	"github.com/tinoosan/groupledger/internal/storage/sqlite"
)

// Compile-time interface assertions for every backend against the API store.
var (
	_ Store        = (*memory.Store)(nil)
	_ Store        = (*sqlite.Store)(nil)
	_ Store        = (*postgres.Store)(nil)
	_ ReadyChecker = (*memory.Store)(nil)
	_ ReadyChecker = (*sqlite.Store)(nil)
	_ ReadyChecker = (*postgres.Store)(nil)
)
