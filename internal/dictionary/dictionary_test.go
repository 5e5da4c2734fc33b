package dictionary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/groupledger/internal/ledger"
)

func TestRolesAndPolicies(t *testing.T) {
	rs := Roles()
	require.Len(t, rs, 2)
	assert.Equal(t, string(ledger.RoleOwner), rs[0].Code)

	ps := SplitPolicies()
	require.Len(t, ps, 1)
	assert.Equal(t, string(ledger.SplitEqual), ps[0].Code)
	assert.True(t, ps[0].Default)

	// Callers get copies.
	ps[0].Code = "shares"
	assert.Equal(t, string(ledger.SplitEqual), SplitPolicies()[0].Code)
}
