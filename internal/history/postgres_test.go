package history

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// Runs against a live database when GOVERN_TRUST_TEST_POSTGRES_DSN is set;
// skipped otherwise so the suite stays hermetic.
func TestPostgresStoreContract(t *testing.T) {
	dsn := os.Getenv("GOVERN_TRUST_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GOVERN_TRUST_TEST_POSTGRES_DSN not set")
	}

	store, err := NewPostgresStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	runStoreContract(t, store)
}
