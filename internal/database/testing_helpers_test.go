package database

import (
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

// Store tests run against pgxmock through the DBTX interface (dbtx.go):
//
//   Store              Test Constructor
//   -----              ----------------
//   PublicationStore   NewPublicationStoreWithDB(db DBTX)
//   OrderStore         NewOrderStoreWithDB(db DBTX)
//
// Create a mock with NewMockPool(t), set expectations, build the store with its
// WithDB constructor and call it. Unmet expectations fail the test in t.Cleanup.
//
// pgxmock matches queries as regular expressions, so escape $ placeholders (\$1).
// Return pgx.ErrNoRows for not-found paths and *pgconn.PgError with code 23505 or
// 23514 for constraint violations. Use pgxmock.AnyArg() for pointer arguments
// whose identity the test does not control.

// NewMockPool creates a new pgxmock pool for testing.
// The mock is automatically configured with QueryMatcherRegexp for flexible query matching.
// Call mock.ExpectationsWereMet() at the end of your test to verify all expectations.
func NewMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	t.Cleanup(func() {
		mock.Close()
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled mock expectations: %v", err)
		}
	})
	return mock
}
