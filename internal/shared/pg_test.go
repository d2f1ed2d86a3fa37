package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "payments_receipt_no_key"}
	require.True(t, IsUniqueViolation(dup))
	// pgx surfaces server errors wrapped; the check must survive wrapping.
	require.True(t, IsUniqueViolation(fmt.Errorf("insert payment: %w", dup)))

	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, IsUniqueViolation(errors.New("connection reset")))
	require.False(t, IsUniqueViolation(nil))
}
