package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
)

func TestNewPGStore(t *testing.T) {
	pool := &pgxpool.Pool{}
	store := NewPGStore(pool)
	assert.NotNil(t, store)
	assert.NotNil(t, store.PGFlightRepository)
	assert.NotNil(t, store.PGBookingRepository)
}

func TestClassify(t *testing.T) {
	other := errors.New("boom")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), ErrNotFound},
		{"serialization", &pgconn.PgError{Code: codeSerializationFailure}, ErrTxConflict},
		{"deadlock", &pgconn.PgError{Code: codeDeadlockDetected}, ErrTxConflict},
		{"duplicate code", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: constraintFlightCode}, ErrDuplicateFlight},
		{"duplicate pnr", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: constraintPNR}, ErrDuplicatePNR},
		{"seat taken", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: constraintConfirmedSeat}, ErrSeatConflict},
		{"missing flight", &pgconn.PgError{Code: codeForeignKeyViolation}, ErrNotFound},
		{"other", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.in)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestClassifyUnknownConstraint(t *testing.T) {
	in := &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "something_else"}
	got := classify(in)
	assert.Same(t, in, got)
}

func TestSchemaDeclaresConstraints(t *testing.T) {
	for _, name := range []string{constraintFlightCode, constraintPNR, constraintConfirmedSeat} {
		assert.Contains(t, schemaSQL, name)
	}
}
