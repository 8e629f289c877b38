package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

const (
	constraintFlightCode    = "flights_code_key"
	constraintPNR           = "bookings_pnr_key"
	constraintConfirmedSeat = "bookings_confirmed_seat_idx"

	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgQueries struct {
	*PGFlightRepository
	*PGBookingRepository
}

func newPGQueries(db querier) *pgQueries {
	return &pgQueries{
		PGFlightRepository:  &PGFlightRepository{db: db},
		PGBookingRepository: &PGBookingRepository{db: db},
	}
}

type PGStore struct {
	*pgQueries
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pgQueries: newPGQueries(pool), pool: pool}
}

// WithinTx runs fn in a READ COMMITTED transaction. Seat exclusivity relies on
// the conditional seat updates and row locks taken inside fn, not on the
// isolation level.
func (s *PGStore) WithinTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", classify(err))
	}
	defer tx.Rollback(ctx)

	if err := fn(newPGQueries(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", classify(err))
	}
	return nil
}

// Migrate creates the schema if it does not exist.
func (s *PGStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// classify maps PostgreSQL errors onto the repository sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %s", ErrTxConflict, pgErr.Message)
	case codeUniqueViolation:
		switch pgErr.ConstraintName {
		case constraintFlightCode:
			return ErrDuplicateFlight
		case constraintPNR:
			return ErrDuplicatePNR
		case constraintConfirmedSeat:
			return ErrSeatConflict
		}
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrNotFound, pgErr.Message)
	}
	return err
}

var _ Store = (*PGStore)(nil)
