package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Ledger groups the repositories that take part in one ledger transaction.
type Ledger struct {
	Students *StudentRepository
	Payments *PaymentRepository
}

// Store opens transactions over the ledger tables.
type Store struct {
	db *sqlx.DB
}

// NewStore constructs a Store.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// InTx runs fn with repositories bound to a single transaction. The
// transaction commits only when fn returns nil; any error rolls back every
// statement fn issued.
func (s *Store) InTx(ctx context.Context, fn func(Ledger) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(Ledger{Students: newStudentRepository(tx), Payments: newPaymentRepository(tx)}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

// Ping checks that the substrate is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// likePattern builds a case-insensitive substring pattern for LIKE ... ESCAPE '\'.
func likePattern(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.ToLower(term)) + "%"
}

func isPostgres(exec sqlx.ExtContext) bool {
	return exec.DriverName() == "postgres"
}
