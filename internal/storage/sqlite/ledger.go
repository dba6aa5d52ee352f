package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mkats/lessonledger/internal/storage"
)

// RegisterAccount initializes the teacher's balance to zero.
// Re-registering an existing account re-zeroes it. That matches the
// original contract semantics; callers log loudly when it happens.
func (s *SQLiteStore) RegisterAccount(ctx context.Context, teacher string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO balances (teacher, amount) VALUES (?, 0)
		 ON CONFLICT(teacher) DO UPDATE SET amount = 0`,
		teacher,
	)
	if err != nil {
		return fmt.Errorf("failed to register account: %w", err)
	}
	return nil
}

// HasAccount reports whether a ledger row exists for the teacher.
func (s *SQLiteStore) HasAccount(ctx context.Context, teacher string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM balances WHERE teacher = ?",
		teacher,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check account: %w", err)
	}
	return n > 0, nil
}

// GetBalance returns the teacher's balance, 0 if no account exists.
func (s *SQLiteStore) GetBalance(ctx context.Context, teacher string) (int64, error) {
	var amount int64
	err := s.db.QueryRowContext(ctx,
		"SELECT amount FROM balances WHERE teacher = ?",
		teacher,
	).Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return amount, nil
}

// Credit adds amount to the teacher's balance.
func (s *SQLiteStore) Credit(ctx context.Context, teacher string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("credit amount must be non-negative, got %d", amount)
	}
	if err := creditTx(ctx, s.db, teacher, amount); err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	return nil
}

// Debit subtracts amount from the teacher's balance, guarding the
// non-negative invariant.
func (s *SQLiteStore) Debit(ctx context.Context, teacher string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("debit amount must be non-negative, got %d", amount)
	}
	if err := debitTx(ctx, s.db, teacher, amount); err != nil {
		return err
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx, so the balance mutations
// can run standalone or inside a composite transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func creditTx(ctx context.Context, e execer, teacher string, amount int64) error {
	_, err := e.ExecContext(ctx,
		`INSERT INTO balances (teacher, amount) VALUES (?, ?)
		 ON CONFLICT(teacher) DO UPDATE SET amount = amount + excluded.amount`,
		teacher, amount,
	)
	return err
}

func debitTx(ctx context.Context, e execer, teacher string, amount int64) error {
	res, err := e.ExecContext(ctx,
		"UPDATE balances SET amount = amount - ? WHERE teacher = ? AND amount >= ?",
		amount, teacher, amount,
	)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}
	if n == 0 {
		return storage.ErrInsufficientFunds
	}
	return nil
}
