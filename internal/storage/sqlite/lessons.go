package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mkats/lessonledger/internal/models"
	"github.com/mkats/lessonledger/internal/storage"
)

// CreateLesson assigns the next lesson id and persists the lesson together
// with both party index entries in a single transaction. If either party's
// list is at capacity the transaction rolls back, so the counter is not
// consumed and no id leaks.
func (s *SQLiteStore) CreateLesson(ctx context.Context, lesson *models.Lesson) error {
	if lesson.Price < 0 {
		return fmt.Errorf("lesson price must be non-negative, got %d", lesson.Price)
	}
	if lesson.CreatedAt == 0 {
		lesson.CreatedAt = time.Now().Unix()
	}
	if lesson.Status == "" {
		lesson.Status = models.LessonScheduled
	}
	if lesson.PaymentStatus == "" {
		lesson.PaymentStatus = models.PaymentUnpaid
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Check capacity for both party entries before touching the counter.
	entries := []struct {
		identity string
		role     string
	}{
		{lesson.Teacher, storage.RoleTeacher},
		{lesson.Student, storage.RoleStudent},
	}
	positions := make([]int64, len(entries))
	for i, entry := range entries {
		var count int64
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM party_lessons WHERE identity = ? AND role = ?",
			entry.identity, entry.role,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to count party lessons: %w", err)
		}
		if count >= storage.MaxLessonsPerParty {
			return fmt.Errorf("identity %s: %w", entry.identity, storage.ErrCapacityExceeded)
		}
		positions[i] = count
	}

	// Bump the global counter and read the assigned id.
	if _, err := tx.ExecContext(ctx,
		"UPDATE counters SET value = value + 1 WHERE name = 'lesson_id'",
	); err != nil {
		return fmt.Errorf("failed to advance lesson counter: %w", err)
	}
	if err := tx.QueryRowContext(ctx,
		"SELECT value FROM counters WHERE name = 'lesson_id'",
	).Scan(&lesson.ID); err != nil {
		return fmt.Errorf("failed to read lesson counter: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO lessons (id, teacher, student, start_time, duration, price, status, payment_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lesson.ID, lesson.Teacher, lesson.Student, lesson.StartTime,
		lesson.Duration, lesson.Price, lesson.Status, lesson.PaymentStatus, lesson.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert lesson: %w", err)
	}

	for i, entry := range entries {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO party_lessons (identity, role, lesson_id, position) VALUES (?, ?, ?, ?)",
			entry.identity, entry.role, lesson.ID, positions[i],
		)
		if err != nil {
			return fmt.Errorf("failed to insert party lesson: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetLesson retrieves a lesson by id.
func (s *SQLiteStore) GetLesson(ctx context.Context, id int64) (*models.Lesson, error) {
	lesson := &models.Lesson{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, teacher, student, start_time, duration, price, status, payment_status, created_at
		 FROM lessons WHERE id = ?`,
		id,
	).Scan(
		&lesson.ID, &lesson.Teacher, &lesson.Student, &lesson.StartTime,
		&lesson.Duration, &lesson.Price, &lesson.Status, &lesson.PaymentStatus, &lesson.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrLessonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	return lesson, nil
}

// SetLessonStatus updates only the lifecycle status field.
func (s *SQLiteStore) SetLessonStatus(ctx context.Context, lessonID int64, status models.LessonStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE lessons SET status = ? WHERE id = ?",
		status, lessonID,
	)
	if err != nil {
		return fmt.Errorf("failed to update lesson status: %w", err)
	}
	return requireRow(res)
}

// ApplyPayment marks the lesson paid and credits the teacher in one
// transaction. The unpaid guard in the UPDATE keeps a double payment from
// crediting twice even if a caller skips the engine.
func (s *SQLiteStore) ApplyPayment(ctx context.Context, lessonID int64, teacher string, amount int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE lessons SET payment_status = ? WHERE id = ? AND payment_status = ?",
		models.PaymentPaid, lessonID, models.PaymentUnpaid,
	)
	if err != nil {
		return fmt.Errorf("failed to mark lesson paid: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	if err := creditTx(ctx, tx, teacher, amount); err != nil {
		return fmt.Errorf("failed to credit teacher: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ApplyRefund marks the lesson cancelled/refunded and debits the teacher in
// one transaction.
func (s *SQLiteStore) ApplyRefund(ctx context.Context, lessonID int64, teacher string, amount int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE lessons SET status = ?, payment_status = ? WHERE id = ? AND payment_status = ?",
		models.LessonCancelled, models.PaymentRefunded, lessonID, models.PaymentPaid,
	)
	if err != nil {
		return fmt.Errorf("failed to mark lesson refunded: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	if err := debitTx(ctx, tx, teacher, amount); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// requireRow maps a zero-row UPDATE to ErrLessonNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrLessonNotFound
	}
	return nil
}
