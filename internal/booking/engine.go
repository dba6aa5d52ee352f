// Package booking implements the lesson lifecycle engine.
//
// The engine is the only writer of lesson and ledger state. Every operation
// runs under one exclusive lock and commits its local mutations in a single
// store transaction, so a payment and a concurrent withdrawal against the
// same teacher, or two concurrent cancellations of the same lesson, cannot
// race into an inconsistent balance. The transfer gateway is always invoked
// before any local mutation: if the gateway fails, nothing changes.
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mkats/lessonledger/internal/models"
	"github.com/mkats/lessonledger/internal/payments"
	"github.com/mkats/lessonledger/internal/storage"
)

// RefundCutoff is the minimum lead time, in seconds, a paid lesson must
// still have before its start for cancellation to trigger a refund.
// At or inside the cutoff the teacher keeps the payment.
const RefundCutoff int64 = 86400

// Engine orchestrates schedule, pay, complete, cancel, and withdraw over
// the lesson registry, the ledger, and the transfer gateway.
type Engine struct {
	mu      sync.Mutex
	store   storage.Store
	gateway payments.Gateway

	// escrow is the account name the gateway custodies funds under between
	// payment and completion or refund.
	escrow string
}

// NewEngine creates an engine over the given store and transfer gateway.
func NewEngine(store storage.Store, gateway payments.Gateway, escrowAccount string) *Engine {
	return &Engine{
		store:   store,
		gateway: gateway,
		escrow:  escrowAccount,
	}
}

// RegisterAsTeacher initializes the caller's ledger balance to zero.
// Registering again re-zeroes the balance; that contract is preserved
// from the original system, so the reset is logged loudly rather than
// silently "fixed".
func (e *Engine) RegisterAsTeacher(ctx context.Context, caller string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	exists, err := e.store.HasAccount(ctx, caller)
	if err != nil {
		return err
	}
	if exists {
		slog.Warn("re-registration resets teacher balance to zero", "teacher", caller)
	}
	if err := e.store.RegisterAccount(ctx, caller); err != nil {
		return err
	}
	slog.Info("teacher registered", "teacher", caller)
	return nil
}

// ScheduleLesson creates a lesson by the calling teacher for the given
// student and returns the new lesson id. The caller must hold a ledger
// account (be a registered teacher).
func (e *Engine) ScheduleLesson(ctx context.Context, caller, student string, startTime, duration, price int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	registered, err := e.store.HasAccount(ctx, caller)
	if err != nil {
		return 0, err
	}
	if !registered {
		return 0, ErrNotRegistered
	}

	lesson := &models.Lesson{
		Teacher:       caller,
		Student:       student,
		StartTime:     startTime,
		Duration:      duration,
		Price:         price,
		Status:        models.LessonScheduled,
		PaymentStatus: models.PaymentUnpaid,
	}
	if err := e.store.CreateLesson(ctx, lesson); err != nil {
		return 0, err
	}

	slog.Info("lesson scheduled",
		"lesson_id", lesson.ID,
		"teacher", caller,
		"student", student,
		"start_time", startTime,
		"price", price,
	)
	return lesson.ID, nil
}

// PayForLesson moves the lesson price from the calling student into escrow
// and credits the teacher's ledger balance. Only the lesson's student may
// pay, and only while the lesson is unpaid.
func (e *Engine) PayForLesson(ctx context.Context, caller string, lessonID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	lesson, err := e.store.GetLesson(ctx, lessonID)
	if err != nil {
		return err
	}
	if caller != lesson.Student {
		return ErrUnauthorized
	}
	if lesson.PaymentStatus != models.PaymentUnpaid {
		return fmt.Errorf("%w: payment status is %s", ErrInvalidState, lesson.PaymentStatus)
	}

	// Gateway first: if the student's funds can't move, nothing changes.
	if err := e.gateway.Transfer(ctx, caller, e.escrow, lesson.Price); err != nil {
		slog.Warn("lesson payment transfer failed", "lesson_id", lessonID, "student", caller, "error", err)
		return err
	}

	if err := e.store.ApplyPayment(ctx, lessonID, lesson.Teacher, lesson.Price); err != nil {
		return err
	}

	slog.Info("lesson paid", "lesson_id", lessonID, "student", caller, "amount", lesson.Price)
	return nil
}

// CompleteLesson marks the lesson completed. Only the lesson's teacher may
// complete it. Payment is deliberately not a precondition: an unpaid lesson
// can still be marked completed.
func (e *Engine) CompleteLesson(ctx context.Context, caller string, lessonID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	lesson, err := e.store.GetLesson(ctx, lessonID)
	if err != nil {
		return err
	}
	if caller != lesson.Teacher {
		return ErrUnauthorized
	}
	// Status transitions are forward-only: a cancelled lesson stays
	// cancelled.
	if lesson.Status == models.LessonCancelled {
		return fmt.Errorf("%w: lesson is cancelled", ErrInvalidState)
	}

	if err := e.store.SetLessonStatus(ctx, lessonID, models.LessonCompleted); err != nil {
		return err
	}
	slog.Info("lesson completed", "lesson_id", lessonID, "teacher", caller)
	return nil
}

// CancelLesson cancels the lesson. Either party may cancel. A paid lesson
// cancelled with more than RefundCutoff seconds of lead time remaining is
// refunded to the student and the teacher's balance is reduced by the
// price; otherwise the lesson is only marked cancelled and any payment
// stays with the teacher.
//
// currentTime is the caller-supplied clock, in Unix seconds. The lead time
// is computed with signed arithmetic, so cancelling after the scheduled
// start simply falls into the no-refund branch.
func (e *Engine) CancelLesson(ctx context.Context, caller string, lessonID, currentTime int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	lesson, err := e.store.GetLesson(ctx, lessonID)
	if err != nil {
		return err
	}
	if caller != lesson.Teacher && caller != lesson.Student {
		return ErrUnauthorized
	}
	if lesson.Status != models.LessonScheduled {
		return fmt.Errorf("%w: lesson is %s", ErrInvalidState, lesson.Status)
	}

	lead := lesson.StartTime - currentTime
	if lesson.PaymentStatus == models.PaymentPaid && lead > RefundCutoff {
		// Refund path: escrow returns the price to the student, and the
		// teacher's accrued balance is debited by the same amount.
		if err := e.gateway.Transfer(ctx, e.escrow, lesson.Student, lesson.Price); err != nil {
			slog.Warn("refund transfer failed", "lesson_id", lessonID, "error", err)
			return err
		}
		if err := e.store.ApplyRefund(ctx, lessonID, lesson.Teacher, lesson.Price); err != nil {
			return err
		}
		slog.Info("lesson cancelled with refund",
			"lesson_id", lessonID,
			"caller", caller,
			"amount", lesson.Price,
			"lead_seconds", lead,
		)
		return nil
	}

	// No refund: inside the cutoff, past start, or never paid. The payment
	// status is left untouched, so a teacher keeps payment for a
	// late-cancelled lesson.
	if err := e.store.SetLessonStatus(ctx, lessonID, models.LessonCancelled); err != nil {
		return err
	}
	slog.Info("lesson cancelled without refund",
		"lesson_id", lessonID,
		"caller", caller,
		"payment_status", lesson.PaymentStatus,
		"lead_seconds", lead,
	)
	return nil
}

// WithdrawBalance moves the caller's full accrued balance out of escrow to
// the caller and zeroes the ledger balance. Partial withdrawal is not
// supported.
func (e *Engine) WithdrawBalance(ctx context.Context, caller string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	registered, err := e.store.HasAccount(ctx, caller)
	if err != nil {
		return 0, err
	}
	if !registered {
		return 0, ErrNotRegistered
	}

	balance, err := e.store.GetBalance(ctx, caller)
	if err != nil {
		return 0, err
	}
	if balance == 0 {
		return 0, ErrNothingToWithdraw
	}

	if err := e.gateway.Transfer(ctx, e.escrow, caller, balance); err != nil {
		slog.Warn("withdrawal transfer failed", "teacher", caller, "error", err)
		return 0, err
	}

	// Debiting the full balance zeroes it while keeping the non-negative
	// guard in the store.
	if err := e.store.Debit(ctx, caller, balance); err != nil {
		return 0, err
	}

	slog.Info("balance withdrawn", "teacher", caller, "amount", balance)
	return balance, nil
}

// GetLesson returns the lesson record. Publicly readable.
func (e *Engine) GetLesson(ctx context.Context, lessonID int64) (*models.Lesson, error) {
	return e.store.GetLesson(ctx, lessonID)
}

// GetTeacherBalance returns the teacher's ledger balance, 0 if the teacher
// is unknown. Publicly readable.
func (e *Engine) GetTeacherBalance(ctx context.Context, teacher string) (int64, error) {
	return e.store.GetBalance(ctx, teacher)
}

// GetTeacherLessons returns the ids of lessons the identity teaches, in
// creation order.
func (e *Engine) GetTeacherLessons(ctx context.Context, teacher string) ([]int64, error) {
	return e.store.PartyLessons(ctx, teacher, storage.RoleTeacher)
}

// GetStudentLessons returns the ids of lessons the identity takes as a
// student, in creation order.
func (e *Engine) GetStudentLessons(ctx context.Context, student string) ([]int64, error) {
	return e.store.PartyLessons(ctx, student, storage.RoleStudent)
}
