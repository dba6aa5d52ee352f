// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mkats/lessonledger/internal/models"
)

// MaxLessonsPerParty bounds the number of lessons tracked per identity and
// role. Creating a lesson for a party whose list is full fails with
// ErrCapacityExceeded rather than silently dropping entries.
const MaxLessonsPerParty = 100

// Party roles for the per-identity lesson index.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

var (
	// ErrLessonNotFound is returned when a lesson id is not in the registry.
	ErrLessonNotFound = errors.New("lesson not found")

	// ErrInsufficientFunds is returned when a debit would drive a ledger
	// balance negative. In the normal lifecycle this never fires because
	// debits are always bounded by prior credits of the same amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCapacityExceeded is returned when a party's lesson list is already
	// at MaxLessonsPerParty.
	ErrCapacityExceeded = errors.New("party lesson list at capacity")
)

// Store defines the interface for lesson ledger persistence.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the booking engine.
//
// The composite operations (CreateLesson, ApplyPayment, ApplyRefund) each
// execute as a single transaction: either every row they touch commits, or
// none do.
type Store interface {
	// RegisterAccount initializes the teacher's ledger balance to zero.
	// Registering an existing account re-zeroes it; callers must not rely
	// on re-registration preserving a balance.
	RegisterAccount(ctx context.Context, teacher string) error

	// HasAccount reports whether the teacher has a ledger account.
	HasAccount(ctx context.Context, teacher string) (bool, error)

	// GetBalance returns the teacher's ledger balance, 0 if unregistered.
	GetBalance(ctx context.Context, teacher string) (int64, error)

	// Credit adds amount to the teacher's balance, creating the account row
	// if needed.
	Credit(ctx context.Context, teacher string, amount int64) error

	// Debit subtracts amount from the teacher's balance. Fails with
	// ErrInsufficientFunds if the result would be negative.
	Debit(ctx context.Context, teacher string, amount int64) error

	// CreateLesson persists a new lesson and appends its id to both
	// parties' lesson lists. The lesson.ID field is populated with the next
	// value of the global counter; ids are strictly increasing and never
	// reused. Fails with ErrCapacityExceeded if either party's list is full.
	CreateLesson(ctx context.Context, lesson *models.Lesson) error

	// GetLesson retrieves a lesson by id, or ErrLessonNotFound.
	GetLesson(ctx context.Context, id int64) (*models.Lesson, error)

	// PartyLessons returns the lesson ids where the identity holds the
	// given role, in creation order. Unknown identities yield an empty
	// slice.
	PartyLessons(ctx context.Context, identity, role string) ([]int64, error)

	// ApplyPayment atomically marks the lesson paid and credits the
	// teacher's balance by amount.
	ApplyPayment(ctx context.Context, lessonID int64, teacher string, amount int64) error

	// ApplyRefund atomically marks the lesson cancelled/refunded and debits
	// the teacher's balance by amount.
	ApplyRefund(ctx context.Context, lessonID int64, teacher string, amount int64) error

	// SetLessonStatus updates only the lifecycle status of a lesson.
	SetLessonStatus(ctx context.Context, lessonID int64, status models.LessonStatus) error

	// User persistence, used by the auth layer.
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Close releases any resources held by the store.
	Close() error
}
