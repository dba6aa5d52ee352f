package models

// LessonStatus tracks the lifecycle state of a lesson.
// Transitions are forward-only: a cancelled or completed lesson never
// becomes scheduled again.
type LessonStatus string

const (
	LessonScheduled LessonStatus = "scheduled"
	LessonCompleted LessonStatus = "completed"
	LessonCancelled LessonStatus = "cancelled"
)

// PaymentStatus tracks where the lesson's money is.
// Valid transitions: unpaid → paid → refunded. A refund is only possible
// while the escrow still attributes the funds to this lesson.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Lesson represents a booked lesson between a teacher and a student.
//
// Identity fields (ID, Teacher, Student, StartTime, Duration, Price) are set
// once at creation and never change. Only Status and PaymentStatus are
// mutable afterwards.
type Lesson struct {
	// ID is a monotonically assigned integer, unique across the lifetime of
	// the registry. IDs are never reused, even for cancelled lessons.
	ID int64

	// Teacher is the identity of the teacher giving the lesson.
	Teacher string

	// Student is the identity of the student taking the lesson.
	Student string

	// StartTime is the scheduled start, in Unix seconds.
	StartTime int64

	// Duration is the lesson length in seconds.
	Duration int64

	// Price is the lesson price in minor currency units. Non-negative.
	Price int64

	// Status is the lifecycle state, starting at LessonScheduled.
	Status LessonStatus

	// PaymentStatus starts at PaymentUnpaid.
	PaymentStatus PaymentStatus

	// CreatedAt is the Unix timestamp when the lesson was scheduled.
	CreatedAt int64
}
