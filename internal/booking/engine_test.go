package booking

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mkats/lessonledger/internal/models"
	"github.com/mkats/lessonledger/internal/payments"
	"github.com/mkats/lessonledger/internal/storage"
	"github.com/mkats/lessonledger/internal/storage/sqlite"
)

const escrowAccount = "escrow"

// transferCall records one gateway invocation.
type transferCall struct {
	From   string
	To     string
	Amount int64
}

// fakeGateway is a programmable in-memory transfer gateway.
type fakeGateway struct {
	calls    []transferCall
	failNext bool
}

func (g *fakeGateway) Transfer(ctx context.Context, from, to string, amount int64) error {
	if g.failNext {
		g.failNext = false
		return fmt.Errorf("%w: simulated rejection", payments.ErrTransferFailed)
	}
	g.calls = append(g.calls, transferCall{From: from, To: to, Amount: amount})
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeGateway) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "lessonledger-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	gw := &fakeGateway{}
	return NewEngine(store, gw, escrowAccount), gw
}

// TestLifecycleScenario walks the reference scenario: teacher registers,
// schedules a lesson, the student pays, then cancels with more than 24h of
// lead, getting a full refund.
func TestLifecycleScenario(t *testing.T) {
	engine, gw := newTestEngine(t)
	ctx := context.Background()

	if err := engine.RegisterAsTeacher(ctx, "T"); err != nil {
		t.Fatalf("RegisterAsTeacher failed: %v", err)
	}

	id, err := engine.ScheduleLesson(ctx, "T", "S", 100000, 3600, 5000)
	if err != nil {
		t.Fatalf("ScheduleLesson failed: %v", err)
	}
	if id != 1 {
		t.Errorf("first lesson id = %d, want 1", id)
	}

	if err := engine.PayForLesson(ctx, "S", id); err != nil {
		t.Fatalf("PayForLesson failed: %v", err)
	}

	balance, err := engine.GetTeacherBalance(ctx, "T")
	if err != nil {
		t.Fatalf("GetTeacherBalance failed: %v", err)
	}
	if balance != 5000 {
		t.Errorf("balance after payment = %d, want 5000", balance)
	}

	lesson, err := engine.GetLesson(ctx, id)
	if err != nil {
		t.Fatalf("GetLesson failed: %v", err)
	}
	if lesson.PaymentStatus != models.PaymentPaid {
		t.Errorf("payment status = %s, want %s", lesson.PaymentStatus, models.PaymentPaid)
	}

	// Cancel at t=10000: lead is 90000s, more than the 86400s cutoff.
	if err := engine.CancelLesson(ctx, "S", id, 10000); err != nil {
		t.Fatalf("CancelLesson failed: %v", err)
	}

	lesson, err = engine.GetLesson(ctx, id)
	if err != nil {
		t.Fatalf("GetLesson failed: %v", err)
	}
	if lesson.Status != models.LessonCancelled {
		t.Errorf("status = %s, want %s", lesson.Status, models.LessonCancelled)
	}
	if lesson.PaymentStatus != models.PaymentRefunded {
		t.Errorf("payment status = %s, want %s", lesson.PaymentStatus, models.PaymentRefunded)
	}

	balance, _ = engine.GetTeacherBalance(ctx, "T")
	if balance != 0 {
		t.Errorf("balance after refund = %d, want 0", balance)
	}

	wantCalls := []transferCall{
		{From: "S", To: escrowAccount, Amount: 5000},
		{From: escrowAccount, To: "S", Amount: 5000},
	}
	if len(gw.calls) != len(wantCalls) {
		t.Fatalf("gateway calls = %d, want %d", len(gw.calls), len(wantCalls))
	}
	for i, want := range wantCalls {
		if gw.calls[i] != want {
			t.Errorf("gateway call %d = %+v, want %+v", i, gw.calls[i], want)
		}
	}
}

func TestScheduleRequiresRegistration(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.ScheduleLesson(ctx, "unregistered", "S", 1000, 60, 100)
	if !errors.Is(err, ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}
}

func TestLessonIDsMonotonic(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	if err := engine.RegisterAsTeacher(ctx, "T"); err != nil {
		t.Fatalf("RegisterAsTeacher failed: %v", err)
	}

	var last int64
	for i := 0; i < 5; i++ {
		id, err := engine.ScheduleLesson(ctx, "T", "S", int64(100000+i), 3600, 1000)
		if err != nil {
			t.Fatalf("ScheduleLesson %d failed: %v", i, err)
		}
		if id <= last {
			t.Errorf("lesson id %d not greater than previous %d", id, last)
		}
		last = id
	}
}

func TestPayForLesson(t *testing.T) {
	engine, gw := newTestEngine(t)
	ctx := context.Background()

	engine.RegisterAsTeacher(ctx, "T")
	id, _ := engine.ScheduleLesson(ctx, "T", "S", 200000, 3600, 2500)

	t.Run("only the student may pay", func(t *testing.T) {
		if err := engine.PayForLesson(ctx, "T", id); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
		if err := engine.PayForLesson(ctx, "someone-else", id); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("unknown lesson", func(t *testing.T) {
		if err := engine.PayForLesson(ctx, "S", 999); !errors.Is(err, storage.ErrLessonNotFound) {
			t.Errorf("expected ErrLessonNotFound, got %v", err)
		}
	})

	t.Run("gateway failure leaves no state change", func(t *testing.T) {
		gw.failNext = true
		if err := engine.PayForLesson(ctx, "S", id); !errors.Is(err, payments.ErrTransferFailed) {
			t.Errorf("expected ErrTransferFailed, got %v", err)
		}
		lesson, _ := engine.GetLesson(ctx, id)
		if lesson.PaymentStatus != models.PaymentUnpaid {
			t.Errorf("payment status after failed transfer = %s, want unpaid", lesson.PaymentStatus)
		}
		balance, _ := engine.GetTeacherBalance(ctx, "T")
		if balance != 0 {
			t.Errorf("balance after failed transfer = %d, want 0", balance)
		}
	})

	t.Run("successful payment credits teacher", func(t *testing.T) {
		if err := engine.PayForLesson(ctx, "S", id); err != nil {
			t.Fatalf("PayForLesson failed: %v", err)
		}
		balance, _ := engine.GetTeacherBalance(ctx, "T")
		if balance != 2500 {
			t.Errorf("balance = %d, want 2500", balance)
		}
	})

	t.Run("double payment rejected", func(t *testing.T) {
		if err := engine.PayForLesson(ctx, "S", id); !errors.Is(err, ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", err)
		}
		balance, _ := engine.GetTeacherBalance(ctx, "T")
		if balance != 2500 {
			t.Errorf("balance after rejected double payment = %d, want 2500", balance)
		}
	})
}

func TestCompleteLesson(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	engine.RegisterAsTeacher(ctx, "T")
	id, _ := engine.ScheduleLesson(ctx, "T", "S", 200000, 3600, 2500)

	if err := engine.CompleteLesson(ctx, "S", id); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("student completing: expected ErrUnauthorized, got %v", err)
	}

	// Completion does not require payment.
	if err := engine.CompleteLesson(ctx, "T", id); err != nil {
		t.Fatalf("CompleteLesson failed: %v", err)
	}
	lesson, _ := engine.GetLesson(ctx, id)
	if lesson.Status != models.LessonCompleted {
		t.Errorf("status = %s, want completed", lesson.Status)
	}
	if lesson.PaymentStatus != models.PaymentUnpaid {
		t.Errorf("payment status = %s, want unpaid", lesson.PaymentStatus)
	}

	// A cancelled lesson cannot be completed afterwards.
	id2, _ := engine.ScheduleLesson(ctx, "T", "S", 200000, 3600, 2500)
	if err := engine.CancelLesson(ctx, "T", id2, 150000); err != nil {
		t.Fatalf("CancelLesson failed: %v", err)
	}
	if err := engine.CompleteLesson(ctx, "T", id2); !errors.Is(err, ErrInvalidState) {
		t.Errorf("completing cancelled lesson: expected ErrInvalidState, got %v", err)
	}
}

func TestCancelLesson(t *testing.T) {
	tests := []struct {
		name          string
		pay           bool
		startTime     int64
		currentTime   int64
		wantRefund    bool
		wantPayStatus models.PaymentStatus
	}{
		{
			name:          "paid with more than 24h lead refunds",
			pay:           true,
			startTime:     200000,
			currentTime:   100000,
			wantRefund:    true,
			wantPayStatus: models.PaymentRefunded,
		},
		{
			name:          "paid with exactly 24h lead keeps payment",
			pay:           true,
			startTime:     100000 + 86400,
			currentTime:   100000,
			wantRefund:    false,
			wantPayStatus: models.PaymentPaid,
		},
		{
			name:          "paid inside 24h window keeps payment",
			pay:           true,
			startTime:     100000,
			currentTime:   90000,
			wantRefund:    false,
			wantPayStatus: models.PaymentPaid,
		},
		{
			name:          "paid and cancelled after start keeps payment",
			pay:           true,
			startTime:     100000,
			currentTime:   500000,
			wantRefund:    false,
			wantPayStatus: models.PaymentPaid,
		},
		{
			name:          "unpaid cancellation leaves payment status",
			pay:           false,
			startTime:     500000,
			currentTime:   100000,
			wantRefund:    false,
			wantPayStatus: models.PaymentUnpaid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := newTestEngine(t)
			ctx := context.Background()

			engine.RegisterAsTeacher(ctx, "T")
			id, err := engine.ScheduleLesson(ctx, "T", "S", tt.startTime, 3600, 4000)
			if err != nil {
				t.Fatalf("ScheduleLesson failed: %v", err)
			}
			if tt.pay {
				if err := engine.PayForLesson(ctx, "S", id); err != nil {
					t.Fatalf("PayForLesson failed: %v", err)
				}
			}

			if err := engine.CancelLesson(ctx, "S", id, tt.currentTime); err != nil {
				t.Fatalf("CancelLesson failed: %v", err)
			}

			lesson, _ := engine.GetLesson(ctx, id)
			if lesson.Status != models.LessonCancelled {
				t.Errorf("status = %s, want cancelled", lesson.Status)
			}
			if lesson.PaymentStatus != tt.wantPayStatus {
				t.Errorf("payment status = %s, want %s", lesson.PaymentStatus, tt.wantPayStatus)
			}

			balance, _ := engine.GetTeacherBalance(ctx, "T")
			wantBalance := int64(0)
			if tt.pay && !tt.wantRefund {
				wantBalance = 4000
			}
			if balance != wantBalance {
				t.Errorf("balance = %d, want %d", balance, wantBalance)
			}
		})
	}
}

func TestCancelAuthorization(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	engine.RegisterAsTeacher(ctx, "T")
	id, _ := engine.ScheduleLesson(ctx, "T", "S", 200000, 3600, 4000)

	if err := engine.CancelLesson(ctx, "outsider", id, 100000); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	if err := engine.CancelLesson(ctx, "T", id, 100000); err != nil {
		t.Fatalf("teacher cancel failed: %v", err)
	}

	// Cancelling twice hits the forward-only status guard.
	if err := engine.CancelLesson(ctx, "S", id, 100000); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on double cancel, got %v", err)
	}
}

func TestWithdrawBalance(t *testing.T) {
	engine, gw := newTestEngine(t)
	ctx := context.Background()

	t.Run("unregistered caller", func(t *testing.T) {
		if _, err := engine.WithdrawBalance(ctx, "nobody"); !errors.Is(err, ErrNotRegistered) {
			t.Errorf("expected ErrNotRegistered, got %v", err)
		}
	})

	engine.RegisterAsTeacher(ctx, "T")

	t.Run("zero balance", func(t *testing.T) {
		if _, err := engine.WithdrawBalance(ctx, "T"); !errors.Is(err, ErrNothingToWithdraw) {
			t.Errorf("expected ErrNothingToWithdraw, got %v", err)
		}
	})

	id, _ := engine.ScheduleLesson(ctx, "T", "S", 200000, 3600, 3000)
	if err := engine.PayForLesson(ctx, "S", id); err != nil {
		t.Fatalf("PayForLesson failed: %v", err)
	}

	t.Run("gateway failure keeps balance", func(t *testing.T) {
		gw.failNext = true
		if _, err := engine.WithdrawBalance(ctx, "T"); !errors.Is(err, payments.ErrTransferFailed) {
			t.Errorf("expected ErrTransferFailed, got %v", err)
		}
		balance, _ := engine.GetTeacherBalance(ctx, "T")
		if balance != 3000 {
			t.Errorf("balance after failed withdrawal = %d, want 3000", balance)
		}
	})

	t.Run("withdrawal zeroes balance", func(t *testing.T) {
		amount, err := engine.WithdrawBalance(ctx, "T")
		if err != nil {
			t.Fatalf("WithdrawBalance failed: %v", err)
		}
		if amount != 3000 {
			t.Errorf("withdrawn amount = %d, want 3000", amount)
		}
		balance, _ := engine.GetTeacherBalance(ctx, "T")
		if balance != 0 {
			t.Errorf("balance after withdrawal = %d, want 0", balance)
		}
		last := gw.calls[len(gw.calls)-1]
		if last != (transferCall{From: escrowAccount, To: "T", Amount: 3000}) {
			t.Errorf("withdrawal transfer = %+v", last)
		}
	})

	t.Run("second withdrawal fails", func(t *testing.T) {
		if _, err := engine.WithdrawBalance(ctx, "T"); !errors.Is(err, ErrNothingToWithdraw) {
			t.Errorf("expected ErrNothingToWithdraw, got %v", err)
		}
	})
}

func TestPartyLessonQueries(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	engine.RegisterAsTeacher(ctx, "T")
	engine.RegisterAsTeacher(ctx, "U")

	id1, _ := engine.ScheduleLesson(ctx, "T", "S", 100000, 3600, 1000)
	id2, _ := engine.ScheduleLesson(ctx, "T", "S2", 110000, 3600, 1000)
	id3, _ := engine.ScheduleLesson(ctx, "U", "T", 120000, 3600, 1000)

	teacherIDs, err := engine.GetTeacherLessons(ctx, "T")
	if err != nil {
		t.Fatalf("GetTeacherLessons failed: %v", err)
	}
	if len(teacherIDs) != 2 || teacherIDs[0] != id1 || teacherIDs[1] != id2 {
		t.Errorf("teacher lessons for T = %v, want [%d %d]", teacherIDs, id1, id2)
	}

	// T takes a lesson from U as a student; that lesson must only appear in
	// T's student list.
	studentIDs, err := engine.GetStudentLessons(ctx, "T")
	if err != nil {
		t.Fatalf("GetStudentLessons failed: %v", err)
	}
	if len(studentIDs) != 1 || studentIDs[0] != id3 {
		t.Errorf("student lessons for T = %v, want [%d]", studentIDs, id3)
	}

	empty, err := engine.GetStudentLessons(ctx, "unknown")
	if err != nil {
		t.Fatalf("GetStudentLessons failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("lessons for unknown identity = %v, want empty", empty)
	}
}

func TestReRegistrationResetsBalance(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	engine.RegisterAsTeacher(ctx, "T")
	id, _ := engine.ScheduleLesson(ctx, "T", "S", 200000, 3600, 1500)
	if err := engine.PayForLesson(ctx, "S", id); err != nil {
		t.Fatalf("PayForLesson failed: %v", err)
	}

	// Preserved contract: re-registering wipes the accrued balance.
	if err := engine.RegisterAsTeacher(ctx, "T"); err != nil {
		t.Fatalf("RegisterAsTeacher failed: %v", err)
	}
	balance, _ := engine.GetTeacherBalance(ctx, "T")
	if balance != 0 {
		t.Errorf("balance after re-registration = %d, want 0", balance)
	}
}
