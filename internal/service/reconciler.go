package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/fee-ledger-api/internal/models"
)

// statusLedger is the slice of the payment store the reconciler writes through.
// It is normally bound to the transaction of the mutation being reconciled.
type statusLedger interface {
	SumByStudent(ctx context.Context, studentID int64) (decimal.Decimal, int, error)
	SetStudentStatus(ctx context.Context, studentID int64, status models.PaymentStatus) (int64, error)
}

// Reconciliation is the outcome of one reconcile pass.
type Reconciliation struct {
	StudentID int64
	Paid      decimal.Decimal
	Status    models.PaymentStatus
	Changed   int64
}

// StatusReconciler re-derives the settlement status of a student.
type StatusReconciler interface {
	Reconcile(ctx context.Context, ledger statusLedger, studentID int64) (Reconciliation, error)
}

// PaymentStatusReconciler mirrors the derived status onto every payment row
// of the student.
type PaymentStatusReconciler struct {
	policy models.FeePolicy
}

// NewPaymentStatusReconciler builds a reconciler for policy.
func NewPaymentStatusReconciler(policy models.FeePolicy) *PaymentStatusReconciler {
	return &PaymentStatusReconciler{policy: policy}
}

// Reconcile sums the student's payments and writes Cleared when the sum meets
// the total fee, Pending otherwise. Running it again without an intervening
// write changes nothing.
func (r *PaymentStatusReconciler) Reconcile(ctx context.Context, ledger statusLedger, studentID int64) (Reconciliation, error) {
	paid, _, err := ledger.SumByStudent(ctx, studentID)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("reconcile student %d: %w", studentID, err)
	}
	status := r.policy.StatusFor(paid)
	changed, err := ledger.SetStudentStatus(ctx, studentID, status)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("reconcile student %d: %w", studentID, err)
	}
	return Reconciliation{StudentID: studentID, Paid: paid, Status: status, Changed: changed}, nil
}
