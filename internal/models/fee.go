package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeePolicy is the fixed obligation shared by every student. It is built once
// at start-up and passed by value; its fields cannot be changed afterwards.
type FeePolicy struct {
	totalFee    decimal.Decimal
	classes     []string
	recentLimit int
}

// NewFeePolicy builds a policy. recentLimit <= 0 falls back to 20.
func NewFeePolicy(totalFee decimal.Decimal, classes []string, recentLimit int) FeePolicy {
	if recentLimit <= 0 {
		recentLimit = 20
	}
	return FeePolicy{
		totalFee:    totalFee,
		classes:     append([]string(nil), classes...),
		recentLimit: recentLimit,
	}
}

// TotalFee is the per-student obligation.
func (p FeePolicy) TotalFee() decimal.Decimal {
	return p.totalFee
}

// Classes returns a copy of the accepted grade levels in display order.
func (p FeePolicy) Classes() []string {
	return append([]string(nil), p.classes...)
}

// RecentLimit bounds the recent payments view.
func (p FeePolicy) RecentLimit() int {
	return p.recentLimit
}

// HasClass reports whether class is an accepted grade level. An empty class
// list accepts anything non-empty.
func (p FeePolicy) HasClass(class string) bool {
	if len(p.classes) == 0 {
		return class != ""
	}
	for _, c := range p.classes {
		if c == class {
			return true
		}
	}
	return false
}

// StatusFor derives the settlement status for a cumulative paid amount.
func (p FeePolicy) StatusFor(paid decimal.Decimal) PaymentStatus {
	if paid.GreaterThanOrEqual(p.totalFee) {
		return PaymentStatusCleared
	}
	return PaymentStatusPending
}

// Remaining is max(TotalFee - paid, 0).
func (p FeePolicy) Remaining(paid decimal.Decimal) decimal.Decimal {
	rest := p.totalFee.Sub(paid)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// StudentBalance is a student with the sum of all their payments.
type StudentBalance struct {
	Student
	Paid decimal.Decimal `db:"paid" json:"paid"`
}

// FeeSummary is the fee position of one student.
type FeeSummary struct {
	StudentID    int64           `json:"student_id"`
	TotalFee     decimal.Decimal `json:"total_fee"`
	Paid         decimal.Decimal `json:"paid"`
	Remaining    decimal.Decimal `json:"remaining"`
	PayFullDue   decimal.Decimal `json:"pay_full_due"`
	PaymentCount int             `json:"payment_count"`
	Status       PaymentStatus   `json:"status,omitempty"`
}

// OutstandingBalance is a student who still owes part of the fee.
type OutstandingBalance struct {
	Student Student         `json:"student"`
	Paid    decimal.Decimal `json:"paid"`
	Pending decimal.Decimal `json:"pending"`
}

// LedgerSummary holds institution-wide totals.
type LedgerSummary struct {
	TotalFee            decimal.Decimal `json:"total_fee"`
	PendingOutstanding  decimal.Decimal `json:"pending_outstanding_total"`
	ClearedValue        decimal.Decimal `json:"cleared_value_total"`
	StudentCount        int             `json:"student_count"`
	ClearedStudents     int             `json:"cleared_students"`
	OutstandingStudents int             `json:"outstanding_students"`
	GeneratedAt         time.Time       `json:"generated_at"`
}

// ReceiptContent is everything printed on a receipt.
type ReceiptContent struct {
	Number     string
	IssuedAt   time.Time
	Student    Student
	Payment    Payment
	TotalFee   decimal.Decimal
	PaidToDate decimal.Decimal
	Remaining  decimal.Decimal
	Status     PaymentStatus
}

// Receipt describes a generated receipt artifact.
type Receipt struct {
	PaymentID     int64     `json:"payment_id"`
	ReceiptNumber string    `json:"receipt_number"`
	FileName      string    `json:"file_name"`
	DownloadURL   string    `json:"download_url,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
}
