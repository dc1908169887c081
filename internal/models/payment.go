package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used for due and paid dates.
const DateLayout = "2006-01-02"

// PaymentStatus is the settlement state mirrored onto every payment of a student.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusCleared PaymentStatus = "Cleared"
)

// ParseStatusFilter reads the All|Cleared|Pending shorthand. All (or empty)
// yields the zero status, which filters nothing.
func ParseStatusFilter(raw string) (PaymentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all":
		return "", nil
	case "cleared":
		return PaymentStatusCleared, nil
	case "pending":
		return PaymentStatusPending, nil
	default:
		return "", fmt.Errorf("unknown status %q", raw)
	}
}

// PaymentMode is how a payment was made.
type PaymentMode string

const (
	PaymentModeCash   PaymentMode = "Cash"
	PaymentModeOnline PaymentMode = "Online"
	PaymentModeCheque PaymentMode = "Cheque"
	PaymentModeOther  PaymentMode = "Other"
)

// Valid reports whether m is one of the accepted modes.
func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentModeCash, PaymentModeOnline, PaymentModeCheque, PaymentModeOther:
		return true
	}
	return false
}

// Payment is a single fee transaction. Status is derived, never client supplied.
type Payment struct {
	ID          int64           `db:"id" json:"id"`
	StudentID   int64           `db:"student_id" json:"student_id"`
	DueDate     string          `db:"due_date" json:"due_date"`
	PaidDate    string          `db:"paid_date" json:"paid_date"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Status      PaymentStatus   `db:"status" json:"status"`
	ReceiptPath *string         `db:"receipt_path" json:"receipt_path,omitempty"`
	PaymentMode PaymentMode     `db:"payment_mode" json:"payment_mode"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// ReceiptNumber is the human-facing reference of the payment.
func (p Payment) ReceiptNumber() string {
	return FormatReceiptNumber(p.ID)
}

// FormatReceiptNumber zero-pads id to four digits.
func FormatReceiptNumber(id int64) string {
	return fmt.Sprintf("%04d", id)
}

// PaymentDetail is a payment joined with its student.
type PaymentDetail struct {
	Payment
	StudentName string `db:"student_name" json:"student_name"`
	Class       string `db:"class" json:"class"`
	Contact     string `db:"contact" json:"contact"`
	MotherName  string `db:"mother_name" json:"mother_name"`
	FatherName  string `db:"father_name" json:"father_name"`
	ParentPhone string `db:"parent_number" json:"parent_phone"`
	ParentEmail string `db:"parent_email" json:"parent_email"`
}

// Student rebuilds the joined student record.
func (d PaymentDetail) Student() Student {
	return Student{
		ID:          d.StudentID,
		Name:        d.StudentName,
		Class:       d.Class,
		Contact:     d.Contact,
		MotherName:  d.MotherName,
		FatherName:  d.FatherName,
		ParentPhone: d.ParentPhone,
		ParentEmail: d.ParentEmail,
	}
}

// PaymentFilter holds the predicates of the recent and history views. All
// set predicates combine with AND; PaidFrom and PaidTo are inclusive.
type PaymentFilter struct {
	Class    string
	Status   PaymentStatus
	PaidFrom string
	PaidTo   string
	Search   string
	Limit    int
}
