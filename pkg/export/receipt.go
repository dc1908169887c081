package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// School is the issuer identity printed in the receipt header.
type School struct {
	Name    string
	Slogan  string
	Address string
	Contact string
}

// Receipt holds the already formatted text of one fee receipt.
type Receipt struct {
	School      School
	Number      string
	IssuedOn    string
	StudentName string
	Class       string
	Contact     string
	MotherName  string
	FatherName  string
	ParentEmail string
	PaymentMode string
	DueDate     string
	PaidDate    string
	Amount      string
	TotalFee    string
	PaidToDate  string
	Remaining   string
	Status      string
}

// ReceiptRenderer lays out a receipt on a half A4 landscape page.
type ReceiptRenderer struct{}

// NewReceiptRenderer constructs a receipt renderer.
func NewReceiptRenderer() *ReceiptRenderer {
	return &ReceiptRenderer{}
}

// Write renders r as PDF into w.
func (ReceiptRenderer) Write(w io.Writer, r Receipt) error {
	if r.Number == "" {
		return fmt.Errorf("receipt number is required")
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: 210, Ht: 148.5},
	})
	pdf.SetMargins(14, 10, 14)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Fee Receipt "+r.Number, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(26, 53, 94)
	pdf.CellFormat(120, 8, r.School.Name, "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 8, "FEE RECEIPT", "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(95, 168, 211)
	pdf.CellFormat(0, 5, r.School.Slogan, "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, "Address: "+r.School.Address, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Contact: "+r.School.Contact, "", 1, "L", false, 0, "")

	rule := func(width float64) {
		pdf.Ln(2)
		pdf.SetDrawColor(26, 53, 94)
		pdf.SetLineWidth(width)
		y := pdf.GetY()
		pdf.Line(14, y, 196, y)
		pdf.Ln(3)
	}
	rule(0.7)

	field := func(label, value string, ln int) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(26, 53, 94)
		pdf.CellFormat(38, 6, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(53, 6, orDash(value), "", ln, "L", false, 0, "")
	}

	field("Student Name:", r.StudentName, 1)
	field("Class:", r.Class, 1)
	field("Contact Number:", r.Contact, 1)
	field("Mother Name:", r.MotherName, 1)
	field("Father Name:", r.FatherName, 1)
	field("Parent Email:", r.ParentEmail, 1)
	field("Receipt No:", r.Number, 0)
	field("Date:", r.IssuedOn, 1)
	rule(0.3)

	field("Payment Mode:", r.PaymentMode, 0)
	field("Total Fee:", "Rs. "+r.TotalFee, 1)
	field("Due Date:", r.DueDate, 0)
	field("Fee Paid:", "Rs. "+r.Amount, 1)
	field("Paid Date:", r.PaidDate, 0)
	field("Paid To Date:", "Rs. "+r.PaidToDate, 1)
	field("", "", 0)
	field("Remaining:", "Rs. "+r.Remaining, 1)
	field("", "", 0)
	field("Status:", r.Status, 1)
	rule(0.3)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}
	return nil
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
