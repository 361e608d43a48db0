package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Receipt is the printable view of a recorded payment.
type Receipt struct {
	ReferenceNumber string
	StudentID       string
	StudentName     string
	Semester        string
	AcademicYear    string
	Method          string
	Amount          string
	RemainingDue    string
	ProcessedBy     string
	Remarks         string
	PaidAt          time.Time
}

// ReceiptRenderer renders payment receipts as single-page PDFs.
type ReceiptRenderer struct {
	institution string
}

// NewReceiptRenderer constructs a renderer printing institution in the header.
func NewReceiptRenderer(institution string) *ReceiptRenderer {
	if strings.TrimSpace(institution) == "" {
		institution = "Office of the Registrar"
	}
	return &ReceiptRenderer{institution: institution}
}

// Render creates the PDF for r.
func (e *ReceiptRenderer) Render(r Receipt) ([]byte, error) {
	if r.ReferenceNumber == "" {
		return nil, fmt.Errorf("receipt requires a reference number")
	}
	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetTitle("Receipt "+r.ReferenceNumber, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 8, strings.ToUpper(e.institution), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, "OFFICIAL PAYMENT RECEIPT", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	rows := [][2]string{
		{"Reference No.", r.ReferenceNumber},
		{"Date", r.PaidAt.Format("2006-01-02 15:04")},
		{"Student ID", r.StudentID},
	}
	if r.StudentName != "" {
		rows = append(rows, [2]string{"Student", r.StudentName})
	}
	rows = append(rows,
		[2]string{"Term", strings.TrimSpace(r.Semester + " " + r.AcademicYear)},
		[2]string{"Method", r.Method},
		[2]string{"Amount Paid", r.Amount},
	)
	if r.RemainingDue != "" {
		rows = append(rows, [2]string{"Remaining Balance", r.RemainingDue})
	}
	if r.ProcessedBy != "" {
		rows = append(rows, [2]string{"Processed By", r.ProcessedBy})
	}
	if r.Remarks != "" {
		rows = append(rows, [2]string{"Remarks", r.Remarks})
	}

	for _, row := range rows {
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(40, 7, row[0], "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 7, row[1], "1", 1, "", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "I", 8)
	pdf.MultiCell(0, 4, "This receipt is system generated and valid without signature.", "", "C", false)

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename is the download name for r.
func (r Receipt) Filename() string {
	return "receipt-" + r.ReferenceNumber + ".pdf"
}
