package prescription

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
)

const notSpecified = "Not specified"

// MedicationLine is one prescribed drug.
type MedicationLine struct {
	Name      string
	Dosage    string
	Frequency string
}

// Sheet holds everything printed on a prescription.
type Sheet struct {
	PatientName string
	CustomID    string
	Age         *int
	Gender      string
	Contact     string
	DoctorName  string
	IssuedAt    time.Time
	Diagnosis   string
	Medications []MedicationLine
}

// Render writes sheet as a single page A4 PDF.
func Render(w io.Writer, sheet Sheet) error {
	return newDocument(sheet).Output(w)
}

func newDocument(s Sheet) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetTitle("Medical Prescription", false)
	pdf.SetCreationDate(s.IssuedAt)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, "Medical Prescription", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	age := notSpecified
	if s.Age != nil {
		age = fmt.Sprintf("%d", *s.Age)
	}
	gender := s.Gender
	if gender == "" {
		gender = notSpecified
	}

	pdf.SetFont("Helvetica", "", 12)
	for _, line := range []string{
		"Patient: " + s.PatientName,
		"ID: " + s.CustomID,
		"Age: " + age,
		"Gender: " + gender,
		"Contact: " + s.Contact,
	} {
		pdf.CellFormat(0, 7, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.CellFormat(0, 7, "Prescribing Doctor: Dr. "+s.DoctorName, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, "Date: "+s.IssuedAt.Format("02 Jan 2006"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	if s.Diagnosis != "" {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, "Diagnosis:", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.MultiCell(0, 7, s.Diagnosis, "", "L", false)
		pdf.Ln(4)
	}

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Prescribed Medications:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	if len(s.Medications) == 0 {
		pdf.CellFormat(0, 7, "No medications prescribed", "", 1, "L", false, 0, "")
	}
	for _, m := range s.Medications {
		pdf.MultiCell(0, 7, fmt.Sprintf("- %s: %s (%s)", m.Name, m.Dosage, m.Frequency), "", "L", false)
	}

	pdf.Ln(20)
	y := pdf.GetY()
	pdf.Line(130, y, 190, y)
	pdf.SetXY(130, y+2)
	pdf.CellFormat(60, 7, "Doctor Signature", "", 1, "C", false, 0, "")

	return pdf
}
