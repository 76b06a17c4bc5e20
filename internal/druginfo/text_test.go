package druginfo

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
)

func samplePDF(t *testing.T, lines ...string) []byte {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.AddPage()
	doc.SetFont("Helvetica", "", 12)
	for _, l := range lines {
		doc.CellFormat(0, 8, l, "", 1, "L", false, 0, "")
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	return buf.Bytes()
}

func TestExtractText(t *testing.T) {
	data := samplePDF(t, "Amoxicillin 500 mg twice daily", "Metformin 500 mg")

	text, err := ExtractText(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Amoxicillin", "Metformin"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in extracted text %q", want, text)
		}
	}
}

func TestExtractText_NotAPDF(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("hello"), []byte("%PDF-1.4\ngarbage")} {
		if _, err := ExtractText(data); !errors.Is(err, ErrUnreadablePDF) {
			t.Errorf("expected ErrUnreadablePDF for %q, got %v", data, err)
		}
	}
}
