package formatter

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/malykhin/ragchat-backend/internal/entity"
)

type PDFFormatter struct{}

func NewPDFFormatter() *PDFFormatter {
	return &PDFFormatter{}
}

func (f *PDFFormatter) ContentType() string {
	return "application/pdf"
}

func (f *PDFFormatter) FileExtension() string {
	return "pdf"
}

func (f *PDFFormatter) Format(title string, messages []*entity.Message) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 16)
	pdf.MultiCell(0, 8, tr(title), "", "L", false)
	pdf.Ln(4)

	for _, msg := range messages {
		pdf.SetFont("Arial", "B", 11)
		heading := fmt.Sprintf("%s  ·  %s", roleHeading(msg.Role), msg.CreatedAt.Format("2006-01-02 15:04"))
		pdf.MultiCell(0, 6, tr(heading), "", "L", false)

		pdf.SetFont("Arial", "", 11)
		pdf.MultiCell(0, 5, tr(msg.Content), "", "L", false)
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	return buf.Bytes(), nil
}
