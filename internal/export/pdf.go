package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/and161185/gnss-relay/model"
)

// BuildSummaryPDF renders a one page reception report.
func BuildSummaryPDF(sum model.Summary, generated time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, "GNSS Measurement Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generated.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Records: %d", sum.Records))
	pdf.Ln(5)
	if sum.Records > 0 {
		pdf.Cell(0, 6, fmt.Sprintf("Window: %s .. %s", sum.From.UTC().Format(time.RFC3339), sum.To.UTC().Format(time.RFC3339)))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 6, "Constellation", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Records", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Satellites", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Mean C/N0 (dB-Hz)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, c := range sum.Constellations {
		pdf.CellFormat(45, 6, c.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%d", c.Records), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%d", c.Satellites), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 6, fmt.Sprintf("%.1f", c.MeanCn0DbHz), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
