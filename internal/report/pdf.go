// Package report renders assessments as PDF documents and history as spreadsheets.
package report

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/livercare-risk-server/internal/domain"
)

// Disclaimer closes every PDF report.
const Disclaimer = "This report is generated for informational purposes only and should not replace professional medical advice. Always consult with qualified healthcare professionals for diagnosis and treatment decisions."

const (
	fontFamily  = "Helvetica"
	margin      = 20.0
	lineHeight  = 7.0
	valueOffset = 70.0
)

type rgb struct{ r, g, b int }

var (
	brandGreen = rgb{31, 191, 113}
	black      = rgb{0, 0, 0}
	grey       = rgb{100, 100, 100}
	footerGrey = rgb{150, 150, 150}
	riskRed    = rgb{220, 53, 69}
	riskAmber  = rgb{255, 193, 7}
)

// PDF renders the assessment report for input.
func PDF(input domain.PatientInput, assessment *domain.RiskAssessment, generatedAt time.Time) ([]byte, error) {
	return render(input, assessment, generatedAt, true)
}

// PDFFilename names a report generated at t.
func PDFFilename(t time.Time) string {
	return "LiverCare_Report_" + t.Format("20060102_1504") + ".pdf"
}

// ResultMessage is the paragraph explaining the risk band.
func ResultMessage(probability float64, level domain.RiskLevel) string {
	msg := fmt.Sprintf("Based on the provided information, your risk of liver disease is %.1f%%. ", probability)
	switch level {
	case domain.RiskLow:
		return msg + "This indicates a relatively low risk. However, it's important to maintain a healthy lifestyle and regular checkups."
	case domain.RiskMedium:
		return msg + "This indicates a moderate risk. We recommend consulting with a healthcare professional for further evaluation."
	default:
		return msg + "This indicates a higher risk. We strongly recommend consulting with a healthcare professional as soon as possible."
	}
}

// PatientRows returns the label/value pairs of the Patient Information table.
func PatientRows(p domain.PatientInput) [][2]string {
	return [][2]string{
		{"Age:", strconv.FormatFloat(p.Age, 'f', -1, 64) + " years"},
		{"Gender:", choose(p.IsMale(), "Male", "Female")},
		{"BMI (Body Mass Index):", fmt.Sprintf("%.1f", p.BMI)},
		{"Alcohol Consumption:", fmt.Sprintf("%.1f units/week", p.Alcohol)},
		{"Smoking Status:", yesNo(p.Smokes())},
		{"Genetic Risk (Family History):", yesNo(p.HasGeneticRisk())},
		{"Physical Activity:", fmt.Sprintf("%.1f hours/week", p.PhysicalActivity)},
		{"Diabetes:", yesNo(p.HasDiabetes())},
		{"Hypertension:", yesNo(p.HasHypertension())},
		{"Liver Function Test:", fmt.Sprintf("%.1f IU/L", p.LiverFunctionTest)},
	}
}

func render(input domain.PatientInput, assessment *domain.RiskAssessment, generatedAt time.Time, compress bool) ([]byte, error) {
	if assessment == nil {
		return nil, fmt.Errorf("rendering report: no assessment")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(compress)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, 30)
	pdf.AliasNbPages("{nb}")
	pdf.SetTitle("Liver Disease Risk Assessment Report", true)
	pdf.SetCreator("LiverCare AI", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(fontFamily, "", 8)
		setColor(pdf, footerGrey)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb} | LiverCare AI", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	// Header
	pdf.SetFont(fontFamily, "B", 20)
	setColor(pdf, brandGreen)
	pdf.CellFormat(0, 8, "LiverCare AI", "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 16)
	setColor(pdf, black)
	pdf.CellFormat(0, 10, "Liver Disease Risk Assessment Report", "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	setColor(pdf, grey)
	pdf.CellFormat(0, 6, "Generated on: "+generatedAt.Format("January 2, 2006")+" at "+generatedAt.Format("03:04 PM"), "", 1, "L", false, 0, "")
	pdf.Ln(8)

	section(pdf, "Patient Information")
	for _, row := range PatientRows(input) {
		labelValue(pdf, row[0], row[1], black, "")
	}
	pdf.Ln(6)

	section(pdf, "Risk Assessment")
	labelValue(pdf, "Risk Probability:", fmt.Sprintf("%.1f%%", assessment.Probability), brandGreen, "B")
	labelValue(pdf, "Risk Level:", assessment.RiskLevel.Label(), levelColor(assessment.RiskLevel), "B")
	pdf.Ln(3)

	pdf.SetFont(fontFamily, "", 10)
	setColor(pdf, black)
	pdf.MultiCell(0, lineHeight, tr(ResultMessage(assessment.Probability, assessment.RiskLevel)), "", "L", false)
	pdf.Ln(6)

	section(pdf, "Recommendations")
	for i, rec := range assessment.Recommendations {
		pdf.SetX(margin + 5)
		pdf.MultiCell(0, lineHeight+2, tr(fmt.Sprintf("%d. %s", i+1, rec)), "", "L", false)
	}
	pdf.Ln(6)

	pdf.SetFont(fontFamily, "I", 9)
	setColor(pdf, grey)
	pdf.MultiCell(0, lineHeight, tr(Disclaimer), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont(fontFamily, "B", 14)
	setColor(pdf, black)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
}

func labelValue(pdf *gofpdf.Fpdf, label, value string, valueColor rgb, valueStyle string) {
	pdf.SetFont(fontFamily, "", 10)
	setColor(pdf, black)
	pdf.CellFormat(valueOffset, lineHeight, label, "", 0, "L", false, 0, "")
	pdf.SetFont(fontFamily, valueStyle, 10)
	setColor(pdf, valueColor)
	pdf.CellFormat(0, lineHeight, value, "", 1, "L", false, 0, "")
}

func levelColor(level domain.RiskLevel) rgb {
	switch level {
	case domain.RiskHigh:
		return riskRed
	case domain.RiskMedium:
		return riskAmber
	default:
		return brandGreen
	}
}

func setColor(pdf *gofpdf.Fpdf, c rgb) {
	pdf.SetTextColor(c.r, c.g, c.b)
}

func yesNo(b bool) string {
	return choose(b, "Yes", "No")
}

func choose(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}
