package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"
)

// Certificate holds what is printed on a completion certificate.
type Certificate struct {
	Heading  string // e.g. "Certificate of Completion"
	Subject  string // e.g. "lesson", "SCORM package"
	Title    string // of the lesson or package
	Name     string // of the recipient
	IssuedAt time.Time
	CertID   string
}

func LessonCertificate(cert Certification, name, lessonTitle string) Certificate {
	return Certificate{
		Heading:  "Certificate of Completion",
		Subject:  "lesson",
		Title:    lessonTitle,
		Name:     name,
		IssuedAt: cert.IssuedAt,
		CertID:   cert.CertID,
	}
}

func ScormCertificate(cert ScormCertification, name, packageTitle string) Certificate {
	return Certificate{
		Heading:  "SCORM Completion Certificate",
		Subject:  "SCORM package",
		Title:    packageTitle,
		Name:     name,
		IssuedAt: cert.IssuedAt,
		CertID:   cert.CertID,
	}
}

// WritePDF renders the certificate as a one page A4 PDF.
func (c Certificate) WritePDF(w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("") // core fonts are cp1252
	pdf.SetTitle(c.Heading, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 20, tr(c.Heading), "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Presented to: %s", c.Name),
		fmt.Sprintf("For successfully completing %s:", c.Subject),
		fmt.Sprintf("    %q", c.Title),
		fmt.Sprintf("Issued on: %s", c.IssuedAt.UTC().Format("2006-01-02")),
		fmt.Sprintf("Certificate ID: %s", c.CertID),
	}
	for _, line := range lines {
		pdf.CellFormat(0, 8, tr(line), "", 1, "L", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return errors.Wrap(err, "rendering certificate")
	}
	return nil
}
