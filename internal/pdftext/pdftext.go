// Package pdftext extracts plain text from PDF documents for the resume
// review operation.
package pdftext

import (
	"bytes"
	"errors"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNotPDF is returned when the payload does not carry a PDF header.
var ErrNotPDF = errors.New("file is not a PDF")

// pdfMagic is the mandatory header of every PDF document.
var pdfMagic = []byte("%PDF-")

// IsPDF reports whether data starts with the PDF magic bytes.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// Extract returns the concatenated plain text of every page in the document.
// The payload is validated by header first so obvious non-PDFs fail with
// ErrNotPDF instead of a parser error.
func Extract(data []byte) (string, error) {
	if !IsPDF(data) {
		return "", ErrNotPDF
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip unreadable pages; partial text still makes a useful review.
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}
