package pdftext

import (
	"errors"
	"testing"
)

func TestIsPDF(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want bool
	}{
		{"pdf header", []byte("%PDF-1.7\n..."), true},
		{"header only", []byte("%PDF-"), true},
		{"png header", []byte{0x89, 'P', 'N', 'G'}, false},
		{"plain text", []byte("resume.txt contents"), false},
		{"empty", nil, false},
		{"truncated magic", []byte("%PD"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsPDF(tc.data); got != tc.want {
				t.Fatalf("IsPDF = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestExtract_NonPDFFailsFast(t *testing.T) {
	_, err := Extract([]byte("just some text"))
	if !errors.Is(err, ErrNotPDF) {
		t.Fatalf("expected ErrNotPDF, got %v", err)
	}
}

func TestExtract_CorruptPDFReturnsError(t *testing.T) {
	// Valid magic, garbage body: the parser must surface an error rather
	// than panic or hang.
	if _, err := Extract([]byte("%PDF-1.4 not really a document")); err == nil {
		t.Fatal("expected parse error for corrupt document")
	}
}
