// Package filetype detects input formats by magic bytes so the service can
// decide between processing a PDF directly and converting an office
// document first.
package filetype

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind classifies an input file.
type Kind int

const (
	KindUnknown Kind = iota
	KindPDF
	KindConvertible
)

// convertible MIME types handled by the LibreOffice converter.
var convertibleMIME = map[string]bool{}

func init() {
	for _, m := range []string{
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.oasis.opendocument.text",
		"application/rtf",
		"text/rtf",
		"text/plain",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.oasis.opendocument.spreadsheet",
		"application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.oasis.opendocument.presentation",
	} {
		convertibleMIME[m] = true
	}
}

// Detect sniffs the file at path and returns its kind with the detected
// MIME string.
func Detect(path string) (Kind, string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return KindUnknown, "", fmt.Errorf("detect file type: %w", err)
	}
	mime := mt.String()
	// mimetype may append parameters (text/plain; charset=utf-8)
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}

	switch {
	case mime == "application/pdf":
		return KindPDF, mime, nil
	case convertibleMIME[mime]:
		return KindConvertible, mime, nil
	default:
		return KindUnknown, mime, nil
	}
}
