// Package export renders the portfolio as a CV and converts it to PDF.
package export

import "errors"

// ErrPDFDependencyMissing means no Chromium binary is installed, so the PDF
// step cannot run. The HTTP layer maps it to a 503.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")

// Result is a finished export, ready to serve as a download.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}
