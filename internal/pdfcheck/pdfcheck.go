// Package pdfcheck validates a resume file locally before it is
// uploaded, so an unreadable or oversized file fails fast instead of
// burning a round trip and a parsing call.
package pdfcheck

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"
)

// MaxSize caps accepted resume files at 10 MiB.
const MaxSize = 10 << 20

var (
	ErrNotPDF   = errors.New("pdfcheck: not a pdf file")
	ErrEmpty    = errors.New("pdfcheck: pdf has no pages")
	ErrTooLarge = errors.New("pdfcheck: file exceeds size limit")
)

// Info describes a validated resume file.
type Info struct {
	Pages int
	Size  int64
}

// CheckFile validates the PDF at path.
func CheckFile(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open resume: %w", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return Info{}, fmt.Errorf("stat resume: %w", err)
	}
	return Check(f, st.Size())
}

// Check validates PDF content supplied as a random-access reader.
// The parser panics on some malformed inputs, so the parse is fenced
// and reported as ErrNotPDF.
func Check(r io.ReaderAt, size int64) (info Info, err error) {
	defer func() {
		if p := recover(); p != nil {
			info, err = Info{}, fmt.Errorf("%w: %v", ErrNotPDF, p)
		}
	}()
	if size > MaxSize {
		return Info{}, ErrTooLarge
	}
	var magic [5]byte
	if _, err := r.ReadAt(magic[:], 0); err != nil {
		return Info{}, ErrNotPDF
	}
	if !bytes.Equal(magic[:], []byte("%PDF-")) {
		return Info{}, ErrNotPDF
	}
	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	pages := doc.NumPage()
	if pages < 1 {
		return Info{}, ErrEmpty
	}
	return Info{Pages: pages, Size: size}, nil
}
