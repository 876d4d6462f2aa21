// Package pdfout assembles output PDF files from retained source pages
// using pdfcpu's page collection.
package pdfout

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/scanprep/internal/page"
)

// WriteError reports a destination problem while emitting an output
// document. It is fatal for the run.
type WriteError struct {
	Dest string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Dest, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Writer emits output documents for one source PDF.
type Writer struct {
	srcPath string
}

// New returns a writer reading pages from the PDF at srcPath.
func New(srcPath string) *Writer { return &Writer{srcPath: srcPath} }

// OutputName returns the file name for the i-th output document, following
// the sequential `{i}-{base}` convention.
func OutputName(i int, base string) string {
	return fmt.Sprintf("%d-%s", i, base)
}

// WriteFile assembles doc into a new PDF at dest.
func (w *Writer) WriteFile(doc page.OutputDocument, dest string) error {
	if err := api.CollectFile(w.srcPath, dest, selectors(doc.Pages), nil); err != nil {
		return &WriteError{Dest: dest, Err: err}
	}
	log.Debug().Str("dest", dest).Ints("pages", doc.Pages).Msg("wrote output document")
	return nil
}

// WriteTo assembles doc into out, used for the stdout destination.
func (w *Writer) WriteTo(doc page.OutputDocument, out io.Writer) error {
	f, err := os.Open(w.srcPath)
	if err != nil {
		return &WriteError{Dest: "-", Err: err}
	}
	defer f.Close()

	if err := api.Collect(f, out, selectors(doc.Pages), nil); err != nil {
		return &WriteError{Dest: "-", Err: err}
	}
	return nil
}

// EmitPlan writes every document in plan into outDir, named after base, and
// returns the written paths. The directory is created if missing. Nothing is
// written for an empty plan.
func (w *Writer) EmitPlan(plan page.Plan, outDir, base string) ([]string, error) {
	if len(plan.Documents) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, &WriteError{Dest: outDir, Err: err}
	}

	paths := make([]string, 0, len(plan.Documents))
	for i, doc := range plan.Documents {
		dest := filepath.Join(outDir, OutputName(i, base))
		if err := w.WriteFile(doc, dest); err != nil {
			return paths, err
		}
		paths = append(paths, dest)
	}

	log.Info().Int("documents", len(paths)).Str("dir", outDir).Msg("emitted output documents")
	return paths, nil
}

// selectors converts 0-based page indices to pdfcpu's 1-based selectors.
func selectors(pages []int) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = fmt.Sprintf("%d", p+1)
	}
	return out
}
