package source

import (
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"
)

// FitzPDFSource renders the pages of a PDF chapter with MuPDF.
type FitzPDFSource struct {
	// A fitz document must not be used from several goroutines at once.
	mu    sync.Mutex
	doc   *fitz.Document
	path  string
	dpi   float64
	pages int
}

func NewFitzPDFSource(path string, dpi float64) (*FitzPDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	return &FitzPDFSource{doc: doc, path: path, dpi: dpi, pages: doc.NumPage()}, nil
}

func (f *FitzPDFSource) PageCount() int {
	return f.pages
}

func (f *FitzPDFSource) Name(index int) string {
	return fmt.Sprintf("page-%04d", index+1)
}

func (f *FitzPDFSource) RenderPage(index int) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	img, err := f.doc.ImageDPI(index, f.dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d of %s: %w", index+1, f.path, err)
	}
	return img, nil
}

func (f *FitzPDFSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc.Close()
}
