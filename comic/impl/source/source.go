package source

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
)

// Source yields the pages of a chapter in reading order.
type Source interface {
	PageCount() int
	// Name identifies a page in logs. E.g., "001.jpg"
	Name(index int) string
	RenderPage(index int) (image.Image, error)
	Close() error
}

// New opens a PDF file, an image directory or a single image.
func New(path string, dpi float64) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	if !info.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
		return NewFitzPDFSource(path, dpi)
	}
	return NewImageSource(path)
}
