package source

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/visionex-project/comicex/pkg/utils"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".tif", ".tiff", ".gif"}

type ImageSource struct {
	paths []string
}

// NewImageSource lists the images of a directory sorted by file name. A file path is a
// single page chapter.
func NewImageSource(path string) (*ImageSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return &ImageSource{paths: []string{path}}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}
	paths := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !utils.Contains(imageExtensions, strings.ToLower(filepath.Ext(entry.Name()))) {
			continue
		}
		paths = append(paths, filepath.Join(path, entry.Name()))
	}
	sort.Strings(paths)

	return &ImageSource{paths: paths}, nil
}

func (s *ImageSource) PageCount() int {
	return len(s.paths)
}

func (s *ImageSource) Name(index int) string {
	return filepath.Base(s.paths[index])
}

func (s *ImageSource) RenderPage(index int) (image.Image, error) {
	f, err := os.Open(s.paths[index])
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.Name(index), err)
	}
	return img, nil
}

func (s *ImageSource) Close() error {
	return nil
}
