package font

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/visionex-project/comicex/pkg/textproc"
)

const (
	REGULAR_WEIGHT  = 400
	SEMIBOLD_WEIGHT = 600
	BOLD_WEIGHT     = 700
)

type FontProvider interface {
	// Returns the fonts for the given language code. E.g., "ko"
	GetFontByLanguage(language string) *FontsByFace
}

type fontProvider struct {
	byDirectory map[string]*FontsByFace
	fallback    *FontsByFace
}

type FontFace string

const FontFaceSansSerif FontFace = "SansSerif"

type FontsByFace struct {
	SansSerif FontsByWeight
}

type FontsByWeight struct {
	Regular  *truetype.Font
	SemiBold *truetype.Font
	Bold     *truetype.Font
}

// ByWeight picks the closest font for a numeric weight. E.g., 650 -> SemiBold
func (f *FontsByFace) ByWeight(weight int) *truetype.Font {
	if weight >= BOLD_WEIGHT {
		return f.SansSerif.Bold
	} else if weight >= SEMIBOLD_WEIGHT {
		return f.SansSerif.SemiBold
	}
	return f.SansSerif.Regular
}

// New loads <basePath>/<Script>/SansSerif-{Regular,SemiBold,Bold}.ttf for every script directory
// that exists. Scripts without a directory, or an empty basePath, use the bundled Go fonts.
func New(basePath string) (FontProvider, error) {
	fallback, err := goFonts()
	if err != nil {
		return nil, fmt.Errorf("failed to load Go fonts: %w", err)
	}
	fp := &fontProvider{byDirectory: map[string]*FontsByFace{}, fallback: fallback}
	if basePath == "" {
		return fp, nil
	}

	for _, directory := range []string{"English", "Japanese", "Korean", "Chinese"} {
		path := filepath.Join(basePath, directory)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			log.Printf("No %s fonts in %s, using Go fonts", directory, basePath)
			continue
		}
		fonts, err := loadFontsByFace(path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize %s fonts: %w", directory, err)
		}
		fp.byDirectory[directory] = fonts
	}
	return fp, nil
}

func (fp *fontProvider) GetFontByLanguage(language string) *FontsByFace {
	if fonts, ok := fp.byDirectory[languageDirectory(language)]; ok {
		return fonts
	}
	return fp.fallback
}

func loadFontsByFace(directory string) (*FontsByFace, error) {
	regular, err := parseFontFile(filepath.Join(directory, string(FontFaceSansSerif)+"-Regular.ttf"))
	if err != nil {
		return nil, fmt.Errorf("failed to load regular font: %w", err)
	}
	semiBold, err := parseFontFile(filepath.Join(directory, string(FontFaceSansSerif)+"-SemiBold.ttf"))
	if err != nil {
		return nil, fmt.Errorf("failed to load semiBold font: %w", err)
	}
	bold, err := parseFontFile(filepath.Join(directory, string(FontFaceSansSerif)+"-Bold.ttf"))
	if err != nil {
		return nil, fmt.Errorf("failed to load bold font: %w", err)
	}

	return &FontsByFace{
		SansSerif: FontsByWeight{Regular: regular, SemiBold: semiBold, Bold: bold},
	}, nil
}

func goFonts() (*FontsByFace, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	medium, err := truetype.Parse(gomedium.TTF)
	if err != nil {
		return nil, err
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, err
	}
	return &FontsByFace{SansSerif: FontsByWeight{Regular: regular, SemiBold: medium, Bold: bold}}, nil
}

func parseFontFile(path string) (*truetype.Font, error) {
	fontBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return truetype.Parse(fontBytes)
}

func languageDirectory(language string) string {
	switch textproc.LanguageCode(language) {
	case "ko":
		return "Korean"
	case "ja":
		return "Japanese"
	case "zh":
		return "Chinese"
	default:
		return "English"
	}
}
