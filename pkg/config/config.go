package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/cpu"
	"gopkg.in/yaml.v3"

	"github.com/visionex-project/comicex/pkg/env"
	"github.com/visionex-project/comicex/pkg/merger"
	"github.com/visionex-project/comicex/pkg/utils"
)

// ModelConfig describes one ONNX model asset.
type ModelConfig struct {
	// Path to the .onnx file. E.g., models/bubble/yolov8m_seg-speech-bubble.onnx
	Path string `yaml:"path"`
	// Square input edge of the model. E.g., 1024
	InputSize int `yaml:"inputSize"`
	// Score a prediction must exceed to be kept. E.g., 0.1
	Threshold float64 `yaml:"threshold"`
	// Logs the raw output shape and the decoded result of every run.
	Debug bool `yaml:"debug"`
}

func (m ModelConfig) Validate() error {
	if m.Path == "" {
		return errors.New("model path is required")
	}
	if m.InputSize <= 0 {
		return fmt.Errorf("input size must be positive, got: %d", m.InputSize)
	}
	if m.Threshold < 0 || m.Threshold > 1 {
		return fmt.Errorf("threshold must be within [0, 1], got: %v", m.Threshold)
	}
	return nil
}

type MergeConfig struct {
	// One of "min-area" or "containment".
	Strategy  string  `yaml:"strategy"`
	Threshold float64 `yaml:"threshold"`
}

type TextMaskConfig struct {
	Model    ModelConfig `yaml:"model"`
	PaddingX float64     `yaml:"paddingX"`
	PaddingY float64     `yaml:"paddingY"`
}

type InpaintConfig struct {
	Model ModelConfig `yaml:"model"`
	// Edge of the square tiles sent to the inpainter. Must equal Model.InputSize. E.g., 512
	TileSize int `yaml:"tileSize"`
}

type RecognizerConfig struct {
	// One of "openai", "gemini", "ollama", "vision", "documentai" or "onnx".
	Backend string `yaml:"backend"`
	// Chat model name for LLM backends. E.g., gpt-4o
	Model string `yaml:"model"`
	// ONNX recognizer, only for the "onnx" backend.
	Onnx ModelConfig `yaml:"onnx"`
	// Label file of the ONNX recognizer. E.g., models/recognizer/en_dict.txt
	Labels string `yaml:"labels"`
	// Document AI processor, only for the "documentai" backend.
	DocumentaiProjectID   string `yaml:"documentaiProjectId"`
	DocumentaiLocation    string `yaml:"documentaiLocation"`
	DocumentaiProcessorID string `yaml:"documentaiProcessorId"`
}

type TranslatorConfig struct {
	// One of "openai", "gemini", "ollama" or "none".
	Backend string `yaml:"backend"`
	Model   string `yaml:"model"`
}

type LayoutConfig struct {
	MaxSize float64 `yaml:"maxSize"`
	MinSize float64 `yaml:"minSize"`
	Step    float64 `yaml:"step"`
	// Directory holding <language>/SansSerif-<Weight>.ttf fonts. Empty uses the bundled Go fonts.
	FontDir string `yaml:"fontDir"`
}

type Config struct {
	// Directory of page images or a PDF file.
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
	// E.g., en
	SourceLanguage string `yaml:"sourceLanguage"`
	// E.g., hu
	TargetLanguage string `yaml:"targetLanguage"`
	// Pages processed in parallel. Defaults to the logical CPU count.
	Workers int `yaml:"workers"`
	// Also writes the text-free page to <output>/clean.
	KeepCleaned bool `yaml:"keepCleaned"`
	Debug       bool `yaml:"debug"`
	// Render resolution for PDF input. E.g., 150
	PDFDPI float64 `yaml:"pdfDpi"`

	Merge      MergeConfig      `yaml:"merge"`
	Bubble     ModelConfig      `yaml:"bubble"`
	TextMask   TextMaskConfig   `yaml:"textMask"`
	Inpaint    InpaintConfig    `yaml:"inpaint"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Translator TranslatorConfig `yaml:"translator"`
	Layout     LayoutConfig     `yaml:"layout"`

	// E.g., http://localhost:11434
	OllamaServerURL string `yaml:"ollamaServerUrl"`
	// Bucket that receives before/after page images. Empty disables the mirror.
	Bucket string `yaml:"bucket"`
	// SQLite ledger of processed pages. Empty disables the ledger.
	RecordPath string `yaml:"recordPath"`
}

func Default() Config {
	return Config{
		Output:         "out",
		SourceLanguage: "en",
		TargetLanguage: "hu",
		PDFDPI:         150,
		Merge:          MergeConfig{Strategy: merger.StrategyMinArea, Threshold: 0.9},
		Bubble: ModelConfig{
			Path:      "models/bubble/comic-speech-bubble-detector.onnx",
			InputSize: 1024,
			Threshold: 0.1,
		},
		TextMask: TextMaskConfig{
			Model: ModelConfig{
				Path:      "models/textmask/det.onnx",
				InputSize: 1024,
				Threshold: 0.01,
			},
			PaddingX: 15,
			PaddingY: 15,
		},
		Inpaint: InpaintConfig{
			Model:    ModelConfig{Path: "models/lama/lama_fp32.onnx", InputSize: 512},
			TileSize: 512,
		},
		Recognizer: RecognizerConfig{Backend: "openai", Model: "gpt-4o"},
		Translator: TranslatorConfig{Backend: "openai", Model: "gpt-4o"},
		Layout:     LayoutConfig{MaxSize: 40, MinSize: 8, Step: 1},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path and COMICEX_*
// environment variables, in that order, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvironment(&cfg)

	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnvironment(cfg *Config) {
	cfg.Input = env.StringVariable("COMICEX_INPUT", cfg.Input)
	cfg.Output = env.StringVariable("COMICEX_OUTPUT", cfg.Output)
	cfg.SourceLanguage = env.StringVariable("COMICEX_SOURCE_LANGUAGE", cfg.SourceLanguage)
	cfg.TargetLanguage = env.StringVariable("COMICEX_TARGET_LANGUAGE", cfg.TargetLanguage)
	cfg.Workers = env.IntVariable("COMICEX_WORKERS", cfg.Workers)
	cfg.KeepCleaned = env.BoolVariable("COMICEX_KEEP_CLEANED", cfg.KeepCleaned)
	cfg.Debug = env.BoolVariable("COMICEX_DEBUG", cfg.Debug)
	cfg.Merge.Strategy = env.StringVariable("COMICEX_MERGE_STRATEGY", cfg.Merge.Strategy)
	cfg.Merge.Threshold = env.FloatVariable("COMICEX_MERGE_THRESHOLD", cfg.Merge.Threshold)
	cfg.Bubble.Path = env.StringVariable("COMICEX_BUBBLE_MODEL", cfg.Bubble.Path)
	cfg.TextMask.Model.Path = env.StringVariable("COMICEX_TEXTMASK_MODEL", cfg.TextMask.Model.Path)
	cfg.Inpaint.Model.Path = env.StringVariable("COMICEX_INPAINT_MODEL", cfg.Inpaint.Model.Path)
	cfg.Recognizer.Backend = env.StringVariable("COMICEX_RECOGNIZER", cfg.Recognizer.Backend)
	cfg.Recognizer.Model = env.StringVariable("COMICEX_RECOGNIZER_MODEL", cfg.Recognizer.Model)
	cfg.Translator.Backend = env.StringVariable("COMICEX_TRANSLATOR", cfg.Translator.Backend)
	cfg.Translator.Model = env.StringVariable("COMICEX_TRANSLATOR_MODEL", cfg.Translator.Model)
	cfg.Layout.FontDir = env.StringVariable("COMICEX_FONT_DIR", cfg.Layout.FontDir)
	cfg.OllamaServerURL = env.StringVariable("OLLAMA_SERVER_URL", cfg.OllamaServerURL)
	cfg.Bucket = env.StringVariable("COMICEX_BUCKET", cfg.Bucket)
	cfg.RecordPath = env.StringVariable("COMICEX_RECORD_PATH", cfg.RecordPath)
}

func defaultWorkers() int {
	count, err := cpu.Counts(true)
	if err != nil || count <= 0 {
		return 1
	}
	return count
}

var (
	recognizerBackends = []string{"openai", "gemini", "ollama", "vision", "documentai", "onnx"}
	translatorBackends = []string{"openai", "gemini", "ollama", "none"}
)

func (c Config) Validate() error {
	var errs []error
	if c.Input == "" {
		errs = append(errs, errors.New("input is required"))
	}
	if c.Output == "" {
		errs = append(errs, errors.New("output is required"))
	}
	if c.TargetLanguage == "" {
		errs = append(errs, errors.New("target language is required"))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got: %d", c.Workers))
	}
	if _, err := merger.New(c.Merge.Strategy); err != nil {
		errs = append(errs, err)
	}
	if c.Merge.Threshold <= 0 || c.Merge.Threshold > 1 {
		errs = append(errs, fmt.Errorf("merge threshold must be within (0, 1], got: %v", c.Merge.Threshold))
	}
	if err := c.Bubble.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bubble: %w", err))
	}
	if err := c.TextMask.Model.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("text mask: %w", err))
	}
	if c.TextMask.PaddingX < 0 || c.TextMask.PaddingY < 0 {
		errs = append(errs, errors.New("text mask padding must not be negative"))
	}
	if err := c.Inpaint.Model.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("inpaint: %w", err))
	}
	if c.Inpaint.TileSize <= 0 {
		errs = append(errs, fmt.Errorf("tile size must be positive, got: %d", c.Inpaint.TileSize))
	} else if c.Inpaint.TileSize != c.Inpaint.Model.InputSize {
		errs = append(errs, fmt.Errorf("tile size %d must match the inpaint model input size %d", c.Inpaint.TileSize, c.Inpaint.Model.InputSize))
	}
	if !utils.Contains(recognizerBackends, c.Recognizer.Backend) {
		errs = append(errs, fmt.Errorf("unknown recognizer backend: %s", c.Recognizer.Backend))
	}
	if c.Recognizer.Backend == "onnx" {
		if err := c.Recognizer.Onnx.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("recognizer: %w", err))
		}
		if c.Recognizer.Labels == "" {
			errs = append(errs, errors.New("recognizer labels are required for the onnx backend"))
		}
	}
	if c.Recognizer.Backend == "documentai" && (c.Recognizer.DocumentaiProjectID == "" || c.Recognizer.DocumentaiProcessorID == "") {
		errs = append(errs, errors.New("documentai project and processor are required"))
	}
	if !utils.Contains(translatorBackends, c.Translator.Backend) {
		errs = append(errs, fmt.Errorf("unknown translator backend: %s", c.Translator.Backend))
	}
	if c.Layout.MinSize <= 0 || c.Layout.MaxSize < c.Layout.MinSize {
		errs = append(errs, fmt.Errorf("font sizes must satisfy 0 < min <= max, got: %v..%v", c.Layout.MinSize, c.Layout.MaxSize))
	}
	if c.Layout.Step <= 0 {
		errs = append(errs, fmt.Errorf("font size step must be positive, got: %v", c.Layout.Step))
	}
	if c.PDFDPI <= 0 {
		errs = append(errs, fmt.Errorf("pdf dpi must be positive, got: %v", c.PDFDPI))
	}
	return errors.Join(errs...)
}
