package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	gcs "cloud.google.com/go/storage"
	vision "cloud.google.com/go/vision/apiv1"
	"github.com/google/generative-ai-go/genai"
	"github.com/ridge/must/v2"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/option"

	"github.com/visionex-project/comicex/comic/impl"
	"github.com/visionex-project/comicex/comic/impl/bubble"
	implDocumentai "github.com/visionex-project/comicex/comic/impl/documentai"
	"github.com/visionex-project/comicex/comic/impl/font"
	yaGenai "github.com/visionex-project/comicex/comic/impl/genai"
	"github.com/visionex-project/comicex/comic/impl/lama"
	"github.com/visionex-project/comicex/comic/impl/model"
	"github.com/visionex-project/comicex/comic/impl/ollama"
	implOpenai "github.com/visionex-project/comicex/comic/impl/openai"
	"github.com/visionex-project/comicex/comic/impl/recognizer"
	"github.com/visionex-project/comicex/comic/impl/record"
	"github.com/visionex-project/comicex/comic/impl/source"
	"github.com/visionex-project/comicex/comic/impl/storage"
	"github.com/visionex-project/comicex/comic/impl/textmask"
	"github.com/visionex-project/comicex/pkg/compositor"
	"github.com/visionex-project/comicex/pkg/config"
	"github.com/visionex-project/comicex/pkg/env"
	"github.com/visionex-project/comicex/pkg/layout"
	"github.com/visionex-project/comicex/pkg/merger"
	yaOpenai "github.com/visionex-project/comicex/pkg/openai"
	"github.com/visionex-project/comicex/pkg/segmenter"
)

// Used to delay the next request when an external API fails.
const BACKOFF_DURATION = time.Second / 2

// Exit status of a batch that finished with some failed pages.
const PAGE_FAILURE_EXIT_CODE = 2

func main() {
	env.Load()

	cfg := must.OK1(config.Load(os.Getenv("COMICEX_CONFIG")))
	if err := run(context.Background(), cfg); err != nil {
		if impl.IsPageFailure(err) {
			log.Printf("Failed to translate some pages of %s: %v", cfg.Input, err)
			os.Exit(PAGE_FAILURE_EXIT_CODE)
		}
		log.Fatalf("Failed to translate %s: %v", cfg.Input, err)
	}
}

func run(ctx context.Context, cfg config.Config) (err error) {
	// Every model and client below is owned by the session and released with it.
	session, err := model.Open()
	if err != nil {
		return fmt.Errorf("failed to open model session: %w", err)
	}
	defer func() {
		err = impl.WithCleanup(err, session.Close())
	}()

	detector, err := bubble.New(session, cfg.Bubble)
	if err != nil {
		return err
	}
	textMask, err := textmask.New(session, cfg.TextMask.Model)
	if err != nil {
		return err
	}

	var inpainter compositor.Inpainter
	if env.BoolVariable("COMICEX_MOCK_INPAINT", false) {
		inpainter = lama.NewMock()
	} else if inpainter, err = lama.New(session, cfg.Inpaint.Model); err != nil {
		return err
	}
	tiledCompositor, err := compositor.New(inpainter, cfg.Inpaint.TileSize)
	if err != nil {
		return err
	}

	bubbleRecognizer, err := newRecognizer(ctx, cfg, session)
	if err != nil {
		return err
	}
	translator, err := newTranslator(ctx, cfg, session)
	if err != nil {
		return err
	}

	fontProvider, err := font.New(cfg.Layout.FontDir)
	if err != nil {
		return err
	}

	pageStorage := impl.Storage{Client: storage.NewLocal(), Output: cfg.Output}
	if cfg.Bucket != "" {
		storageClient := must.OK1(gcs.NewClient(ctx))
		session.Track("storage client", storageClient)
		pageStorage.Mirror = storage.New(storageClient)
		pageStorage.MirrorBucket = cfg.Bucket
	}

	var ledger impl.Ledger
	if cfg.RecordPath != "" {
		recordLedger, err := record.New(cfg.RecordPath)
		if err != nil {
			return err
		}
		session.Track("ledger", recordLedger)
		ledger = recordLedger
	}

	strategy, err := merger.New(cfg.Merge.Strategy)
	if err != nil {
		return err
	}

	src, err := source.New(cfg.Input, cfg.PDFDPI)
	if err != nil {
		return err
	}
	log.Printf("Translating %d pages of %s from %s to %s with %d workers", src.PageCount(), cfg.Input, cfg.SourceLanguage, cfg.TargetLanguage, cfg.Workers)

	pipeline := impl.New(
		[]impl.Detector{detector},
		bubbleRecognizer,
		translator,
		textMask,
		tiledCompositor,
		fontProvider,
		pageStorage,
		ledger,
		impl.Options{
			Merge:          strategy,
			MergeThreshold: cfg.Merge.Threshold,
			Segmenter: segmenter.Segmenter{
				Threshold: float32(cfg.TextMask.Model.Threshold),
				PaddingX:  cfg.TextMask.PaddingX,
				PaddingY:  cfg.TextMask.PaddingY,
			},
			Layout: layout.Engine{
				MaxSize: cfg.Layout.MaxSize,
				MinSize: cfg.Layout.MinSize,
				Step:    cfg.Layout.Step,
			},
			SourceLanguage: cfg.SourceLanguage,
			TargetLanguage: cfg.TargetLanguage,
			Workers:        cfg.Workers,
			KeepCleaned:    cfg.KeepCleaned,
			Debug:          cfg.Debug,
			Input:          cfg.Input,
		},
	)

	results, err := pipeline.Run(ctx, src)
	if err != nil {
		return err
	}
	return impl.Failures(results)
}

func newRecognizer(ctx context.Context, cfg config.Config, session *model.Session) (recognizer.Recognizer, error) {
	switch cfg.Recognizer.Backend {
	case "openai":
		client := yaOpenai.NewAdapter(openai.NewClient(apiKey(ctx, session, "OPENAI_API_KEY", "OPENAI_KEY_SECRET_NAME")))
		return recognizer.NewChat(client, cfg.Recognizer.Model, BACKOFF_DURATION), nil
	case "gemini":
		if err := yaGenai.ValidateModel(cfg.Recognizer.Model); err != nil {
			return nil, err
		}
		genaiClient := must.OK1(genai.NewClient(ctx, option.WithAPIKey(apiKey(ctx, session, "GEMINI_API_KEY", "GEMINI_API_KEY_SECRET_NAME"))))
		session.Track("gemini client", genaiClient)
		return recognizer.NewChat(yaGenai.New(genaiClient), cfg.Recognizer.Model, BACKOFF_DURATION), nil
	case "ollama":
		client, err := ollama.New(cfg.OllamaServerURL, cfg.Recognizer.Model, BACKOFF_DURATION)
		if err != nil {
			return nil, err
		}
		return recognizer.NewOllama(client), nil
	case "vision":
		visionClient := must.OK1(vision.NewImageAnnotatorClient(ctx))
		session.Track("vision client", visionClient)
		return recognizer.NewVision(visionClient, BACKOFF_DURATION), nil
	case "documentai":
		spec := implDocumentai.Spec{
			ProjectID:   cfg.Recognizer.DocumentaiProjectID,
			Location:    cfg.Recognizer.DocumentaiLocation,
			ProcessorID: cfg.Recognizer.DocumentaiProcessorID,
		}
		endpoint := env.StringVariable("DOCUMENTAI_ENDPOINT", fmt.Sprintf("%s-documentai.googleapis.com:443", spec.Location))
		documentaiClient := must.OK1(documentai.NewDocumentProcessorClient(ctx, option.WithEndpoint(endpoint)))
		session.Track("documentai client", documentaiClient)
		return recognizer.NewDocumentai(documentaiClient, spec, BACKOFF_DURATION), nil
	case "onnx":
		return recognizer.NewOnnx(session, cfg.Recognizer.Onnx, cfg.Recognizer.Labels, cfg.SourceLanguage)
	default:
		return nil, fmt.Errorf("unknown recognizer backend: %s", cfg.Recognizer.Backend)
	}
}

func newTranslator(ctx context.Context, cfg config.Config, session *model.Session) (impl.LanguageModelClient, error) {
	switch cfg.Translator.Backend {
	case "openai":
		client := yaOpenai.NewAdapter(openai.NewClient(apiKey(ctx, session, "OPENAI_API_KEY", "OPENAI_KEY_SECRET_NAME")))
		return implOpenai.New(client, cfg.Translator.Model, BACKOFF_DURATION), nil
	case "gemini":
		if err := yaGenai.ValidateModel(cfg.Translator.Model); err != nil {
			return nil, err
		}
		genaiClient := must.OK1(genai.NewClient(ctx, option.WithAPIKey(apiKey(ctx, session, "GEMINI_API_KEY", "GEMINI_API_KEY_SECRET_NAME"))))
		session.Track("gemini client", genaiClient)
		return implOpenai.New(yaGenai.New(genaiClient), cfg.Translator.Model, BACKOFF_DURATION), nil
	case "ollama":
		return ollama.New(cfg.OllamaServerURL, cfg.Translator.Model, BACKOFF_DURATION)
	case "none":
		log.Printf("No translator configured, keeping the recognized text")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown translator backend: %s", cfg.Translator.Backend)
	}
}

// apiKey prefers the key in the environment (for local development) and falls back to GCP
// Secret Manager.
func apiKey(ctx context.Context, session *model.Session, keyVariable string, secretVariable string) string {
	if key := os.Getenv(keyVariable); key != "" {
		return key
	}
	secretmanagerClient := must.OK1(secretmanager.NewClient(ctx))
	session.Track("secret manager client", secretmanagerClient)
	return secretFromGCP(secretmanagerClient, ctx, env.RequiredStringVariable(secretVariable))
}

func secretFromGCP(secretmanagerClient *secretmanager.Client, ctx context.Context, secretName string) string {
	secretValue := must.OK1(secretmanagerClient.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
			env.RequiredStringVariable("GCP_PROJECT_ID"),
			secretName,
		),
	}))
	return string(secretValue.Payload.Data)
}
