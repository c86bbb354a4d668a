// Package engines builds the configured OCR engine from the environment.
package engines

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"casestatus-backend/ocr"
	"casestatus-backend/ocr/gemini"
	"casestatus-backend/ocr/tesseract"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// NewEngineFromEnv creates an engine selected by OCR_ENGINE (default tesseract)
func NewEngineFromEnv(ctx context.Context) (ocr.Engine, error) {
	engineType := ocr.EngineType(os.Getenv("OCR_ENGINE"))
	if engineType == "" {
		engineType = ocr.EngineTesseract
	}

	switch engineType {
	case ocr.EngineTesseract:
		opts := tesseract.Options{Whitelist: os.Getenv("OCR_CHAR_WHITELIST")}
		if langs := os.Getenv("OCR_LANGUAGE"); langs != "" {
			opts.Languages = strings.Split(langs, "+")
		}
		return tesseract.NewEngine(opts), nil
	case ocr.EngineGemini:
		client, err := initGemini(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini: %w", err)
		}
		engine, err := gemini.NewEngine(client, os.Getenv("GEMINI_MODEL"))
		if err != nil {
			return nil, err
		}
		return engine, nil
	default:
		return nil, fmt.Errorf("unsupported OCR engine: %s", engineType)
	}
}

func initGemini(ctx context.Context) (*genai.Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Println("Warning: GEMINI_API_KEY not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	log.Println("Gemini client initialized")
	return client, nil
}
