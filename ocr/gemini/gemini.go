package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"casestatus-backend/ocr"

	"github.com/google/generative-ai-go/genai"
)

// DefaultModel is used when no model name is configured
const DefaultModel = "gemini-1.5-flash"

const prompt = "This image is a CAPTCHA containing a short string of letters and digits. " +
	"Reply with exactly the characters shown, with no spaces, punctuation or explanation."

// Engine implements ocr.Engine by asking a Gemini vision model to read the image
type Engine struct {
	client *genai.Client
	model  string
}

// NewEngine creates a Gemini-backed OCR engine
func NewEngine(client *genai.Client, model string) (*Engine, error) {
	if client == nil {
		return nil, errors.New("gemini client not set")
	}
	if model == "" {
		model = DefaultModel
	}
	return &Engine{client: client, model: model}, nil
}

func (e *Engine) Name() string { return string(ocr.EngineGemini) }

// Recognize sends the image to the model and returns its text reply
func (e *Engine) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", ocr.ErrEmptyImage
	}

	model := e.client.GenerativeModel(e.model)
	model.SetTemperature(0)

	resp, err := model.GenerateContent(ctx, genai.ImageData("png", image), genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini recognize: %w", err)
	}
	return responseText(resp), nil
}

// responseText concatenates the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
