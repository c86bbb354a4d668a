// Package ocr defines the text-recognition contract used to read CAPTCHA images.
// Concrete engines live in subpackages so callers only link the backend they use.
package ocr

import (
	"context"
	"errors"
	"strings"
	"unicode"
)

// ErrEmptyImage is returned when an engine is handed no image data
var ErrEmptyImage = errors.New("empty image")

// Engine converts an image into recognized text
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte) (string, error)
}

// EngineType selects an OCR backend
type EngineType string

const (
	EngineTesseract EngineType = "tesseract"
	EngineGemini    EngineType = "gemini"
)

// StripSpace removes every whitespace rune from text
func StripSpace(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
}
