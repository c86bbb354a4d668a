package tesseract

import (
	"context"
	"fmt"

	"casestatus-backend/ocr"

	"github.com/otiai10/gosseract/v2"
)

// Options tunes recognition for short CAPTCHA strings
type Options struct {
	Languages []string
	// Whitelist restricts recognized characters when the CAPTCHA alphabet is known.
	Whitelist string
}

// Engine implements ocr.Engine with a local Tesseract install
type Engine struct {
	opts          Options
	clientFactory func() *gosseract.Client
}

// NewEngine constructs a Tesseract-backed OCR engine
func NewEngine(opts Options) *Engine {
	if len(opts.Languages) == 0 {
		opts.Languages = []string{"eng"}
	}
	return &Engine{opts: opts, clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return string(ocr.EngineTesseract) }

// Recognize runs OCR over a single PNG image
func (e *Engine) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", ocr.ErrEmptyImage
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if err := c.SetLanguage(e.opts.Languages...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}
	// CAPTCHAs render as one line of text
	if err := c.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		return "", fmt.Errorf("set page segmentation: %w", err)
	}
	if e.opts.Whitelist != "" {
		if err := c.SetWhitelist(e.opts.Whitelist); err != nil {
			return "", fmt.Errorf("set whitelist: %w", err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}
