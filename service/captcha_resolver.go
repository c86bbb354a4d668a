package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"time"
	"unicode/utf8"

	"casestatus-backend/browser"
	"casestatus-backend/models"
	"casestatus-backend/ocr"
	"casestatus-backend/storage"

	"github.com/google/uuid"
)

const (
	StepCaptureCaptcha = "capture_captcha"
	StepRefreshCaptcha = "refresh_captcha"

	captchaArtifactName = "captcha.png"
)

// Acceptor decides whether recognized text plausibly answers the CAPTCHA
type Acceptor interface {
	Accept(text string) bool
	String() string
}

// MinLengthAcceptor accepts any answer with at least MinLength characters.
// The site's CAPTCHA alphabet is unknown, so length stands in for completeness.
type MinLengthAcceptor struct {
	MinLength int
}

func (a MinLengthAcceptor) Accept(text string) bool {
	return utf8.RuneCountInString(text) >= a.MinLength
}

func (a MinLengthAcceptor) String() string {
	return fmt.Sprintf("length >= %d", a.MinLength)
}

// PatternAcceptor accepts answers fully matching a regular expression
type PatternAcceptor struct {
	Pattern *regexp.Regexp
}

// NewPatternAcceptor compiles pattern anchored at both ends
func NewPatternAcceptor(pattern string) (PatternAcceptor, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return PatternAcceptor{}, fmt.Errorf("invalid CAPTCHA pattern: %w", err)
	}
	return PatternAcceptor{Pattern: re}, nil
}

func (a PatternAcceptor) Accept(text string) bool {
	return a.Pattern.MatchString(text)
}

func (a PatternAcceptor) String() string {
	return "matches " + a.Pattern.String()
}

// DefaultAcceptor is used when no acceptor is configured
var DefaultAcceptor Acceptor = MinLengthAcceptor{MinLength: 4}

// CaptchaResolver reads the CAPTCHA with OCR, refreshing it on misreads
type CaptchaResolver struct {
	session   *browser.Session
	engine    ocr.Engine
	artifacts storage.Storage
	acceptor  Acceptor
	selectors Selectors
	cfg       PipelineConfig
	lookupID  uuid.UUID
	logPrefix string

	// onAttempt observes every OCR pass.
	onAttempt func(models.CaptchaAttempt)

	artifactPath string
	attempts     int
}

// NewCaptchaResolver creates a resolver. artifacts may be nil, in which case
// captures are kept in memory only.
func NewCaptchaResolver(session *browser.Session, engine ocr.Engine, artifacts storage.Storage, acceptor Acceptor, selectors Selectors, cfg PipelineConfig, lookupID uuid.UUID) *CaptchaResolver {
	if acceptor == nil {
		acceptor = DefaultAcceptor
	}
	return &CaptchaResolver{
		session:   session,
		engine:    engine,
		artifacts: artifacts,
		acceptor:  acceptor,
		selectors: selectors,
		cfg:       cfg,
		lookupID:  lookupID,
	}
}

// Attempts returns the number of OCR passes made so far
func (r *CaptchaResolver) Attempts() int {
	return r.attempts
}

// Resolve returns the first accepted OCR answer within CaptchaMaxAttempts passes
func (r *CaptchaResolver) Resolve(ctx context.Context) (string, error) {
	if err := r.session.WaitForElement(ctx, r.selectors.CaptchaImage, r.cfg.StepTimeout); err != nil {
		if ctx.Err() != nil {
			return "", newPipelineError(KindCanceled, StepCaptureCaptcha, err)
		}
		return "", newPipelineError(KindCaptchaNotFound, StepCaptureCaptcha, err)
	}

	image, err := r.capture(ctx)
	if err != nil {
		return "", err
	}

	maxAttempts := r.cfg.CaptchaMaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for i := 1; i <= maxAttempts; i++ {
		text, err := r.engine.Recognize(ctx, image)
		r.attempts = i
		if ctx.Err() != nil {
			return "", newPipelineError(KindCanceled, StepCaptureCaptcha, ctx.Err())
		}
		if err != nil {
			log.Printf("%sWarning: OCR attempt %d/%d failed: %v", r.logPrefix, i, maxAttempts, err)
		}
		text = ocr.StripSpace(text)
		log.Printf("%sOCR attempt %d/%d: %q", r.logPrefix, i, maxAttempts, text)

		if r.onAttempt != nil {
			r.onAttempt(models.CaptchaAttempt{ImagePath: r.artifactPath, RecognizedText: text, AttemptIndex: i})
		}

		if err == nil && r.acceptor.Accept(text) {
			return text, nil
		}
		if i == maxAttempts {
			break
		}

		log.Printf("%sOCR answer rejected (want %s), refreshing CAPTCHA", r.logPrefix, r.acceptor)
		if image, err = r.refresh(ctx); err != nil {
			return "", err
		}
	}

	pe := newPipelineError(KindCaptchaUnsolved, StepCaptureCaptcha, fmt.Errorf("no acceptable OCR answer after %d attempts", maxAttempts))
	pe.Attempts = maxAttempts
	return "", pe
}

// refresh asks the site for a new CAPTCHA, waits for it to render and re-captures it
func (r *CaptchaResolver) refresh(ctx context.Context) ([]byte, error) {
	clickCtx, cancel := context.WithTimeout(ctx, r.cfg.FieldTimeout)
	err := r.session.Page.Click(clickCtx, r.selectors.CaptchaRefresh)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, newPipelineError(KindCanceled, StepRefreshCaptcha, err)
		}
		return nil, newPipelineError(KindElementNotFound, StepRefreshCaptcha, err)
	}

	select {
	case <-ctx.Done():
		return nil, newPipelineError(KindCanceled, StepRefreshCaptcha, ctx.Err())
	case <-time.After(r.cfg.CaptchaRefreshDelay):
	}

	return r.capture(ctx)
}

// capture screenshots the CAPTCHA element and stores it as the lookup's artifact,
// replacing the previous capture. OCR reads the stored copy; the in-memory
// screenshot is used only when no storage is configured or it fails.
func (r *CaptchaResolver) capture(ctx context.Context) ([]byte, error) {
	shotCtx, cancel := context.WithTimeout(ctx, r.cfg.FieldTimeout)
	image, err := r.session.Page.Screenshot(shotCtx, r.selectors.CaptchaImage)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, newPipelineError(KindCanceled, StepCaptureCaptcha, err)
		}
		return nil, newPipelineError(KindCaptchaNotFound, StepCaptureCaptcha, err)
	}
	if len(image) == 0 {
		return nil, newPipelineError(KindCaptchaNotFound, StepCaptureCaptcha, errors.New("empty CAPTCHA capture"))
	}

	if r.artifacts == nil {
		return image, nil
	}

	path, err := r.artifacts.Put(ctx, r.lookupID, captchaArtifactName, bytes.NewReader(image))
	if err != nil {
		log.Printf("%sWarning: failed to store CAPTCHA capture: %v", r.logPrefix, err)
		return image, nil
	}
	r.artifactPath = path

	stored, err := r.readArtifact(ctx)
	if err != nil {
		log.Printf("%sWarning: failed to read back CAPTCHA capture %s: %v", r.logPrefix, path, err)
		return image, nil
	}
	return stored, nil
}

func (r *CaptchaResolver) readArtifact(ctx context.Context) ([]byte, error) {
	rc, err := r.artifacts.Get(ctx, r.artifactPath)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ocr.ErrEmptyImage
	}
	return data, nil
}

// Cleanup removes the stored CAPTCHA capture, if any
func (r *CaptchaResolver) Cleanup(ctx context.Context) {
	if r.artifacts == nil || r.artifactPath == "" {
		return
	}
	if err := r.artifacts.Delete(ctx, r.artifactPath); err != nil {
		log.Printf("%sWarning: failed to delete CAPTCHA capture %s: %v", r.logPrefix, r.artifactPath, err)
		return
	}
	r.artifactPath = ""
}
