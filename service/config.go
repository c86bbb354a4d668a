package service

import (
	"log"
	"os"
	"strconv"
	"time"
)

// DefaultSearchURL is the case-status search form
const DefaultSearchURL = "https://northeast.dcourts.gov.in/case-status-search-by-case-number/"

// DefaultResponseURLPattern identifies the search endpoint response after submit
const DefaultResponseURLPattern = "case-status-search"

// PipelineConfig holds the timing and retry policy of a lookup
type PipelineConfig struct {
	NavigationTimeout time.Duration
	// StepTimeout bounds waits for controls that load with the page.
	StepTimeout time.Duration
	// FieldTimeout bounds waits for controls revealed by an earlier step.
	FieldTimeout        time.Duration
	CaptchaMaxAttempts  int
	CaptchaRefreshDelay time.Duration
	SubmissionTimeout   time.Duration
	ResultTimeout       time.Duration
}

// DefaultPipelineConfig returns the timings that work against the live site
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		NavigationTimeout:   90 * time.Second,
		StepTimeout:         30 * time.Second,
		FieldTimeout:        10 * time.Second,
		CaptchaMaxAttempts:  3,
		CaptchaRefreshDelay: 3 * time.Second,
		SubmissionTimeout:   90 * time.Second,
		ResultTimeout:       30 * time.Second,
	}
}

// PipelineConfigFromEnv overrides defaults from environment variables.
// Invalid values are logged and ignored.
func PipelineConfigFromEnv() PipelineConfig {
	cfg := DefaultPipelineConfig()
	envDuration("NAVIGATION_TIMEOUT", &cfg.NavigationTimeout)
	envDuration("STEP_TIMEOUT", &cfg.StepTimeout)
	envDuration("FIELD_TIMEOUT", &cfg.FieldTimeout)
	envDuration("CAPTCHA_REFRESH_DELAY", &cfg.CaptchaRefreshDelay)
	envDuration("SUBMISSION_TIMEOUT", &cfg.SubmissionTimeout)
	envDuration("RESULT_TIMEOUT", &cfg.ResultTimeout)

	if v := os.Getenv("CAPTCHA_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			log.Printf("Warning: ignoring invalid CAPTCHA_MAX_ATTEMPTS %q", v)
		} else {
			cfg.CaptchaMaxAttempts = n
		}
	}
	return cfg
}

func envDuration(key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("Warning: ignoring invalid %s %q", key, v)
		return
	}
	*dst = d
}

// Selectors locates the controls of the case-status form and results page
type Selectors struct {
	ComplexModeRadio string
	CourtComplex     string
	CaseType         string
	CaseNumber       string
	CaseYear         string
	CaptchaImage     string
	CaptchaRefresh   string
	CaptchaInput     string
	Submit           string
	CaseTitle        string
	CaseStatus       string
	HearingDate      string
	OrderJudgment    string
}

// DefaultSelectors returns the selectors of the district-court search form
func DefaultSelectors() Selectors {
	return Selectors{
		ComplexModeRadio: "#chkYes",
		CourtComplex:     "#est_code",
		CaseType:         "#case_type",
		CaseNumber:       "#reg_no",
		CaseYear:         "#reg_year",
		CaptchaImage:     "#siwp_captcha_image_0",
		CaptchaRefresh:   ".captcha-refresh-btn",
		CaptchaInput:     "#siwp_captcha_value_0",
		Submit:           `input[name="submit"]`,
		CaseTitle:        ".case-title",
		CaseStatus:       ".case-status",
		HearingDate:      ".hearing-date",
		OrderJudgment:    ".order-judgment",
	}
}
