// fetch-case runs a single case-status lookup from the shell and prints the
// result as JSON. It uses the same environment as the server.
//
// Usage:
//
//	fetch-case --court-complex=<code> --case-type=<code> --case-number=<n> --case-year=<yyyy> [--show-browser]
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"

	"casestatus-backend/browser"
	"casestatus-backend/models"
	"casestatus-backend/ocr/engines"
	"casestatus-backend/service"
	"casestatus-backend/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var fetchFlags struct {
	courtComplex string
	caseType     string
	caseNumber   string
	caseYear     string
	showBrowser  bool
}

var rootCmd = &cobra.Command{
	Use:           "fetch-case",
	Short:         "Look up the status of a district court case",
	RunE:          runFetch,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&fetchFlags.courtComplex, "court-complex", "", "Court complex code (required)")
	f.StringVar(&fetchFlags.caseType, "case-type", "", "Case type code (required)")
	f.StringVar(&fetchFlags.caseNumber, "case-number", "", "Registration number (required)")
	f.StringVar(&fetchFlags.caseYear, "case-year", "", "Registration year (required)")
	f.BoolVar(&fetchFlags.showBrowser, "show-browser", false, "Run Chrome with a visible window")

	for _, name := range []string{"court-complex", "case-type", "case-number", "case-year"} {
		_ = rootCmd.MarkFlagRequired(name)
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: No .env file found, using environment variables")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fetch-case: %v\n", err)
		os.Exit(1)
	}
}

func runFetch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	engine, err := engines.NewEngineFromEnv(ctx)
	if err != nil {
		return fmt.Errorf("init OCR: %w", err)
	}
	artifacts, err := storage.NewStorageFromEnv()
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	browserCfg := browser.ConfigFromEnv()
	if fetchFlags.showBrowser {
		browserCfg.Headless = false
	}

	opts := []service.CaseLookupServiceOption{
		service.WithLauncher(browser.NewChromeLauncher(browserCfg)),
		service.WithOCREngine(engine),
		service.WithArtifactStorage(artifacts),
		service.WithPipelineConfig(service.PipelineConfigFromEnv()),
	}
	if url := os.Getenv("CASE_STATUS_URL"); url != "" {
		opts = append(opts, service.WithSearchURL(url))
	}
	if pattern := os.Getenv("CAPTCHA_PATTERN"); pattern != "" {
		acceptor, err := service.NewPatternAcceptor(pattern)
		if err != nil {
			return err
		}
		opts = append(opts, service.WithCaptchaAcceptor(acceptor))
	}

	svc := service.NewCaseLookupService(opts...)
	result, err := svc.FetchCase(ctx, service.FetchCaseRequest{Query: models.CaseQuery{
		CourtComplex: fetchFlags.courtComplex,
		CaseType:     fetchFlags.caseType,
		CaseNumber:   fetchFlags.caseNumber,
		CaseYear:     fetchFlags.caseYear,
	}})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result.Case)
}
