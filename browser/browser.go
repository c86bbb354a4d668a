package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var (
	ErrNavigation      = errors.New("navigation failed")
	ErrElementNotFound = errors.New("element not found")
	ErrControlDisabled = errors.New("control is disabled")
	ErrLaunch          = errors.New("failed to launch browser")
)

// DefaultUserAgent is presented to the target site instead of the headless default
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36"

// Response is a network response observed by a page
type Response struct {
	URL    string
	Status int64
}

// OK reports whether the response status is 2xx
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// ResponseMatcher selects the network response a caller is waiting for
type ResponseMatcher func(url string, status int64) bool

// Page is the set of DOM operations the lookup pipeline needs from a browser tab.
// Selectors are CSS query selectors. Blocking calls honor ctx deadlines.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	// WaitReady blocks until selector matches a node, visible or not.
	WaitReady(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	// ClickJS clicks through element.click(), bypassing hit testing.
	ClickJS(ctx context.Context, selector string) error
	// Select sets the value of a <select>. Returns ErrControlDisabled for a disabled control.
	Select(ctx context.Context, selector, value string) error
	Type(ctx context.Context, selector, text string) error
	IsDisabled(ctx context.Context, selector string) (bool, error)
	RemoveAttribute(ctx context.Context, selector, attr string) error
	// Screenshot returns a PNG capture of the first element matching selector.
	Screenshot(ctx context.Context, selector string) ([]byte, error)
	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)
	// ExpectResponse subscribes to the first network response accepted by match.
	// The subscription is active on return; stop releases it.
	ExpectResponse(match ResponseMatcher) (responses <-chan Response, stop func())
}

// OptionSelector returns a selector for the <option> of selectSelector with the given value
func OptionSelector(selectSelector, value string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value)
	return fmt.Sprintf(`%s option[value="%s"]`, selectSelector, escaped)
}

// Launcher opens isolated browser sessions
type Launcher interface {
	Open(ctx context.Context) (*Session, error)
}

// Config holds browser launch settings
type Config struct {
	ExecPath     string
	UserAgent    string
	Headless     bool
	WindowWidth  int
	WindowHeight int
}

// DefaultConfig returns the launch settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		UserAgent:    DefaultUserAgent,
		Headless:     true,
		WindowWidth:  1366,
		WindowHeight: 768,
	}
}

// ConfigFromEnv reads browser settings from environment variables
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.ExecPath = os.Getenv("CHROME_PATH")
	if ua := os.Getenv("BROWSER_USER_AGENT"); ua != "" {
		cfg.UserAgent = ua
	}
	if v := os.Getenv("BROWSER_HEADLESS"); v != "" {
		if headless, err := strconv.ParseBool(v); err == nil {
			cfg.Headless = headless
		}
	}
	return cfg
}
