package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ChromeLauncher starts a fresh Chrome process per session through chromedp
type ChromeLauncher struct {
	cfg Config
}

// NewChromeLauncher creates a launcher with the given settings
func NewChromeLauncher(cfg Config) *ChromeLauncher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &ChromeLauncher{cfg: cfg}
}

func (l *ChromeLauncher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("proxy-server", "direct://"),
		chromedp.Flag("proxy-bypass-list", "*"),
		chromedp.UserAgent(l.cfg.UserAgent),
	)
	if l.cfg.WindowWidth > 0 && l.cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(l.cfg.WindowWidth, l.cfg.WindowHeight))
	}
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	return opts
}

// Open launches the browser and attaches to its first tab
func (l *ChromeLauncher) Open(ctx context.Context) (*Session, error) {
	// The browser outlives individual calls, so it hangs off a background
	// context and is torn down only by Session.Close.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	page := &chromePage{ctx: browserCtx}
	chromedp.ListenTarget(browserCtx, page.onEvent)

	stop := context.AfterFunc(ctx, browserCancel)
	err := chromedp.Run(browserCtx, network.Enable())
	stop()
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	closer := func() error {
		err := chromedp.Cancel(browserCtx)
		browserCancel()
		allocCancel()
		if err != nil {
			log.Printf("Warning: browser did not shut down cleanly: %v", err)
		}
		return err
	}
	return NewSession(page, closer), nil
}

type responseSub struct {
	match ResponseMatcher
	ch    chan Response
}

// chromePage implements Page on a chromedp tab
type chromePage struct {
	ctx context.Context

	mu     sync.Mutex
	nextID int
	subs   map[int]responseSub
}

func (p *chromePage) onEvent(ev interface{}) {
	e, ok := ev.(*network.EventResponseReceived)
	if !ok || e.Response == nil {
		return
	}
	resp := Response{URL: e.Response.URL, Status: e.Response.Status}

	p.mu.Lock()
	defer p.mu.Unlock()
	for id, sub := range p.subs {
		if sub.match(resp.URL, resp.Status) {
			sub.ch <- resp
			delete(p.subs, id)
		}
	}
}

// run executes actions on the tab, bounded by the caller's ctx
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *chromePage) WaitReady(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (p *chromePage) ClickJS(ctx context.Context, selector string) error {
	return p.eval(ctx, selector, `el.click(); return "ok";`)
}

func (p *chromePage) Select(ctx context.Context, selector, value string) error {
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return p.eval(ctx, selector, fmt.Sprintf(`
		if (el.disabled) return "disabled";
		el.value = %s;
		el.dispatchEvent(new Event("input", {bubbles: true}));
		el.dispatchEvent(new Event("change", {bubbles: true}));
		return el.value === %s ? "ok" : "no such option";`, v, v))
}

func (p *chromePage) Type(ctx context.Context, selector, text string) error {
	return p.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery, chromedp.NodeVisible))
}

func (p *chromePage) IsDisabled(ctx context.Context, selector string) (bool, error) {
	sel, err := json.Marshal(selector)
	if err != nil {
		return false, err
	}
	var disabled bool
	js := fmt.Sprintf(`(() => { const el = document.querySelector(%s); return !!(el && el.disabled); })()`, sel)
	if err := p.run(ctx, chromedp.Evaluate(js, &disabled)); err != nil {
		return false, err
	}
	return disabled, nil
}

func (p *chromePage) RemoveAttribute(ctx context.Context, selector, attr string) error {
	a, err := json.Marshal(attr)
	if err != nil {
		return err
	}
	return p.eval(ctx, selector, fmt.Sprintf(`el.removeAttribute(%s); return "ok";`, a))
}

func (p *chromePage) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.Screenshot(selector, &buf, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *chromePage) ExpectResponse(match ResponseMatcher) (<-chan Response, func()) {
	ch := make(chan Response, 1)

	p.mu.Lock()
	if p.subs == nil {
		p.subs = make(map[int]responseSub)
	}
	id := p.nextID
	p.nextID++
	p.subs[id] = responseSub{match: match, ch: ch}
	p.mu.Unlock()

	return ch, func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// eval runs body with el bound to the element matching selector. body returns
// "ok" on success or a short failure reason.
func (p *chromePage) eval(ctx context.Context, selector, body string) error {
	sel, err := json.Marshal(selector)
	if err != nil {
		return err
	}
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return "missing";
		%s
	})()`, sel, body)

	var status string
	if err := p.run(ctx, chromedp.Evaluate(js, &status)); err != nil {
		return err
	}
	switch status {
	case "ok":
		return nil
	case "missing":
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	case "disabled":
		return fmt.Errorf("%w: %s", ErrControlDisabled, selector)
	default:
		return fmt.Errorf("%s: %s", selector, status)
	}
}
