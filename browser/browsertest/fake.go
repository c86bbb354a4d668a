// Package browsertest provides an in-memory browser.Page for exercising the
// lookup pipeline without a real browser.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"casestatus-backend/browser"
)

// Element is a fake DOM node
type Element struct {
	Visible  bool
	Disabled bool
	// StickyDisabled keeps the element disabled even after its attribute is removed.
	StickyDisabled bool
	Value          string
}

// Page is a scriptable browser.Page. Zero value is not usable; use NewPage.
type Page struct {
	mu sync.Mutex

	elements map[string]*Element
	calls    []string
	subs     []fakeSub

	// NavigateErr is returned from Navigate when set.
	NavigateErr error
	// Document is returned from HTML.
	Document string
	// OnClick runs after a click on the keyed selector, outside the page lock.
	OnClick map[string]func(p *Page)
	// OnSelect runs after a successful select on the keyed selector, outside the page lock.
	OnSelect map[string]func(p *Page)
	// ClickErrs fails clicks on the keyed selector.
	ClickErrs map[string]error
	// ScreenshotErr is returned from Screenshot when set.
	ScreenshotErr error

	screenshots      int
	disabledSelected int
}

type fakeSub struct {
	match browser.ResponseMatcher
	ch    chan browser.Response
}

// NewPage returns an empty fake page
func NewPage() *Page {
	return &Page{
		elements:  make(map[string]*Element),
		OnClick:   make(map[string]func(p *Page)),
		OnSelect:  make(map[string]func(p *Page)),
		ClickErrs: make(map[string]error),
	}
}

// Add places a visible element on the page
func (p *Page) Add(selector string) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	el := &Element{Visible: true}
	p.elements[selector] = el
	return el
}

// AddDisabled places a visible, disabled element on the page
func (p *Page) AddDisabled(selector string) *Element {
	el := p.Add(selector)
	p.mu.Lock()
	el.Disabled = true
	p.mu.Unlock()
	return el
}

// Value returns the current value of selector
func (p *Page) Value(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.elements[selector]; ok {
		return el.Value
	}
	return ""
}

// SetDocument replaces the HTML returned by HTML
func (p *Page) SetDocument(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Document = html
}

// Calls returns the operations performed so far, formatted as "op selector"
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// DisabledSelects counts Select calls that hit a disabled control
func (p *Page) DisabledSelects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disabledSelected
}

// Screenshots counts captured screenshots
func (p *Page) Screenshots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.screenshots
}

// EmitResponse delivers resp to every subscriber whose matcher accepts it
func (p *Page) EmitResponse(resp browser.Response) {
	p.mu.Lock()
	defer p.mu.Unlock()
	remaining := p.subs[:0]
	for _, sub := range p.subs {
		if sub.match(resp.URL, resp.Status) {
			sub.ch <- resp
			continue
		}
		remaining = append(remaining, sub)
	}
	p.subs = remaining
}

func (p *Page) record(op, selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, op+" "+selector)
}

func (p *Page) lookup(selector string) (*Element, error) {
	el, ok := p.elements[selector]
	if !ok {
		return nil, fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	return el, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.record("navigate", url)
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	return ctx.Err()
}

func (p *Page) WaitVisible(ctx context.Context, selector string) error {
	p.record("wait", selector)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		p.mu.Lock()
		el, ok := p.elements[selector]
		visible := ok && el.Visible
		p.mu.Unlock()
		if visible {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// AddOption places an <option> with value inside the select matched by selector
func (p *Page) AddOption(selector, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[browser.OptionSelector(selector, value)] = &Element{Value: value}
}

func (p *Page) WaitReady(ctx context.Context, selector string) error {
	p.record("ready", selector)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		p.mu.Lock()
		_, ok := p.elements[selector]
		p.mu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Page) click(op, selector string) error {
	p.record(op, selector)
	p.mu.Lock()
	_, err := p.lookup(selector)
	hook := p.OnClick[selector]
	if err == nil {
		err = p.ClickErrs[selector]
	}
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	return p.click("click", selector)
}

func (p *Page) ClickJS(ctx context.Context, selector string) error {
	return p.click("clickjs", selector)
}

// Select behaves like the browser: the control must be enabled and already hold
// an option with value.
func (p *Page) Select(ctx context.Context, selector, value string) error {
	p.record("select", selector)
	p.mu.Lock()
	el, err := p.lookup(selector)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if el.Disabled {
		p.disabledSelected++
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", browser.ErrControlDisabled, selector)
	}
	if _, ok := p.elements[browser.OptionSelector(selector, value)]; !ok {
		p.mu.Unlock()
		return fmt.Errorf("%s: no such option", selector)
	}
	el.Value = value
	hook := p.OnSelect[selector]
	p.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *Page) Type(ctx context.Context, selector, text string) error {
	p.record("type", selector)
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.lookup(selector)
	if err != nil {
		return err
	}
	el.Value += text
	return nil
}

func (p *Page) IsDisabled(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.lookup(selector)
	if err != nil {
		return false, err
	}
	return el.Disabled, nil
}

func (p *Page) RemoveAttribute(ctx context.Context, selector, attr string) error {
	p.record("remove-"+attr, selector)
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.lookup(selector)
	if err != nil {
		return err
	}
	if attr == "disabled" && !el.StickyDisabled {
		el.Disabled = false
	}
	return nil
}

func (p *Page) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	p.record("screenshot", selector)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	if _, err := p.lookup(selector); err != nil {
		return nil, err
	}
	p.screenshots++
	return []byte(fmt.Sprintf("image-%d", p.screenshots)), nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Document, nil
}

func (p *Page) ExpectResponse(match browser.ResponseMatcher) (<-chan browser.Response, func()) {
	ch := make(chan browser.Response, 1)
	p.mu.Lock()
	p.subs = append(p.subs, fakeSub{match: match, ch: ch})
	p.mu.Unlock()
	return ch, func() {}
}

// Launcher hands out sessions around a single fake page
type Launcher struct {
	Page    *Page
	OpenErr error

	mu     sync.Mutex
	opens  int
	closes int
}

// NewLauncher returns a launcher serving page
func NewLauncher(page *Page) *Launcher {
	return &Launcher{Page: page}
}

func (l *Launcher) Open(ctx context.Context) (*browser.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.OpenErr != nil {
		return nil, l.OpenErr
	}
	l.opens++
	return browser.NewSession(l.Page, func() error {
		l.mu.Lock()
		l.closes++
		l.mu.Unlock()
		return nil
	}), nil
}

// Opens counts sessions opened
func (l *Launcher) Opens() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opens
}

// Closes counts sessions torn down
func (l *Launcher) Closes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes
}
