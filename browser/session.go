package browser

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Session owns one browser process and one page for the duration of a lookup.
// It must be closed exactly once on every exit path; extra Close calls are no-ops.
type Session struct {
	Page Page

	closer   func() error
	once     sync.Once
	closeErr error
}

// NewSession wraps a page and the function that tears down its browser
func NewSession(page Page, closer func() error) *Session {
	return &Session{Page: page, closer: closer}
}

// Navigate loads url and waits for the document to load within timeout
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.Page.Navigate(ctx, url); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNavigation, url, err)
	}
	return nil
}

// WaitForElement blocks until selector is present and visible, or timeout elapses
func (s *Session) WaitForElement(ctx context.Context, selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.Page.WaitVisible(ctx, selector); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrElementNotFound, selector, err)
	}
	return nil
}

// Close terminates the browser process
func (s *Session) Close() error {
	s.once.Do(func() {
		if s.closer != nil {
			s.closeErr = s.closer()
		}
	})
	return s.closeErr
}
