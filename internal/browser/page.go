package browser

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/tweetwatch/tweetwatch/internal/fetch"
)

// pageAdapter exposes a playwright page through the fetch.Page surface.
type pageAdapter struct {
	page playwright.Page
}

func (p *pageAdapter) Open(url string) error {
	if _, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (p *pageAdapter) WaitForAll(selector string, timeout time.Duration) ([]fetch.Element, error) {
	if _, err := p.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return nil, err
	}
	handles, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}
	elements := make([]fetch.Element, 0, len(handles))
	for _, handle := range handles {
		elements = append(elements, &elementAdapter{el: handle})
	}
	return elements, nil
}

// elementAdapter wraps one matched DOM node. Lookup misses and driver errors
// both surface as ok=false; the fetcher treats them identically.
type elementAdapter struct {
	el playwright.ElementHandle
}

func (e *elementAdapter) Text(selector string) (string, bool) {
	child, err := e.el.QuerySelector(selector)
	if err != nil || child == nil {
		return "", false
	}
	text, err := child.TextContent()
	if err != nil {
		return "", false
	}
	return text, true
}

func (e *elementAdapter) Attr(selector, name string) (string, bool) {
	child, err := e.el.QuerySelector(selector)
	if err != nil || child == nil {
		return "", false
	}
	value, err := child.GetAttribute(name)
	if err != nil || value == "" {
		return "", false
	}
	return value, true
}
