package browser

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/playwright-community/playwright-go"
)

// followStrategies is the ordered list of lookups tried for the follow
// button. The first selector that resolves to a visible element wins; the
// page's markup varies by rollout and locale, so several are kept.
var followStrategies = []string{
	`[data-testid="followButton"]`,
	`[data-testid="follow"]`,
	`[aria-label*="Follow"]`,
	`div[role="button"]:has-text("Follow")`,
}

const followButtonTimeout = 10 * time.Second

// FollowAll visits each handle's profile and follows it. The whole pass is
// best-effort: a handle whose button cannot be found or clicked is logged
// and skipped, and the pass itself never fails.
func (m *Manager) FollowAll(ctx context.Context, handles []string) {
	if !m.Alive() {
		return
	}
	m.logger.Info("following configured accounts", "count", len(handles))
	for _, handle := range handles {
		if ctx.Err() != nil {
			return
		}
		if err := m.follow(ctx, handle); err != nil {
			m.logger.Error("follow failed", "handle", handle, "error", err)
			continue
		}
		m.logger.Info("followed account", "handle", handle)
		if !sleepCtx(ctx, time.Duration(4+rand.Intn(5))*time.Second) {
			return
		}
	}
}

func (m *Manager) follow(ctx context.Context, handle string) error {
	if _, err := m.page.Goto(m.opts.BaseURL+"/"+handle, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("open profile: %w", err)
	}
	if !sleepCtx(ctx, 8*time.Second) {
		return ctx.Err()
	}

	// A small scroll nudges lazy content into rendering.
	if _, err := m.page.Evaluate("window.scrollBy(0, 300)"); err != nil {
		m.logger.Warn("scroll failed", "handle", handle, "error", err)
	}
	if !sleepCtx(ctx, 2*time.Second) {
		return ctx.Err()
	}

	button := m.findFollowButton()
	if button == nil {
		return fmt.Errorf("no follow button found")
	}
	if err := button.Click(); err != nil {
		return fmt.Errorf("click follow button: %w", err)
	}
	return nil
}

// findFollowButton tries each strategy in order and returns the first
// visible match.
func (m *Manager) findFollowButton() playwright.ElementHandle {
	for _, selector := range followStrategies {
		button, err := m.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
			Timeout: playwright.Float(float64(followButtonTimeout.Milliseconds())),
		})
		if err != nil || button == nil {
			continue
		}
		if visible, err := button.IsVisible(); err != nil || !visible {
			continue
		}
		return button
	}
	return nil
}
