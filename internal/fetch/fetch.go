// Package fetch retrieves the most recent posts from a profile page. It
// talks to the browser through the narrow Page/Element surface so extraction
// logic can be exercised without a live session.
package fetch

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tweetwatch/tweetwatch/internal/tweet"
)

// ErrUnavailable reports that the profile page rendered no post containers
// within the wait timeout. It is not the same as the account having zero
// posts; the caller skips the account for this cycle either way.
var ErrUnavailable = errors.New("posts temporarily unavailable")

// Page is the element-lookup capability the fetcher needs from a browser
// session.
type Page interface {
	// Open navigates to the given URL.
	Open(url string) error
	// WaitForAll waits up to timeout for at least one element matching
	// selector and returns every match.
	WaitForAll(selector string, timeout time.Duration) ([]Element, error)
}

// Element is one matched container on the page. Lookups that find nothing
// report ok=false rather than an error; absence of a field is an expected
// outcome, not a failure.
type Element interface {
	Text(selector string) (string, bool)
	Attr(selector, name string) (string, bool)
}

const (
	postSelector      = `article[data-testid="tweet"]`
	permalinkSelector = `a[href*="/status/"]`
	textSelector      = `div[data-testid="tweetText"]`
	timeSelector      = `time`
	likeSelector      = `[data-testid="like"] span span`
	repostSelector    = `[data-testid="retweet"] span span`
)

const (
	defaultLimit       = 5
	defaultWaitTimeout = 20 * time.Second
)

type Fetcher struct {
	baseURL     string
	limit       int
	waitTimeout time.Duration
	logger      *slog.Logger
}

func New(baseURL string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		baseURL:     baseURL,
		limit:       defaultLimit,
		waitTimeout: defaultWaitTimeout,
		logger:      logger,
	}
}

// Recent returns up to the fetcher's limit of posts from the handle's
// profile, most recent first. A navigation failure is returned as an error;
// a nil page or a page that never shows a post container yields
// ErrUnavailable. A post missing its id, text or timestamp is skipped;
// missing engagement counts default to "0".
func (f *Fetcher) Recent(page Page, handle string) ([]tweet.Post, error) {
	if page == nil {
		f.logger.Warn("no live page for fetch", "handle", handle)
		return nil, ErrUnavailable
	}

	url := fmt.Sprintf("%s/%s", f.baseURL, handle)
	if err := page.Open(url); err != nil {
		return nil, fmt.Errorf("open profile %s: %w", handle, err)
	}

	containers, err := page.WaitForAll(postSelector, f.waitTimeout)
	if err != nil {
		f.logger.Warn("waiting for post containers failed", "handle", handle, "error", err)
		return nil, ErrUnavailable
	}
	if len(containers) == 0 {
		f.logger.Warn("no post containers rendered", "handle", handle)
		return nil, ErrUnavailable
	}

	if len(containers) > f.limit {
		containers = containers[:f.limit]
	}

	posts := make([]tweet.Post, 0, len(containers))
	for _, container := range containers {
		post, ok := f.extract(container, handle)
		if !ok {
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// extract pulls one post out of its container. Identity fields are
// mandatory; engagement counts degrade to "0".
func (f *Fetcher) extract(el Element, handle string) (tweet.Post, bool) {
	href, ok := el.Attr(permalinkSelector, "href")
	if !ok {
		f.logger.Warn("post skipped: no permalink", "handle", handle)
		return tweet.Post{}, false
	}
	id, ok := tweet.IDFromPermalink(href)
	if !ok {
		f.logger.Warn("post skipped: unparseable permalink", "handle", handle, "href", href)
		return tweet.Post{}, false
	}

	text, ok := el.Text(textSelector)
	if !ok {
		f.logger.Warn("post skipped: no text", "handle", handle, "id", id)
		return tweet.Post{}, false
	}

	createdAt, ok := el.Attr(timeSelector, "datetime")
	if !ok {
		f.logger.Warn("post skipped: no timestamp", "handle", handle, "id", id)
		return tweet.Post{}, false
	}

	likes, _ := el.Text(likeSelector)
	reposts, _ := el.Text(repostSelector)

	return tweet.Post{
		ID:        id,
		Handle:    handle,
		Text:      text,
		CreatedAt: createdAt,
		Likes:     tweet.NormalizeCount(likes),
		Reposts:   tweet.NormalizeCount(reposts),
	}, true
}
