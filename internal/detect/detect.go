// Package detect compares the newest fetched post against an account's
// last-seen marker and runs the persist/notify/advance sequence when they
// differ.
package detect

import (
	"context"
	"log/slog"

	"github.com/tweetwatch/tweetwatch/internal/accounts"
	"github.com/tweetwatch/tweetwatch/internal/tweet"
)

// Archive persists one detected post.
type Archive interface {
	SavePost(post tweet.Post) (string, error)
}

// Notifier dispatches the notification for one detected post.
type Notifier interface {
	Announce(ctx context.Context, post tweet.Post)
}

type Detector struct {
	store    *accounts.Store
	archive  Archive
	notifier Notifier
	logger   *slog.Logger
}

func New(store *accounts.Store, archive Archive, notifier Notifier, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		store:    store,
		archive:  archive,
		notifier: notifier,
		logger:   logger,
	}
}

// Process runs change detection for one account over a freshly fetched
// batch. It reports whether a new post was detected. Persistence and
// notification failures are logged only; the marker advances regardless, so
// a crash before this point reprocesses the same post on the next cycle
// (at-least-once) while a crash after it never double-notifies.
func (d *Detector) Process(ctx context.Context, acct *accounts.Account, posts []tweet.Post) bool {
	if len(posts) == 0 {
		return false
	}

	newest := posts[0]
	if newest.ID == acct.LastPostID {
		return false
	}

	d.logger.Info("new post detected",
		"name", acct.Name,
		"handle", acct.Handle,
		"id", newest.ID,
		"created_at", newest.CreatedAt,
		"likes", newest.Likes,
		"reposts", newest.Reposts,
	)

	if path, err := d.archive.SavePost(newest); err != nil {
		d.logger.Error("archive post failed", "handle", acct.Handle, "id", newest.ID, "error", err)
	} else {
		d.logger.Info("post archived", "handle", acct.Handle, "path", path)
	}

	d.notifier.Announce(ctx, newest)

	acct.LastPostID = newest.ID
	d.store.Save()
	return true
}
