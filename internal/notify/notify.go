// Package notify dispatches new-post notifications over mail. Delivery is
// best-effort end to end: failures are logged and never fed back into the
// change-detection state.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/tweetwatch/tweetwatch/internal/tweet"
)

type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Sender delivers one message to one recipient.
type Sender interface {
	Send(ctx context.Context, message Message) error
}

// Notifier fans a detected post out to every configured recipient. An
// optional filter expression can suppress the dispatch for posts that do not
// match; the filter never blocks persistence or marker advancement, which
// happen in the detector.
type Notifier struct {
	sender     Sender
	from       string
	recipients []string
	baseURL    string
	filter     *vm.Program
	logger     *slog.Logger
}

func New(sender Sender, from string, recipients []string, baseURL, filterExpr string, logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{
		sender:     sender,
		from:       from,
		recipients: recipients,
		baseURL:    baseURL,
		logger:     logger,
	}
	if filterExpr != "" {
		program, err := expr.Compile(filterExpr, expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile notify filter: %w", err)
		}
		n.filter = program
	}
	return n, nil
}

// Announce sends the notification for one post to each recipient. Individual
// delivery failures are logged and do not stop the remaining recipients.
func (n *Notifier) Announce(ctx context.Context, post tweet.Post) {
	if !n.matches(post) {
		n.logger.Info("notification suppressed by filter", "handle", post.Handle, "id", post.ID)
		return
	}

	subject := fmt.Sprintf("New post from @%s", post.Handle)
	body := n.renderBody(post)
	for _, recipient := range n.recipients {
		msg := Message{
			From:    n.from,
			To:      recipient,
			Subject: subject,
			Body:    body,
		}
		if err := n.sender.Send(ctx, msg); err != nil {
			n.logger.Error("notification delivery failed", "recipient", recipient, "handle", post.Handle, "error", err)
			continue
		}
		n.logger.Info("notification sent", "recipient", recipient, "handle", post.Handle, "id", post.ID)
	}
}

// matches evaluates the optional filter. Evaluation problems fail open:
// a broken filter must not silently swallow notifications.
func (n *Notifier) matches(post tweet.Post) bool {
	if n.filter == nil {
		return true
	}
	result, err := expr.Run(n.filter, filterEnv(post))
	if err != nil {
		n.logger.Error("notify filter evaluation failed, sending anyway", "error", err)
		return true
	}
	matched, ok := result.(bool)
	if !ok {
		n.logger.Error("notify filter did not return a bool, sending anyway")
		return true
	}
	return matched
}

func filterEnv(post tweet.Post) map[string]interface{} {
	likes, _ := strconv.Atoi(post.Likes)
	reposts, _ := strconv.Atoi(post.Reposts)
	return map[string]interface{}{
		"username":   post.Handle,
		"text":       post.Text,
		"created_at": post.CreatedAt,
		"likes":      likes,
		"reposts":    reposts,
	}
}

func (n *Notifier) renderBody(post tweet.Post) string {
	return fmt.Sprintf(`New post detected.

User: @%s
Time: %s
Text: %s
Likes: %s
Reposts: %s

Link: %s
`, post.Handle, post.CreatedAt, post.Text, post.Likes, post.Reposts,
		tweet.Permalink(n.baseURL, post.Handle, post.ID))
}
