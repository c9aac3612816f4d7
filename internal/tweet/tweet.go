package tweet

import (
	"fmt"
	"strings"
)

// Post is one scraped post from a profile timeline. Like and repost counts
// stay as the normalized strings the page renders; nothing downstream needs
// them as integers.
type Post struct {
	ID        string `json:"id"`
	Handle    string `json:"username"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
	Likes     string `json:"likes"`
	Reposts   string `json:"retweets"`
}

// Permalink builds the canonical status URL for a post.
func Permalink(baseURL, handle, id string) string {
	return fmt.Sprintf("%s/%s/status/%s", strings.TrimRight(baseURL, "/"), handle, id)
}

// IDFromPermalink extracts the status id from a permalink href, dropping any
// query string. Returns false when the href carries no /status/ segment.
func IDFromPermalink(href string) (string, bool) {
	_, rest, found := strings.Cut(href, "/status/")
	if !found {
		return "", false
	}
	id, _, _ := strings.Cut(rest, "?")
	id, _, _ = strings.Cut(id, "/")
	if id == "" {
		return "", false
	}
	return id, true
}

// NormalizeCount strips thousands separators from a scraped engagement
// count. An empty value normalizes to "0".
func NormalizeCount(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "0"
	}
	return strings.ReplaceAll(raw, ",", "")
}
