// Package archive persists detected posts, one JSON file per post, under a
// per-account directory. Filenames carry the capture timestamp so repeated
// captures never collide with earlier ones.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tweetwatch/tweetwatch/internal/tweet"
)

const filenameLayout = "20060102_150405"

type Archive struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Archive {
	return &Archive{baseDir: baseDir, now: time.Now}
}

// SavePost writes the post to <baseDir>/<handle>/tweet_<capture-ts>.json and
// returns the path it was written to.
func (a *Archive) SavePost(post tweet.Post) (string, error) {
	dir := filepath.Join(a.baseDir, post.Handle)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("tweet_%s.json", a.now().Format(filenameLayout)))
	data, err := json.MarshalIndent(post, "", "    ")
	if err != nil {
		return "", fmt.Errorf("marshal post: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write post: %w", err)
	}
	return path, nil
}
