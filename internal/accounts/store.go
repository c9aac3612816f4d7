// Package accounts owns the registry of tracked profiles and each profile's
// last-seen-post marker. The registry is a flat JSON file so operators can
// edit it while the monitor runs; edits are picked up by comparing the file's
// modification time against the last observed one.
package accounts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Account is one tracked profile. LastPostID is empty until the first post
// for the account has been processed; it is advanced only by the change
// detector.
type Account struct {
	Name       string `json:"name"`
	Handle     string `json:"username"`
	LastPostID string `json:"last_tweet_id"`
	Enabled    bool   `json:"enabled"`
}

// Store loads and saves the account registry and creates the per-account
// data directories posts are archived under.
type Store struct {
	path         string
	dataDir      string
	logger       *slog.Logger
	accounts     map[string]*Account
	lastModified time.Time
}

func NewStore(path, dataDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:     path,
		dataDir:  dataDir,
		logger:   logger,
		accounts: make(map[string]*Account),
	}
}

// Load reads the registry file. A missing file is seeded with a single
// default entry and written back. A file that exists but cannot be parsed is
// an error; the caller decides whether that is fatal (it is at startup).
func (s *Store) Load() error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		s.accounts = map[string]*Account{
			"elonmusk": {
				Name:    "Elon Musk",
				Handle:  "elonmusk",
				Enabled: true,
			},
		}
		s.Save()
		s.observeModTime()
		return s.ensureDataDirs()
	}

	accounts, err := s.read()
	if err != nil {
		return err
	}
	s.accounts = accounts
	s.observeModTime()
	s.logger.Info("accounts loaded", "count", len(s.accounts), "path", s.path)
	return s.ensureDataDirs()
}

func (s *Store) read() (map[string]*Account, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	accounts := make(map[string]*Account)
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("parse accounts file %s: %w", s.path, err)
	}
	return accounts, nil
}

// Save writes the full registry back to disk. A failed save is logged but
// never propagated: it must not stop the loop, at the cost of possibly
// reprocessing a post after a restart.
func (s *Store) Save() {
	data, err := json.MarshalIndent(s.accounts, "", "    ")
	if err != nil {
		s.logger.Error("marshal accounts failed", "error", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.logger.Error("save accounts failed", "path", s.path, "error", err)
		return
	}
	s.observeModTime()
}

// CheckExternalUpdate reloads the registry when the file on disk is newer
// than the last observed modification time. Accounts removed from the file
// drop out of the map; new accounts start with an empty marker and get their
// data directory created. A reload that fails to parse keeps the previous
// in-memory registry.
func (s *Store) CheckExternalUpdate() {
	info, err := os.Stat(s.path)
	if err != nil {
		return
	}
	if !info.ModTime().After(s.lastModified) {
		return
	}
	s.logger.Info("accounts file changed on disk, reloading", "path", s.path)
	accounts, err := s.read()
	if err != nil {
		s.logger.Error("reload accounts failed, keeping previous set", "error", err)
		s.lastModified = info.ModTime()
		return
	}
	s.accounts = accounts
	s.lastModified = info.ModTime()
	if err := s.ensureDataDirs(); err != nil {
		s.logger.Error("create account data dirs failed", "error", err)
	}
}

// Accounts returns the tracked accounts ordered by handle so every cycle
// visits them in a stable order.
func (s *Store) Accounts() []*Account {
	out := make([]*Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		out = append(out, acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

func (s *Store) Get(handle string) (*Account, bool) {
	acct, ok := s.accounts[handle]
	return acct, ok
}

func (s *Store) Len() int {
	return len(s.accounts)
}

// DataDir returns the directory posts for the given handle are archived in.
func (s *Store) DataDir(handle string) string {
	return filepath.Join(s.dataDir, handle)
}

func (s *Store) ensureDataDirs() error {
	for handle := range s.accounts {
		if err := os.MkdirAll(s.DataDir(handle), 0o755); err != nil {
			return fmt.Errorf("create data dir for %s: %w", handle, err)
		}
	}
	return nil
}

func (s *Store) observeModTime() {
	if info, err := os.Stat(s.path); err == nil {
		s.lastModified = info.ModTime()
	}
}
