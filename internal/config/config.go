package config

import (
	"fmt"
	"net/mail"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the top-level structure of a tweetwatch config file.
type Document struct {
	Login   LoginConfig   `yaml:"login"`
	SMTP    SMTPConfig    `yaml:"smtp"`
	Monitor MonitorConfig `yaml:"monitor"`
	Log     LogConfig     `yaml:"log"`

	// NotifyFilter is an optional boolean expression over a detected post
	// (text, likes, reposts, username, created_at). When it evaluates to
	// false the mail dispatch is suppressed; detection state still advances.
	NotifyFilter string `yaml:"notify_filter,omitempty"`
}

// LoginConfig holds the credentials used to authenticate the browser session.
type LoginConfig struct {
	Email    string `yaml:"email"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host               string   `yaml:"host"`
	Port               int      `yaml:"port"`
	Sender             string   `yaml:"sender"`
	Password           string   `yaml:"password"`
	Recipients         []string `yaml:"recipients"`
	TLSMode            string   `yaml:"tls_mode,omitempty"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify,omitempty"`
}

// MonitorConfig tunes the polling loop.
type MonitorConfig struct {
	BaseURL      string   `yaml:"base_url,omitempty"`
	Interval     Duration `yaml:"interval,omitempty"`
	AccountsFile string   `yaml:"accounts_file,omitempty"`
	DataDir      string   `yaml:"data_dir,omitempty"`
	Headless     *bool    `yaml:"headless,omitempty"`
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
}

const (
	DefaultBaseURL      = "https://twitter.com"
	DefaultAccountsFile = "twitter_accounts.json"
	DefaultDataDir      = "tweets_data"
	DefaultLogFile      = "twitter_monitor.log"
)

// Load reads and parses the config document at path, applies environment
// overrides and defaults, and validates it. Any validation failure here is
// fatal: the monitor must not start with incomplete credentials or mail
// settings.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	doc.applyEnv()
	doc.applyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) applyDefaults() {
	if d.Monitor.BaseURL == "" {
		d.Monitor.BaseURL = DefaultBaseURL
	}
	if d.Monitor.Interval <= 0 {
		d.Monitor.Interval = Duration(defaultInterval)
	}
	if d.Monitor.AccountsFile == "" {
		d.Monitor.AccountsFile = DefaultAccountsFile
	}
	if d.Monitor.DataDir == "" {
		d.Monitor.DataDir = DefaultDataDir
	}
	if d.Monitor.Headless == nil {
		headless := true
		d.Monitor.Headless = &headless
	}
	if d.Log.File == "" {
		d.Log.File = DefaultLogFile
	}
	if d.Log.MaxSizeMB <= 0 {
		d.Log.MaxSizeMB = 10
	}
	if d.Log.MaxBackups <= 0 {
		d.Log.MaxBackups = 5
	}
}

// Validate checks that every field the monitor cannot run without is present.
func (d *Document) Validate() error {
	if d.Login.Email == "" || d.Login.Username == "" || d.Login.Password == "" {
		return fmt.Errorf("login credentials are incomplete: email, username and password are required")
	}
	if d.SMTP.Host == "" {
		return fmt.Errorf("smtp host is required")
	}
	if d.SMTP.Port <= 0 {
		return fmt.Errorf("smtp port must be positive")
	}
	if d.SMTP.Sender == "" || d.SMTP.Password == "" {
		return fmt.Errorf("smtp sender and password are required")
	}
	if len(d.SMTP.Recipients) == 0 {
		return fmt.Errorf("at least one smtp recipient is required")
	}
	if _, err := mail.ParseAddress(d.SMTP.Sender); err != nil {
		return fmt.Errorf("invalid smtp sender address %q", d.SMTP.Sender)
	}
	for _, recipient := range d.SMTP.Recipients {
		if _, err := mail.ParseAddress(recipient); err != nil {
			return fmt.Errorf("invalid smtp recipient address %q", recipient)
		}
	}
	return nil
}
