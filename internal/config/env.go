package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnv overlays TWEETWATCH_* environment variables on top of the parsed
// document. The file stays the primary configuration surface; env overrides
// exist so deployments can keep secrets out of it.
func (d *Document) applyEnv() {
	overrideString(&d.Login.Email, "TWEETWATCH_LOGIN_EMAIL")
	overrideString(&d.Login.Username, "TWEETWATCH_LOGIN_USERNAME")
	overrideString(&d.Login.Password, "TWEETWATCH_LOGIN_PASSWORD")

	overrideString(&d.SMTP.Host, "TWEETWATCH_SMTP_HOST")
	overrideInt(&d.SMTP.Port, "TWEETWATCH_SMTP_PORT")
	overrideString(&d.SMTP.Sender, "TWEETWATCH_SMTP_SENDER")
	overrideString(&d.SMTP.Password, "TWEETWATCH_SMTP_PASSWORD")
	overrideString(&d.SMTP.TLSMode, "TWEETWATCH_SMTP_TLS_MODE")
	if raw := strings.TrimSpace(os.Getenv("TWEETWATCH_SMTP_RECIPIENTS")); raw != "" {
		var recipients []string
		for _, addr := range strings.Split(raw, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				recipients = append(recipients, addr)
			}
		}
		if len(recipients) > 0 {
			d.SMTP.Recipients = recipients
		}
	}

	overrideString(&d.Monitor.BaseURL, "TWEETWATCH_BASE_URL")
	overrideString(&d.Monitor.AccountsFile, "TWEETWATCH_ACCOUNTS_FILE")
	overrideString(&d.Monitor.DataDir, "TWEETWATCH_DATA_DIR")
	if raw := strings.TrimSpace(os.Getenv("TWEETWATCH_INTERVAL")); raw != "" {
		if parsed, err := parseDuration(raw); err == nil {
			d.Monitor.Interval = Duration(parsed)
		}
	}
	if raw := strings.TrimSpace(os.Getenv("TWEETWATCH_HEADLESS")); raw != "" {
		headless := parseBool(raw, true)
		d.Monitor.Headless = &headless
	}

	overrideString(&d.NotifyFilter, "TWEETWATCH_NOTIFY_FILTER")
	overrideString(&d.Log.File, "TWEETWATCH_LOG_FILE")
}

func overrideString(target *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*target = value
	}
}

func overrideInt(target *int, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func parseBool(raw string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
