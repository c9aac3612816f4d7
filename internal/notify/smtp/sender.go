// Package smtp sends notifications through an SMTP relay using wneessen/go-mail.
package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	mail "github.com/wneessen/go-mail"

	"github.com/tweetwatch/tweetwatch/internal/notify"
)

type Sender struct {
	host               string
	port               int
	username           string
	password           string
	tlsMode            string
	insecureSkipVerify bool
}

// NewSender creates an SMTP sender. tlsMode is optional; when empty,
// port-based defaults apply (implicit TLS on 465, STARTTLS otherwise).
func NewSender(host string, port int, username, password string, tlsMode string, insecureSkipVerify bool) *Sender {
	return &Sender{
		host:               host,
		port:               port,
		username:           username,
		password:           password,
		tlsMode:            tlsMode,
		insecureSkipVerify: insecureSkipVerify,
	}
}

// TLSMode determines how the SMTP client should negotiate TLS.
type TLSMode string

const (
	// TLSModeAuto uses port-based defaults.
	TLSModeAuto TLSMode = "auto"
	// TLSModeDisabled forces cleartext SMTP.
	TLSModeDisabled TLSMode = "disabled"
	// TLSModeStartTLS requires STARTTLS on the SMTP connection.
	TLSModeStartTLS TLSMode = "starttls"
	// TLSModeImplicit uses implicit TLS (SMTPS), typically on port 465.
	TLSModeImplicit TLSMode = "implicit"
)

func (s *Sender) Send(ctx context.Context, message notify.Message) error {
	if message.From == "" {
		message.From = s.username
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m := mail.NewMsg()
	if err := m.From(message.From); err != nil {
		return fmt.Errorf("invalid from address %q: %w", message.From, err)
	}
	if err := m.To(message.To); err != nil {
		return fmt.Errorf("invalid to address %q: %w", message.To, err)
	}
	m.Subject(message.Subject)
	m.SetBodyString(mail.TypeTextPlain, message.Body)

	mode, err := s.resolveTLSMode()
	if err != nil {
		return err
	}

	clientOpts := []mail.Option{
		mail.WithPort(s.port),
		mail.WithTLSConfig(&tls.Config{
			ServerName:         s.host,
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: s.insecureSkipVerify,
		}),
	}

	switch mode {
	case TLSModeDisabled:
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.NoTLS))
	case TLSModeStartTLS:
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	case TLSModeImplicit:
		clientOpts = append(clientOpts, mail.WithSSL())
	default:
		return fmt.Errorf("unsupported smtp tls mode %q", mode)
	}

	if s.username != "" {
		clientOpts = append(
			clientOpts,
			mail.WithUsername(s.username),
			mail.WithPassword(s.password),
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		)
	}

	client, err := mail.NewClient(s.host, clientOpts...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// resolveTLSMode returns the configured TLS behavior, falling back to port
// defaults.
func (s *Sender) resolveTLSMode() (TLSMode, error) {
	mode, err := parseTLSMode(s.tlsMode)
	if err != nil {
		return "", err
	}
	if mode == TLSModeAuto {
		if s.port == 465 {
			return TLSModeImplicit, nil
		}
		return TLSModeStartTLS, nil
	}
	return mode, nil
}

func parseTLSMode(mode string) (TLSMode, error) {
	normalized := strings.TrimSpace(strings.ToLower(mode))
	if normalized == "" || normalized == string(TLSModeAuto) {
		return TLSModeAuto, nil
	}
	switch normalized {
	case "disabled", "off", "none":
		return TLSModeDisabled, nil
	case "starttls", "start_tls":
		return TLSModeStartTLS, nil
	case "implicit", "smtptls", "smtp_tls":
		return TLSModeImplicit, nil
	default:
		return "", fmt.Errorf("invalid smtp tls mode %q (expected: auto, disabled/off/none, starttls/start_tls, implicit/smtptls/smtp_tls)", mode)
	}
}
