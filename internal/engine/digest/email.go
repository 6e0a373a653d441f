package digest

import (
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

// Sender delivers the digest over implicit-TLS SMTP (Gmail smtp.gmail.com:465
// with an app password). Plain net/smtp is enough here: one recipient, one
// message per run.
type Sender struct {
	Host     string
	Port     int
	User     string
	Password string
}

// NewSender builds a Gmail SMTPS sender.
func NewSender(user, password string) *Sender {
	return &Sender{Host: "smtp.gmail.com", Port: 465, User: user, Password: password}
}

// Send delivers a multipart/alternative mail with plain and HTML bodies.
func (s *Sender) Send(recipient, subject, textBody, htmlBody string) error {
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.Host})
	if err != nil {
		return fmt.Errorf("email: dial %s: %w", addr, err)
	}
	client, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("email: smtp handshake: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", s.User, s.Password, s.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("email: auth: %w", err)
	}
	if err := client.Mail(s.User); err != nil {
		return fmt.Errorf("email: MAIL FROM: %w", err)
	}
	if err := client.Rcpt(recipient); err != nil {
		return fmt.Errorf("email: RCPT TO: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("email: DATA: %w", err)
	}
	if _, err := w.Write(buildMessage(s.User, recipient, subject, textBody, htmlBody)); err != nil {
		return fmt.Errorf("email: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("email: close body: %w", err)
	}
	if err := client.Quit(); err != nil {
		return fmt.Errorf("email: quit: %w", err)
	}

	engine.IncrEmailsSent()
	slog.Info("email: sent", slog.String("to", recipient), slog.String("subject", subject))
	return nil
}

// buildMessage assembles a multipart/alternative MIME message with base64
// UTF-8 parts so Japanese subjects and bodies survive every relay.
func buildMessage(from, to, subject, textBody, htmlBody string) []byte {
	const boundary = "godigest-alt-boundary"

	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", to)
	fmt.Fprintf(&sb, "Subject: %s\r\n", mime.BEncoding.Encode("UTF-8", subject))
	fmt.Fprintf(&sb, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	sb.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&sb, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	sb.WriteString("\r\n")

	writePart := func(contentType, body string) {
		fmt.Fprintf(&sb, "--%s\r\n", boundary)
		fmt.Fprintf(&sb, "Content-Type: %s; charset=UTF-8\r\n", contentType)
		sb.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		sb.WriteString(wrapBase64(base64.StdEncoding.EncodeToString([]byte(body))))
		sb.WriteString("\r\n")
	}

	writePart("text/plain", textBody)
	if htmlBody != "" {
		writePart("text/html", htmlBody)
	}
	fmt.Fprintf(&sb, "--%s--\r\n", boundary)
	return []byte(sb.String())
}

// wrapBase64 folds encoded content at 76 columns per RFC 2045.
func wrapBase64(s string) string {
	const width = 76
	var sb strings.Builder
	for len(s) > width {
		sb.WriteString(s[:width])
		sb.WriteString("\r\n")
		s = s[width:]
	}
	sb.WriteString(s)
	return sb.String()
}
