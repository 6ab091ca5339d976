// Package notify delivers operator e-mails. Delivery outcomes are reported as
// a Result and never as errors; callers only log them.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"draughtsman/internal/config"
)

const (
	notConfiguredMessage = "Email server not configured."
	defaultFromName      = "Dropbox Draughtsman"
	implicitTLSPort      = 465
	defaultDialTimeout   = 15 * time.Second
)

// Result is the outcome of one send attempt.
type Result struct {
	Success bool
	Message string
}

// Mailer sends HTML mail over SMTP. Port 465 uses implicit TLS; other ports
// upgrade with STARTTLS when the server offers it.
type Mailer struct {
	Config config.MailConfig
	Logger *zap.Logger
	// TLSConfig overrides the client TLS settings.
	TLSConfig *tls.Config
	Now       func() time.Time
}

// Send delivers one message. A missing transport setting or recipient is
// treated as a successful no-op.
func (m Mailer) Send(ctx context.Context, to, subject, html string) Result {
	logger := m.logger()
	if !m.Config.Configured() || to == "" {
		logger.Warn("email server not fully configured; skipping notification",
			zap.Bool("recipient_set", to != ""))
		return Result{Success: true, Message: notConfiguredMessage}
	}
	if err := m.send(ctx, to, subject, html); err != nil {
		logger.Error("send email failed", zap.String("to", to), zap.Error(err))
		return Result{Success: false, Message: fmt.Sprintf("Failed to send email: %v", err)}
	}
	logger.Info("email sent", zap.String("to", to))
	return Result{Success: true}
}

func (m Mailer) send(ctx context.Context, to, subject, html string) error {
	host := m.Config.Host
	addr := net.JoinHostPort(host, strconv.Itoa(m.Config.Port))
	tlsCfg := m.tlsConfig()

	dialer := &net.Dialer{Timeout: defaultDialTimeout}
	var (
		conn net.Conn
		err  error
	)
	if m.Config.Port == implicitTLSPort {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsCfg}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if m.Config.Port != implicitTLSPort {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsCfg); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}
	if ok, _ := c.Extension("AUTH"); ok {
		if err := c.Auth(smtp.PlainAuth("", m.Config.Username, m.Config.Password, host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := c.Mail(m.Config.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	msg, err := m.message(to, subject, html)
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("end data: %w", err)
	}
	return c.Quit()
}

func (m Mailer) message(to, subject, html string) ([]byte, error) {
	name := m.Config.FromName
	if name == "" {
		name = defaultFromName
	}
	from := mail.Address{Name: name, Address: m.Config.From}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", (&mail.Address{Address: to}).String())
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")
	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(html)); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	buf.WriteString("\r\n")
	return buf.Bytes(), nil
}

func (m Mailer) tlsConfig() *tls.Config {
	if m.TLSConfig != nil {
		return m.TLSConfig
	}
	return &tls.Config{ServerName: m.Config.Host, MinVersion: tls.VersionTLS12}
}

func (m Mailer) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}
