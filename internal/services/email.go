package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chachabrian/haulbook-backend/internal/models"
)

const companyName = "HaulBook"

// Common header template for all emails
const emailHeader = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; margin: 0; padding: 0;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<div style="text-align: center; margin-bottom: 30px; background-color: #f9f9f9; padding: 20px;">
			<h2 style="color: #1f6feb; margin: 0;">HaulBook</h2>
		</div>
`

// Common footer template for all emails
const emailFooter = `
		<div style="text-align: center; margin-top: 20px; font-size: 12px; color: #666; border-top: 1px solid #eee; padding-top: 20px;">
			<p>This is an automated message, please do not reply to this email.</p>
		</div>
	</div>
</body>
</html>
`

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends HTML mail. Every send is bounded by the context deadline,
// including the dial and the SMTP conversation.
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, to []string, subject, body string) error {
	if m.cfg.Host == "" || m.cfg.From == "" {
		return errors.New("email configuration not set")
	}
	if len(to) == 0 {
		return errors.New("no recipients")
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(buildMessage(m.cfg.From, to, subject, body, time.Now())); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

var headerSafe = strings.NewReplacer("\r", " ", "\n", " ")

func buildMessage(from string, to []string, subject, body string, at time.Time) []byte {
	headers := map[string]string{
		"From":         fmt.Sprintf("%s <%s>", companyName, from),
		"To":           strings.Join(to, ","),
		"Subject":      headerSafe.Replace(subject),
		"Date":         at.Format(time.RFC1123Z),
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
		"X-Mailer":     "HaulBook-Mailer",
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, headers[k])
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func bookingCreatedEmail(b *models.Booking) (string, string) {
	subject := fmt.Sprintf("New Booking %s - %s", b.BookingNumber, companyName)
	body := fmt.Sprintf(emailHeader+`
		<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
			<h1 style="color: #2c3e50; text-align: center;">New Booking</h1>
			<p>Booking <strong>%s</strong> (%s) is waiting for a driver.</p>
			<p><strong>Pickup:</strong> %s<br><strong>Dropoff:</strong> %s<br><strong>Pickup time:</strong> %s</p>
			<p><strong>Estimated fare:</strong> %.2f</p>
		</div>`+emailFooter,
		b.BookingNumber, b.ServiceType, html.EscapeString(b.PickupAddress), html.EscapeString(b.DropoffAddress),
		b.PickupTime.UTC().Format(time.RFC822), b.EstimatedFare)
	return subject, body
}

func supportEmail(req SupportRequest) (string, string) {
	subject := fmt.Sprintf("Support: %s", req.Subject)
	body := fmt.Sprintf(emailHeader+`
		<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
			<h1 style="color: #2c3e50; text-align: center;">Support Request</h1>
			<p><strong>From:</strong> %s &lt;%s&gt;</p>
			<p><strong>Subject:</strong> %s</p>
			<p>%s</p>
		</div>`+emailFooter,
		html.EscapeString(req.Name), html.EscapeString(req.Email),
		html.EscapeString(req.Subject), html.EscapeString(req.Message))
	return subject, body
}
