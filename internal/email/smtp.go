package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	appconfig "github.com/edustack/academy-api/internal/config"
)

// SMTPProvider sends through a plain SMTP relay. It is the fallback for
// environments without SES or SparkPost credentials.
type SMTPProvider struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	timeout  time.Duration
}

// NewSMTP returns an uninitialized SMTP provider.
func NewSMTP(cfg appconfig.EmailConfig) *SMTPProvider {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SMTPProvider{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.FromEmail,
		fromName: cfg.FromName,
		timeout:  timeout,
	}
}

// Name implements Provider.
func (p *SMTPProvider) Name() string { return "smtp" }

func (p *SMTPProvider) addr() string {
	return net.JoinHostPort(p.host, fmt.Sprintf("%d", p.port))
}

// Initialize checks the relay accepts connections.
func (p *SMTPProvider) Initialize(ctx context.Context) error {
	if p.host == "" || p.port == 0 {
		return fmt.Errorf("smtp host and port not configured")
	}
	return p.Probe(ctx)
}

// Send implements Provider. The connection carries a deadline from the
// configured timeout (tightened by the context deadline when sooner), and
// cancellation closes the connection outright, so a relay that accepts but
// never responds cannot strand the call or deliver after the caller has
// recorded a failure.
func (p *SMTPProvider) Send(ctx context.Context, msg Message) (*Receipt, error) {
	id := uuid.New().String()
	body := p.buildMIME(id, msg)

	d := net.Dialer{Timeout: p.timeout}
	conn, err := d.DialContext(ctx, "tcp", p.addr())
	if err != nil {
		return nil, fmt.Errorf("dialing smtp relay: %w", err)
	}

	deadline := time.Now().Add(p.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetDeadline(deadline)

	// Closing the connection unblocks whatever read or write the
	// conversation is parked on.
	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watcherDone:
		}
	}()

	if err := p.converse(conn, msg.To, body); err != nil {
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("sending via smtp: %w", err)
	}
	conn.Close()
	return &Receipt{MessageID: id, Provider: p.Name()}, nil
}

// converse drives the SMTP dialogue on an already-dialed connection.
func (p *SMTPProvider) converse(conn net.Conn, to string, body []byte) error {
	c, err := smtp.NewClient(conn, p.host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: p.host}); err != nil {
			return err
		}
	}
	if p.username != "" {
		auth := smtp.PlainAuth("", p.username, p.password, p.host)
		if err := c.Auth(auth); err != nil {
			return err
		}
	}

	if err := c.Mail(p.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (p *SMTPProvider) buildMIME(id string, msg Message) []byte {
	from := p.from
	if p.fromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", p.fromName), p.from)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", id, p.host)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	for k, v := range msg.Headers {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}
	b.WriteString("MIME-Version: 1.0\r\n")

	switch {
	case msg.HTML != "" && msg.Text != "":
		boundary := "b-" + id
		fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
		fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.Text)
		fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.HTML)
		fmt.Fprintf(&b, "--%s--\r\n", boundary)
	case msg.HTML != "":
		fmt.Fprintf(&b, "Content-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", msg.HTML)
	default:
		fmt.Fprintf(&b, "Content-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", msg.Text)
	}

	return []byte(b.String())
}

// Probe dials the relay and reads the server greeting.
func (p *SMTPProvider) Probe(ctx context.Context) error {
	d := net.Dialer{Timeout: p.timeout}
	conn, err := d.DialContext(ctx, "tcp", p.addr())
	if err != nil {
		return fmt.Errorf("dialing smtp relay: %w", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(p.timeout))
	c, err := smtp.NewClient(conn, p.host)
	if err != nil {
		return fmt.Errorf("smtp greeting: %w", err)
	}
	return c.Close()
}
