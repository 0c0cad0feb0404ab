package email

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/edustack/academy-api/internal/config"
)

func smtpConfig(port int, timeoutSeconds int) appconfig.EmailConfig {
	return appconfig.EmailConfig{
		Provider:       "smtp",
		SMTPHost:       "127.0.0.1",
		SMTPPort:       port,
		FromEmail:      "no-reply@academy.test",
		FromName:       "Academy",
		TimeoutSeconds: timeoutSeconds,
	}
}

// fakeRelay speaks just enough SMTP for one transaction and delivers the
// received DATA payload on the returned channel at QUIT.
func fakeRelay(t *testing.T, ln net.Listener) <-chan string {
	t.Helper()
	dataCh := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		br := bufio.NewReader(conn)
		fmt.Fprintf(conn, "220 relay ready\r\n")

		var data strings.Builder
		inData := false
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")
			if inData {
				if line == "." {
					inData = false
					fmt.Fprintf(conn, "250 queued\r\n")
					continue
				}
				data.WriteString(line + "\n")
				continue
			}
			switch {
			case strings.HasPrefix(line, "EHLO"):
				fmt.Fprintf(conn, "250-relay\r\n250 8BITMIME\r\n")
			case strings.HasPrefix(line, "HELO"):
				fmt.Fprintf(conn, "250 relay\r\n")
			case strings.HasPrefix(line, "MAIL"), strings.HasPrefix(line, "RCPT"):
				fmt.Fprintf(conn, "250 ok\r\n")
			case strings.HasPrefix(line, "DATA"):
				fmt.Fprintf(conn, "354 end with .\r\n")
				inData = true
			case strings.HasPrefix(line, "QUIT"):
				fmt.Fprintf(conn, "221 bye\r\n")
				dataCh <- data.String()
				return
			default:
				fmt.Fprintf(conn, "250 ok\r\n")
			}
		}
	}()
	return dataCh
}

func TestSMTPSendConversation(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	dataCh := fakeRelay(t, ln)

	p := NewSMTP(smtpConfig(ln.Addr().(*net.TCPAddr).Port, 5))
	receipt, err := p.Send(context.Background(), Message{
		To:      "user@example.com",
		Subject: "hello",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "smtp", receipt.Provider)
	assert.NotEmpty(t, receipt.MessageID)

	select {
	case data := <-dataCh:
		assert.Contains(t, data, "Subject: hello")
		assert.Contains(t, data, "multipart/alternative")
		assert.Contains(t, data, "<p>hi</p>")
	case <-time.After(2 * time.Second):
		t.Fatal("relay never received the message")
	}
}

// A relay that accepts the connection but never sends a greeting must not
// strand the call past its context deadline, and the abandoned conversation
// must actually terminate rather than leak.
func TestSMTPSendCancellationTerminatesCall(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// Accept and hold the connection silently.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(5 * time.Second)
	}()

	p := NewSMTP(smtpConfig(ln.Addr().(*net.TCPAddr).Port, 30))

	before := runtime.NumGoroutine()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = p.Send(ctx, Message{To: "user@example.com", Subject: "s", Text: "t"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second, "send must return once the context fires")

	// No goroutine stays parked on the dead connection.
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+1
	}, 2*time.Second, 50*time.Millisecond)
}

func TestSMTPContextDeadlineTightensConnectionDeadline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(5 * time.Second)
	}()

	p := NewSMTP(smtpConfig(ln.Addr().(*net.TCPAddr).Port, 60))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = p.Send(ctx, Message{To: "user@example.com", Subject: "s", Text: "t"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSMTPInitializeRequiresHostPort(t *testing.T) {
	p := NewSMTP(appconfig.EmailConfig{Provider: "smtp"})
	assert.Error(t, p.Initialize(context.Background()))
}
