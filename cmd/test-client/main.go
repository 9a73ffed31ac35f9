// Command test-client submits messages to the esp-mailer SMTP front door so
// the relay path (AUTH, DATA, bridge, provider) can be exercised end to end.
//
//	test-client -user relay -password secret -from a@example.com -to b@example.com
//	test-client -tls none -html -count 10 -rate 5 -from a@example.com -to b@example.com
package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sungwon/esp-mailer/internal/message"
)

// listFlag collects a repeatable address flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ", ") }

func (l *listFlag) Set(value string) error {
	*l = append(*l, value)
	return nil
}

// draft is the content of one submitted message.
type draft struct {
	From    string
	To      []string
	Cc      []string
	Subject string
	Body    string
	HTML    bool
}

// recipients returns every envelope recipient. The relay only delivers the
// first To address; the rest still exercise RCPT handling.
func (d draft) recipients() []string {
	return append(append([]string{}, d.To...), d.Cc...)
}

type dialFunc func(addr string, tc *tls.Config) (*gosmtp.Client, error)

var dialers = map[string]dialFunc{
	"none":     func(addr string, _ *tls.Config) (*gosmtp.Client, error) { return gosmtp.Dial(addr) },
	"implicit": gosmtp.DialTLS,
	"starttls": gosmtp.DialStartTLS,
}

func main() {
	var (
		host     = flag.String("host", "localhost", "SMTP front door host")
		port     = flag.Int("port", 2525, "SMTP front door port")
		tlsMode  = flag.String("tls", "starttls", "TLS mode: starttls, implicit, none")
		insecure = flag.Bool("insecure", false, "skip TLS certificate verification")
		user     = flag.String("user", "", "SMTP AUTH username")
		password = flag.String("password", "", "SMTP AUTH password")
		count    = flag.Int("count", 1, "number of messages to submit")
		rate     = flag.Float64("rate", 1, "messages per second when count > 1 (0 = unthrottled)")
		d        draft
		to, cc   listFlag
	)
	flag.StringVar(&d.From, "from", "", "sender address")
	flag.Var(&to, "to", "recipient address (repeatable)")
	flag.Var(&cc, "cc", "cc address (repeatable)")
	flag.StringVar(&d.Subject, "subject", "esp-mailer test", "subject line")
	flag.StringVar(&d.Body, "body", "This is a test message from the esp-mailer test-client.", "message body")
	flag.BoolVar(&d.HTML, "html", false, "send the body as HTML with a generated plain-text alternative")
	flag.Parse()
	d.To, d.Cc = to, cc

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	if d.From == "" || len(d.To) == 0 {
		log.Error().Msg("-from and at least one -to are required")
		flag.Usage()
		os.Exit(2)
	}
	dial, ok := dialers[*tlsMode]
	if !ok {
		log.Error().Str("tls", *tlsMode).Msg("unknown TLS mode (use starttls, implicit or none)")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", *host, *port)
	tc := &tls.Config{ServerName: *host, InsecureSkipVerify: *insecure} //nolint:gosec // self-signed dev certs
	var auth sasl.Client
	if *user != "" {
		auth = sasl.NewPlainClient("", *user, *password)
	}
	if len(d.To) > 1 {
		log.Warn().Strs("ignored", d.To[1:]).Msg("the relay delivers only the first To recipient")
	}

	log.Info().Str("addr", addr).Str("tls", *tlsMode).Int("count", *count).Msg("submitting")
	res := runBatch(ctx, *count, *rate, func(seq int) error {
		m := d
		if *count > 1 {
			m.Subject = fmt.Sprintf("%s [%d/%d]", d.Subject, seq, *count)
		}
		raw, err := buildMessage(m, time.Now())
		if err != nil {
			return err
		}
		return submit(addr, dial, tc, auth, m, raw)
	}, log)

	log.Info().
		Int("sent", res.sent).
		Int("failed", res.failed).
		Dur("elapsed", res.elapsed).
		Msg("done")
	if res.failed > 0 || res.sent < *count {
		os.Exit(1)
	}
}

type batchResult struct {
	sent    int
	failed  int
	elapsed time.Duration
}

// runBatch calls send count times, paced at rate per second, and stops early
// when ctx is cancelled.
func runBatch(ctx context.Context, count int, rate float64, send func(seq int) error, log zerolog.Logger) batchResult {
	var res batchResult
	start := time.Now()

	var tick <-chan time.Time
	if count > 1 && rate > 0 {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / rate))
		defer ticker.Stop()
		tick = ticker.C
	}

	for seq := 1; seq <= count; seq++ {
		if seq > 1 && tick != nil {
			select {
			case <-ctx.Done():
				log.Warn().Int("remaining", count-seq+1).Msg("interrupted")
				res.elapsed = time.Since(start)
				return res
			case <-tick:
			}
		}
		if ctx.Err() != nil {
			break
		}

		t0 := time.Now()
		if err := send(seq); err != nil {
			res.failed++
			log.Error().Err(err).Int("seq", seq).Dur("took", time.Since(t0)).Msg("submit failed")
			continue
		}
		res.sent++
		log.Info().Int("seq", seq).Dur("took", time.Since(t0)).Msg("accepted")
	}
	res.elapsed = time.Since(start)
	return res
}

func submit(addr string, dial dialFunc, tc *tls.Config, auth sasl.Client, d draft, raw []byte) error {
	c, err := dial(addr, tc)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer c.Close()

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := c.Mail(d.From, nil); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range d.recipients() {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("end data: %w", err)
	}
	return c.Quit()
}

// buildMessage renders d as RFC 5322 text. HTML drafts become
// multipart/alternative with a plain-text part derived from the markup.
func buildMessage(d draft, now time.Time) ([]byte, error) {
	var hdr bytes.Buffer
	fmt.Fprintf(&hdr, "From: %s\r\n", d.From)
	fmt.Fprintf(&hdr, "To: %s\r\n", strings.Join(d.To, ", "))
	if len(d.Cc) > 0 {
		fmt.Fprintf(&hdr, "Cc: %s\r\n", strings.Join(d.Cc, ", "))
	}
	fmt.Fprintf(&hdr, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", d.Subject))
	fmt.Fprintf(&hdr, "Date: %s\r\n", now.Format(time.RFC1123Z))
	fmt.Fprintf(&hdr, "Message-ID: <%s@%s>\r\n", uuid.NewString(), domainOf(d.From))
	hdr.WriteString("MIME-Version: 1.0\r\n")
	hdr.WriteString("X-Mailer: esp-mailer-test-client\r\n")

	if !d.HTML {
		hdr.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		hdr.WriteString(d.Body)
		hdr.WriteString("\r\n")
		return hdr.Bytes(), nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	parts := []struct{ ctype, content string }{
		{"text/plain; charset=UTF-8", message.PlainText(d.Body)},
		{"text/html; charset=UTF-8", d.Body},
	}
	for _, p := range parts {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.ctype}})
		if err != nil {
			return nil, fmt.Errorf("create %s part: %w", p.ctype, err)
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, fmt.Errorf("write %s part: %w", p.ctype, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	fmt.Fprintf(&hdr, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
	hdr.Write(body.Bytes())
	return hdr.Bytes(), nil
}

func domainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return strings.Trim(addr[i+1:], "> ")
	}
	return "localhost"
}
