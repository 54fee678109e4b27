package pipe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	connectTimeout    = 10 * time.Second
	maxErrorBodyRunes = 600

	msgEmptyBody     = "n8n returned an empty body."
	msgMissingOutput = "n8n response missing 'output'."
)

// Dispatcher performs the single webhook POST and folds every outcome
// into one reply string: transport failures, upstream HTTP errors,
// unparsable bodies, and the happy path all terminate here.
type Dispatcher struct {
	client *http.Client
	log    *slog.Logger
}

// NewDispatcher builds a dispatcher with a bounded read timeout. The
// connect timeout is fixed short so an unreachable n8n fails fast.
func NewDispatcher(timeout time.Duration, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: connectTimeout,
	}

	return &Dispatcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		log: log.With("component", "pipe.dispatcher"),
	}
}

// Send posts the payload and interprets the response. The returned
// string is always the final reply; there is no separate error channel
// and no retry.
func (d *Dispatcher) Send(ctx context.Context, url string, headers http.Header, payload Payload) string {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("n8n error: %v", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Sprintf("n8n error: %v", err)
	}
	for key, values := range headers {
		for _, value := range values {
			request.Header.Add(key, value)
		}
	}
	request.Header.Set("Content-Type", "application/json")

	startedAt := time.Now()
	d.log.Debug("Webhook request started", "url", url, "payload_bytes", len(body))

	response, err := d.client.Do(request)
	if err != nil {
		d.log.Debug("Webhook request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return fmt.Sprintf("n8n error: %v", err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		d.log.Debug("Webhook response unreadable", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return fmt.Sprintf("n8n error: %v", err)
	}

	d.log.Debug("Webhook request completed",
		"duration_ms", time.Since(startedAt).Milliseconds(),
		"status", response.StatusCode,
		"response_bytes", len(responseBody),
	)

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Sprintf("n8n HTTP %d: %s", response.StatusCode, truncateBody(responseBody))
	}

	return interpretReply(responseBody)
}

// interpretReply resolves the 2xx outcomes: not-JSON bodies pass through
// as raw text, a JSON object with a non-null output field yields that
// value's string form, and everything else is the fixed missing-output
// message.
func interpretReply(body []byte) string {
	if !gjson.ValidBytes(body) {
		if len(body) == 0 {
			return msgEmptyBody
		}
		return string(body)
	}

	parsed := gjson.ParseBytes(body)
	if parsed.IsObject() {
		output := parsed.Get("output")
		if output.Exists() && output.Type != gjson.Null {
			return output.String()
		}
	}

	return msgMissingOutput
}

// truncateBody trims the upstream error body to a diagnostic-sized
// excerpt, cutting on runes so multibyte text stays intact.
func truncateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	runes := []rune(text)
	if len(runes) <= maxErrorBodyRunes {
		return text
	}

	return string(runes[:maxErrorBodyRunes]) + "…"
}
