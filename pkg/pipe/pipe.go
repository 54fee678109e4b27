// Package pipe implements the OpenWebUI-to-n8n connector: it extracts
// the latest user message and session metadata from one inbound chat
// request, posts them to a configured n8n webhook, and relays back a
// single textual reply.
package pipe

import (
	"context"
	"log/slog"
	"time"

	"n8npipe/pkg/config"
	"n8npipe/pkg/jsonmap"
)

const msgNotConfigured = "N8N: SERVER_ADDRESS / WEBHOOK_PATH not configured."

// Pipe is the single entry point: one inbound request in, one reply
// string out. Ordinary failures (transport, upstream HTTP, bad JSON)
// never escape as errors; they become the reply.
type Pipe struct {
	valves     config.Valves
	dispatcher *Dispatcher
	log        *slog.Logger
}

// New builds a pipe from a valve snapshot. The snapshot is immutable for
// the pipe's lifetime; hot reload swaps in a fresh Pipe.
func New(valves config.Valves, log *slog.Logger) *Pipe {
	if log == nil {
		log = slog.Default()
	}

	timeout := time.Duration(valves.TimeoutSeconds) * time.Second

	return &Pipe{
		valves:     valves,
		dispatcher: NewDispatcher(timeout, log),
		log:        log.With("component", "pipe"),
	}
}

// Valves returns the snapshot this pipe was built from.
func (p *Pipe) Valves() config.Valves {
	return p.valves
}

// Configured reports whether a webhook URL can be composed from the
// current valves.
func (p *Pipe) Configured() bool {
	return p.webhookURL() != ""
}

// Run forwards one chat request to n8n and returns the reply string.
// sideMetadata and sideUser are the optional side-channel mappings the
// front-end supplies next to the body; either may be nil.
func (p *Pipe) Run(ctx context.Context, body, sideMetadata, sideUser jsonmap.Map) string {
	url := p.webhookURL()
	if url == "" {
		return msgNotConfigured
	}

	message := LatestUserMessage(body)
	meta := Collect(body, sideMetadata, sideUser, p.valves)
	headers := BuildHeaders(p.valves, meta)

	if p.valves.DebugLogIDs {
		p.log.Info("Dispatching to n8n",
			"chat_id", meta.ChatID,
			"message_id", meta.MessageID,
			"session_id", meta.SessionID,
		)
	}

	payload := buildPayload(p.valves.WebhookEnv, message, meta)
	if p.valves.IncludeDebugRequestBody {
		payload.OpenWebUIBody = body
	}

	return p.dispatcher.Send(ctx, url, headers, payload)
}

func (p *Pipe) webhookURL() string {
	return ComposeWebhookURL(p.valves.ServerAddress, p.valves.WebhookPath, p.valves.WebhookEnv)
}
