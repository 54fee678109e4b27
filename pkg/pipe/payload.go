package pipe

import "n8npipe/pkg/jsonmap"

const (
	agentName    = "N8N AI Agent Connector"
	agentVersion = "1.0.0"
)

// AgentDescriptor identifies this connector to the workflow side.
type AgentDescriptor struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Env     string `json:"env"`
}

// Payload is the JSON body posted to the n8n webhook. Metadata is null
// when the merged mapping is empty; OpenWebUIBody rides along only when
// the debug valve is on.
type Payload struct {
	Agent         AgentDescriptor `json:"agent"`
	Message       string          `json:"message"`
	ChatID        string          `json:"chat_id"`
	MessageID     string          `json:"message_id"`
	SessionID     string          `json:"session_id"`
	User          jsonmap.Map     `json:"user"`
	Metadata      jsonmap.Map     `json:"metadata"`
	OpenWebUIBody jsonmap.Map     `json:"openwebui_body,omitempty"`
}

// buildPayload assembles the outbound payload for one dispatch.
func buildPayload(env, message string, meta Normalized) Payload {
	metadata := meta.Metadata
	if len(metadata) == 0 {
		metadata = nil
	}

	return Payload{
		Agent: AgentDescriptor{
			Name:    agentName,
			Version: agentVersion,
			Env:     env,
		},
		Message:   message,
		ChatID:    meta.ChatID,
		MessageID: meta.MessageID,
		SessionID: meta.SessionID,
		User:      meta.User,
		Metadata:  metadata,
	}
}
