package pipe

import (
	"testing"

	"n8npipe/pkg/config"
	"n8npipe/pkg/jsonmap"
)

func allUserFieldValves() config.Valves {
	valves := config.DefaultValves()
	valves.IncludeUserPicture = true
	return valves
}

func TestCollectChatIDPrecedence(t *testing.T) {
	tests := []struct {
		name         string
		body         jsonmap.Map
		sideMetadata jsonmap.Map
		want         string
	}{
		{
			name: "merged metadata wins over body",
			body: jsonmap.Map{
				"metadata": jsonmap.Map{"chat_id": "from-metadata"},
				"chat_id":  "from-body",
				"chat":     jsonmap.Map{"id": "from-chat"},
			},
			want: "from-metadata",
		},
		{
			name: "camelCase key is second",
			body: jsonmap.Map{
				"metadata": jsonmap.Map{"chatId": "camel"},
				"chat_id":  "from-body",
			},
			want: "camel",
		},
		{
			name: "body chat_id third",
			body: jsonmap.Map{
				"chat_id": "from-body",
				"chat":    jsonmap.Map{"id": "from-chat"},
			},
			want: "from-body",
		},
		{
			name: "nested chat.id last",
			body: jsonmap.Map{"chat": jsonmap.Map{"id": "from-chat"}},
			want: "from-chat",
		},
		{
			name: "side channel overlays body metadata",
			body: jsonmap.Map{"metadata": jsonmap.Map{"chat_id": "from-body-metadata"}},
			sideMetadata: jsonmap.Map{"chat_id": "from-side"},
			want: "from-side",
		},
		{
			name: "no source at all",
			body: jsonmap.Map{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := Collect(tt.body, tt.sideMetadata, nil, config.DefaultValves())
			if meta.ChatID != tt.want {
				t.Fatalf("ChatID = %q, want %q", meta.ChatID, tt.want)
			}
		})
	}
}

func TestCollectSessionIDPrecedence(t *testing.T) {
	body := jsonmap.Map{
		"session_id": "from-body",
		"session":    jsonmap.Map{"id": "from-session"},
	}

	meta := Collect(body, nil, nil, config.DefaultValves())
	if meta.SessionID != "from-body" {
		t.Fatalf("SessionID = %q, want %q", meta.SessionID, "from-body")
	}

	meta = Collect(jsonmap.Map{"session": jsonmap.Map{"id": "from-session"}}, nil, nil, config.DefaultValves())
	if meta.SessionID != "from-session" {
		t.Fatalf("SessionID = %q, want %q", meta.SessionID, "from-session")
	}
}

func TestCollectMessageIDFromLastMessage(t *testing.T) {
	body := jsonmap.Map{
		"messages": []any{
			jsonmap.Map{"id": "m1", "role": "user", "content": "hi"},
			jsonmap.Map{"id": "m2", "role": "assistant", "content": "hello"},
		},
	}

	meta := Collect(body, nil, nil, config.DefaultValves())
	if meta.MessageID != "m2" {
		t.Fatalf("MessageID = %q, want %q", meta.MessageID, "m2")
	}

	// Merged metadata still outranks the message sequence.
	body["metadata"] = jsonmap.Map{"message_id": "from-metadata"}
	meta = Collect(body, nil, nil, config.DefaultValves())
	if meta.MessageID != "from-metadata" {
		t.Fatalf("MessageID = %q, want %q", meta.MessageID, "from-metadata")
	}
}

func TestCollectStringifiesNumericIDs(t *testing.T) {
	body := jsonmap.Map{"metadata": jsonmap.Map{"chat_id": float64(42)}}

	meta := Collect(body, nil, nil, config.DefaultValves())
	if meta.ChatID != "42" {
		t.Fatalf("ChatID = %q, want %q", meta.ChatID, "42")
	}
}

func TestCollectEmptyStringShortCircuits(t *testing.T) {
	// A present empty chat_id in metadata resolves the chain and
	// suppresses the chat.id fallback.
	body := jsonmap.Map{
		"metadata": jsonmap.Map{"chat_id": ""},
		"chat":     jsonmap.Map{"id": "suppressed"},
	}

	meta := Collect(body, nil, nil, config.DefaultValves())
	if meta.ChatID != "" {
		t.Fatalf("ChatID = %q, want empty (short-circuit)", meta.ChatID)
	}
}

func TestCollectNullDoesNotShortCircuit(t *testing.T) {
	body := jsonmap.Map{
		"metadata": jsonmap.Map{"chat_id": nil},
		"chat":     jsonmap.Map{"id": "fallback"},
	}

	meta := Collect(body, nil, nil, config.DefaultValves())
	if meta.ChatID != "fallback" {
		t.Fatalf("ChatID = %q, want %q", meta.ChatID, "fallback")
	}
}

func TestCollectMergeOverlaysPerKey(t *testing.T) {
	body := jsonmap.Map{
		"metadata": jsonmap.Map{"chat_id": "outer", "keep": "outer-value"},
		"openwebui_body": jsonmap.Map{
			"metadata": jsonmap.Map{"chat_id": "nested"},
		},
	}

	meta := Collect(body, jsonmap.Map{"extra": "side"}, nil, config.DefaultValves())
	if meta.ChatID != "nested" {
		t.Fatalf("ChatID = %q, want %q", meta.ChatID, "nested")
	}
	if meta.Metadata["keep"] != "outer-value" {
		t.Fatalf("merge lost untouched key: %v", meta.Metadata)
	}
	if meta.Metadata["extra"] != "side" {
		t.Fatalf("merge lost side-channel key: %v", meta.Metadata)
	}
}

func TestCollectSkipsNonMapMetadataSources(t *testing.T) {
	body := jsonmap.Map{
		"metadata":       "not-a-map",
		"openwebui_body": jsonmap.Map{"metadata": jsonmap.Map{"chat_id": "c1"}},
	}

	meta := Collect(body, nil, nil, config.DefaultValves())
	if meta.ChatID != "c1" {
		t.Fatalf("ChatID = %q, want %q", meta.ChatID, "c1")
	}
}

func TestCollectUserSourcePrecedence(t *testing.T) {
	body := jsonmap.Map{
		"openwebui_body": jsonmap.Map{"user": jsonmap.Map{"id": "nested-user"}},
		"user":           jsonmap.Map{"id": "body-user"},
	}

	meta := Collect(body, nil, jsonmap.Map{"id": "side-user"}, config.DefaultValves())
	if meta.User["id"] != "side-user" {
		t.Fatalf("user.id = %v, want %q", meta.User["id"], "side-user")
	}

	meta = Collect(body, nil, nil, config.DefaultValves())
	if meta.User["id"] != "nested-user" {
		t.Fatalf("user.id = %v, want %q", meta.User["id"], "nested-user")
	}

	delete(body, "openwebui_body")
	meta = Collect(body, nil, nil, config.DefaultValves())
	if meta.User["id"] != "body-user" {
		t.Fatalf("user.id = %v, want %q", meta.User["id"], "body-user")
	}
}

func TestCollectUserIDFallbacks(t *testing.T) {
	// No id in the user source: merged metadata user_id steps in.
	body := jsonmap.Map{
		"metadata": jsonmap.Map{"user_id": "md-user"},
		"user":     jsonmap.Map{"name": "Ada"},
	}

	meta := Collect(body, nil, nil, config.DefaultValves())
	if meta.User["id"] != "md-user" {
		t.Fatalf("user.id = %v, want %q", meta.User["id"], "md-user")
	}

	// Nothing anywhere: empty string, never absent.
	meta = Collect(jsonmap.Map{}, nil, nil, config.DefaultValves())
	if value, ok := meta.User["id"]; !ok || value != "" {
		t.Fatalf("user.id = (%v, %v), want present empty string", value, ok)
	}
}

func TestCollectOptionalUserFields(t *testing.T) {
	source := jsonmap.Map{
		"id":       "u1",
		"name":     "Ada",
		"timezone": "Europe/Zurich",
		"language": "de",
		"location": "ZRH",
		"picture":  "data:image/png;base64,xyz",
	}

	t.Run("all valves enabled", func(t *testing.T) {
		meta := Collect(jsonmap.Map{}, nil, source, allUserFieldValves())
		for _, key := range []string{"name", "timezone", "language", "location", "picture"} {
			if !meta.User.Has(key) {
				t.Fatalf("user missing %q: %v", key, meta.User)
			}
		}
	})

	t.Run("disabled valve suppresses present field", func(t *testing.T) {
		valves := allUserFieldValves()
		valves.IncludeUserTimezone = false

		meta := Collect(jsonmap.Map{}, nil, source, valves)
		if meta.User.Has("timezone") {
			t.Fatalf("timezone included despite disabled valve: %v", meta.User)
		}
		if !meta.User.Has("name") {
			t.Fatalf("name lost: %v", meta.User)
		}
	})

	t.Run("enabled valve without source key stays absent", func(t *testing.T) {
		meta := Collect(jsonmap.Map{}, nil, jsonmap.Map{"id": "u1"}, allUserFieldValves())
		if meta.User.Has("name") {
			t.Fatalf("name materialized without a source: %v", meta.User)
		}
	})

	t.Run("present empty string is forwarded", func(t *testing.T) {
		meta := Collect(jsonmap.Map{}, nil, jsonmap.Map{"id": "u1", "location": ""}, allUserFieldValves())
		if value, ok := meta.User["location"]; !ok || value != "" {
			t.Fatalf("location = (%v, %v), want present empty string", value, ok)
		}
	})
}
