package pipe

import (
	"n8npipe/pkg/config"
	"n8npipe/pkg/jsonmap"
)

// Normalized carries the identifiers and user bundle forwarded to n8n as
// trace headers and payload fields. The three IDs and User["id"] are
// always present as strings, possibly empty.
type Normalized struct {
	ChatID    string
	MessageID string
	SessionID string
	User      jsonmap.Map
	Metadata  jsonmap.Map
}

// candidate is one lookup in a precedence chain. It reports the value
// and whether its source actually carries the key.
type candidate func() (any, bool)

// firstOf evaluates candidates in order and returns the first value that
// is present and non-null. A present empty string or zero resolves the
// chain and suppresses later candidates.
func firstOf(candidates ...candidate) any {
	for _, lookup := range candidates {
		if value, ok := lookup(); ok && value != nil {
			return value
		}
	}

	return nil
}

func keyOf(source jsonmap.Map, key string) candidate {
	return func() (any, bool) {
		return source.Value(key)
	}
}

// Collect resolves NormalizedMetadata from the inbound body plus the
// optional side-channel metadata and user mappings. Each identifier is
// tried against its sources from most to least authoritative; every hit
// is stringified so numeric IDs survive.
func Collect(body, sideMetadata, sideUser jsonmap.Map, valves config.Valves) Normalized {
	merged := mergeMetadata(body, sideMetadata)

	chatID := firstOf(
		keyOf(merged, "chat_id"),
		keyOf(merged, "chatId"),
		keyOf(body, "chat_id"),
		keyOf(body.Map("chat"), "id"),
	)

	messageID := firstOf(
		keyOf(merged, "message_id"),
		keyOf(merged, "messageId"),
		lastMessageID(body),
	)

	sessionID := firstOf(
		keyOf(merged, "session_id"),
		keyOf(merged, "sessionId"),
		keyOf(body, "session_id"),
		keyOf(body.Map("session"), "id"),
	)

	userSource := resolveUserSource(body, sideUser)

	userID := firstOf(
		keyOf(userSource, "id"),
		keyOf(merged, "user_id"),
		keyOf(body.Map("user"), "id"),
	)

	user := jsonmap.Map{"id": jsonmap.Stringify(userID)}
	includeUserField(user, userSource, "name", valves.IncludeUserName)
	includeUserField(user, userSource, "timezone", valves.IncludeUserTimezone)
	includeUserField(user, userSource, "language", valves.IncludeUserLanguage)
	includeUserField(user, userSource, "location", valves.IncludeUserLocation)
	includeUserField(user, userSource, "picture", valves.IncludeUserPicture)

	return Normalized{
		ChatID:    jsonmap.Stringify(chatID),
		MessageID: jsonmap.Stringify(messageID),
		SessionID: jsonmap.Stringify(sessionID),
		User:      user,
		Metadata:  merged,
	}
}

// mergeMetadata overlays the known metadata sources per key, later
// sources overwriting earlier ones. Non-map sources are skipped.
func mergeMetadata(body, sideMetadata jsonmap.Map) jsonmap.Map {
	merged := jsonmap.Map{}
	for _, source := range []jsonmap.Map{
		body.Map("metadata"),
		body.Map("openwebui_body").Map("metadata"),
		sideMetadata,
	} {
		if source != nil {
			merged.Overlay(source)
		}
	}

	return merged
}

// lastMessageID yields the id of the last messages entry, when the
// sequence is non-empty and the entry is an object carrying one.
func lastMessageID(body jsonmap.Map) candidate {
	return func() (any, bool) {
		messages := body.Slice("messages")
		if len(messages) == 0 {
			return nil, false
		}

		last, ok := jsonmap.AsMap(messages[len(messages)-1])
		if !ok {
			return nil, false
		}

		return last.Value("id")
	}
}

// resolveUserSource picks the first mapping among the side-channel user,
// the nested openwebui_body user, and the body user.
func resolveUserSource(body, sideUser jsonmap.Map) jsonmap.Map {
	if sideUser != nil {
		return sideUser
	}
	if nested := body.Map("openwebui_body").Map("user"); nested != nil {
		return nested
	}
	if direct := body.Map("user"); direct != nil {
		return direct
	}

	return jsonmap.Map{}
}

// includeUserField copies one optional user field when its valve is
// enabled and the key is present in the source. Presence counts, not
// truthiness: an explicit empty string is still forwarded.
func includeUserField(user, source jsonmap.Map, key string, enabled bool) {
	if !enabled {
		return
	}

	if value, ok := source.Value(key); ok {
		user[key] = value
	}
}
