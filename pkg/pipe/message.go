package pipe

import (
	"strings"

	"n8npipe/pkg/jsonmap"
)

// LatestUserMessage extracts the most recent user message from the
// inbound body. It scans messages from the end for the first entry whose
// role is "user" (any casing) and returns its content; with no user
// entry it falls back to the last entry's content regardless of role.
// An empty or absent sequence yields an empty string.
func LatestUserMessage(body jsonmap.Map) string {
	messages := body.Slice("messages")
	if len(messages) == 0 {
		return ""
	}

	for i := len(messages) - 1; i >= 0; i-- {
		entry, ok := jsonmap.AsMap(messages[i])
		if !ok {
			continue
		}
		if role, _ := entry.String("role"); strings.EqualFold(role, "user") {
			return messageContent(entry)
		}
	}

	last, ok := jsonmap.AsMap(messages[len(messages)-1])
	if !ok {
		return ""
	}

	return messageContent(last)
}

func messageContent(entry jsonmap.Map) string {
	content, ok := entry.Value("content")
	if !ok {
		return ""
	}

	return jsonmap.Stringify(content)
}
