package pipe

import (
	"encoding/json"
	"net/http"

	"n8npipe/pkg/config"
)

// BuildHeaders composes the header set for one dispatch: the Accept
// base, the optional static auth header, any extra static headers from
// configuration, and the trace headers carrying the resolved IDs.
func BuildHeaders(valves config.Valves, meta Normalized) http.Header {
	headers := http.Header{}
	headers.Set("Accept", "application/json")

	if valves.AuthHeaderValue != "" {
		headers.Set(valves.AuthHeaderKey, valves.AuthHeaderValue)
	}

	applyExtraHeaders(headers, valves.ExtraHeadersJSON)

	// Trace headers win over anything the extra blob tried to set.
	headers.Set("X-Chat-Id", meta.ChatID)
	headers.Set("X-Message-Id", meta.MessageID)
	headers.Set("X-Session-Id", meta.SessionID)

	return headers
}

// applyExtraHeaders parses the extra-headers valve, a JSON object of
// string-to-string pairs. Malformed JSON, a non-object value, or
// non-string pair values are skipped silently; the feature is
// best-effort and never fails a request.
func applyExtraHeaders(headers http.Header, blob string) {
	if blob == "" {
		return
	}

	var extra map[string]any
	if err := json.Unmarshal([]byte(blob), &extra); err != nil {
		return
	}

	for key, value := range extra {
		if text, ok := value.(string); ok {
			headers.Set(key, text)
		}
	}
}
