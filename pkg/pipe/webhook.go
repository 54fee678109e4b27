package pipe

import (
	"strings"

	"n8npipe/pkg/config"
)

// ComposeWebhookURL builds the full n8n webhook URL from the configured
// base address and path. An empty base or path after trimming means the
// connector is not configured, reported as an empty string. No
// reachability check happens here.
func ComposeWebhookURL(base, path, env string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	path = strings.Trim(strings.TrimSpace(path), "/")
	if base == "" || path == "" {
		return ""
	}

	segment := "webhook"
	if env == config.WebhookEnvTest {
		segment = "webhook-test"
	}

	return base + "/" + segment + "/" + path
}
