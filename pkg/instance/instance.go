package instance

import (
	"os"
	"strings"
)

// GetID names the running process for logs: COFFEESHOP_WORKER_ID, then the
// platform dyno name, then the hostname.
func GetID() string {
	for _, key := range []string{"COFFEESHOP_WORKER_ID", "DYNO"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
