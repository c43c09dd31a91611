package instance

import (
	"os"

	"github.com/angelmondragon/bullion-backend/pkg/env"
)

// EnvWorkerID overrides the generated instance identifier.
const EnvWorkerID = "BULLION_WORKER_ID"

const defaultID = "worker-0"

// ID names this process in logs and lock ownership. Falls back to the hostname.
func ID() string {
	fallback := defaultID
	if host, err := os.Hostname(); err == nil && host != "" {
		fallback = host
	}
	return env.Get(EnvWorkerID, fallback)
}
