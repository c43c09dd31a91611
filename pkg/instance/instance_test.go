package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDPrefersEnvironment(t *testing.T) {
	t.Setenv(EnvWorkerID, "price-worker-2")
	assert.Equal(t, "price-worker-2", ID())
}

func TestIDFallsBackToHost(t *testing.T) {
	t.Setenv(EnvWorkerID, "")
	assert.NotEmpty(t, ID())
}
