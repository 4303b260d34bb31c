package engine_test

import (
	"testing"
	"time"

	"github.com/flowgraph/runtime/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := engine.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, engine.DefaultEdgeCapacity, cfg.EdgeCapacity)
	assert.Equal(t, 0, cfg.DebugLimit)
}

func TestLoadUsesEnvOverrides(t *testing.T) {
	t.Setenv("FLOWGRAPH_EDGE_CAPACITY", "250")
	t.Setenv("FLOWGRAPH_DEBUG_LIMIT", "10")
	t.Setenv("FLOWGRAPH_MAX_DEPTH", "4")
	t.Setenv("FLOWGRAPH_NODE_TIMEOUT_MS", "5000")

	cfg := engine.Load()

	assert.Equal(t, 250, cfg.EdgeCapacity)
	assert.Equal(t, 10, cfg.DebugLimit)
	assert.Equal(t, 4, cfg.MaxDepth)
	assert.Equal(t, 5*time.Second, cfg.DefaultNodeTimeout)
}

func TestLoadFallsBackOnInvalidEnv(t *testing.T) {
	t.Setenv("FLOWGRAPH_EDGE_CAPACITY", "not-a-number")

	cfg := engine.Load()

	assert.Equal(t, engine.DefaultEdgeCapacity, cfg.EdgeCapacity)
}

func TestValidateRejectsNonPositiveEdgeCapacity(t *testing.T) {
	cfg := engine.Default()
	cfg.EdgeCapacity = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeDebugLimit(t *testing.T) {
	cfg := engine.Default()
	cfg.DebugLimit = -1
	assert.Error(t, cfg.Validate())
}

func TestConfigStringIncludesAllFields(t *testing.T) {
	cfg := engine.Default()
	s := cfg.String()
	assert.Contains(t, s, "edge_capacity=")
	assert.Contains(t, s, "debug_limit=")
	assert.Contains(t, s, "max_depth=")
	assert.Contains(t, s, "default_node_timeout=")
}
