package engine

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the engine's own small environment-driven configuration,
// scoped to the four knobs the Stream Executor actually needs (spec
// §4.2/§5): everything else — persistence, auth, the surrounding SaaS
// product's settings — lives outside the core and is out of scope here.
type Config struct {
	// EdgeCapacity is the bounded channel size for every edge.
	EdgeCapacity int
	// DebugLimit caps how many records each edge tap forwards
	// downstream; 0 means unlimited.
	DebugLimit int
	// MaxDepth bounds how many levels deep ExecuteWorkflow/Loop may
	// nest, guarding against a workflow that recursively invokes itself.
	MaxDepth int
	// DefaultNodeTimeout is applied by callers that want a ceiling on a
	// single node's run when the workflow document does not specify
	// one itself (e.g. Wait's timeout_ms); the engine does not enforce
	// this directly, since only Wait has a documented per-round timeout.
	DefaultNodeTimeout time.Duration
}

// Default returns the engine's built-in defaults, matching
// DefaultEdgeCapacity and an unlimited debug limit.
func Default() Config {
	return Config{
		EdgeCapacity:       DefaultEdgeCapacity,
		DebugLimit:         0,
		MaxDepth:           32,
		DefaultNodeTimeout: 30 * time.Second,
	}
}

// Load builds a Config from environment variables, falling back to
// Default()'s values for anything unset or invalid:
//
//	FLOWGRAPH_EDGE_CAPACITY       (default 100)
//	FLOWGRAPH_DEBUG_LIMIT         (default 0, unlimited)
//	FLOWGRAPH_MAX_DEPTH           (default 32)
//	FLOWGRAPH_NODE_TIMEOUT_MS     (default 30000)
func Load() Config {
	cfg := Default()
	cfg.EdgeCapacity = envBoundedInt("FLOWGRAPH_EDGE_CAPACITY", cfg.EdgeCapacity, 1_000_000)
	cfg.DebugLimit = envBoundedInt("FLOWGRAPH_DEBUG_LIMIT", cfg.DebugLimit, 1_000_000)
	cfg.MaxDepth = envBoundedInt("FLOWGRAPH_MAX_DEPTH", cfg.MaxDepth, 1_000)
	ms := envBoundedInt("FLOWGRAPH_NODE_TIMEOUT_MS", int(cfg.DefaultNodeTimeout/time.Millisecond), 3_600_000)
	cfg.DefaultNodeTimeout = time.Duration(ms) * time.Millisecond
	return cfg
}

// envBoundedInt reads name as a non-negative integer capped at max,
// falling back to fallback when the variable is unset, unparseable,
// negative, or over the cap. Parsing goes through 32 bits so an absurd
// value cannot wrap on a 32-bit build.
func envBoundedInt(name string, fallback, max int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || v < 0 || v > int64(max) {
		return fallback
	}
	return int(v)
}

// Validate reports the first configuration error found, if any.
func (c Config) Validate() error {
	if c.EdgeCapacity <= 0 {
		return fmt.Errorf("engine: config: edge capacity must be positive, got %d", c.EdgeCapacity)
	}
	if c.DebugLimit < 0 {
		return fmt.Errorf("engine: config: debug limit must be non-negative, got %d", c.DebugLimit)
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("engine: config: max depth must be positive, got %d", c.MaxDepth)
	}
	return nil
}

// String formats the config for structured logging.
func (c Config) String() string {
	return "edge_capacity=" + strconv.Itoa(c.EdgeCapacity) +
		" debug_limit=" + strconv.Itoa(c.DebugLimit) +
		" max_depth=" + strconv.Itoa(c.MaxDepth) +
		" default_node_timeout=" + c.DefaultNodeTimeout.String()
}
