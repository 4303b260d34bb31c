package javascript

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// forbiddenGlobals are removed from every VM: no filesystem, network, or
// process access, and no dynamic code generation.
var forbiddenGlobals = []string{
	"require", "module", "exports", "__dirname", "__filename",
	"process", "Buffer", "global", "globalThis",
	"window", "document", "location", "navigator", "fetch", "XMLHttpRequest", "WebSocket",
	"eval", "Function",
}

var dangerousPatterns = []string{
	"new function", "eval(", "constructor[", ".constructor(", "__proto__", "prototype.constructor",
}

// Sandbox strips a goja.Runtime down to pure computation: data in, data
// out, nothing that reaches outside the VM.
type Sandbox struct {
	maxCallStackSize int
}

func NewSandbox(maxCallStackSize int) *Sandbox {
	if maxCallStackSize <= 0 {
		maxCallStackSize = DefaultMaxCallStackSize
	}
	return &Sandbox{maxCallStackSize: maxCallStackSize}
}

func (s *Sandbox) ApplyToRuntime(vm *goja.Runtime) error {
	vm.SetMaxCallStackSize(s.maxCallStackSize)
	for _, name := range forbiddenGlobals {
		if val := vm.Get(name); val != nil && !goja.IsUndefined(val) {
			_ = vm.Set(name, goja.Undefined())
		}
	}
	return nil
}

// ValidateScript rejects scripts that try to route around the sandbox via
// string-built code generation or prototype-chain escapes.
func (s *Sandbox) ValidateScript(script string) error {
	lower := strings.ToLower(script)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("%w: %s", ErrForbiddenOperation, pattern)
		}
	}
	return nil
}

// ConsoleCapture records console.log/warn/error calls made by a script so
// the Code node can surface them as part of its debug trace.
type ConsoleCapture struct {
	logs []ConsoleEntry
}

type ConsoleEntry struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func NewConsoleCapture() *ConsoleCapture {
	return &ConsoleCapture{}
}

func (c *ConsoleCapture) InstallInRuntime(vm *goja.Runtime) error {
	console := vm.NewObject()
	makeLogger := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = fmt.Sprintf("%v", arg.Export())
			}
			c.logs = append(c.logs, ConsoleEntry{Level: level, Message: strings.Join(parts, " ")})
			return goja.Undefined()
		}
	}
	for method, level := range map[string]string{
		"log": "info", "info": "info", "warn": "warn", "error": "error", "debug": "debug",
	} {
		if err := console.Set(method, makeLogger(level)); err != nil {
			return fmt.Errorf("console.%s: %w", method, err)
		}
	}
	return vm.Set("console", console)
}

func (c *ConsoleCapture) Logs() []ConsoleEntry { return c.logs }
