package javascript

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/flowgraph/runtime/internal/record"
)

// Engine runs Code-node scripts. Each Execute call gets a VM pulled from
// the pool and a brand new replacement VM is pushed back in its place, so
// no script ever observes state left behind by a previous record.
type Engine struct {
	pool    *vmPool
	sandbox *Sandbox
	limits  *Limits
	logger  *slog.Logger
}

type EngineConfig struct {
	Limits   *Limits
	PoolSize int
	Logger   *slog.Logger
}

func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{Limits: DefaultLimits(), PoolSize: 8, Logger: slog.Default()}
}

func NewEngine(config *EngineConfig) (*Engine, error) {
	if config == nil {
		config = DefaultEngineConfig()
	}
	if config.Limits == nil {
		config.Limits = DefaultLimits()
	}
	if err := config.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("javascript: invalid limits: %w", err)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sandbox := NewSandbox(config.Limits.MaxCallStackSize)
	return &Engine{
		pool:    newVMPool(config.PoolSize, sandbox, config.Limits),
		sandbox: sandbox,
		limits:  config.Limits,
		logger:  logger,
	}, nil
}

// Result is what a Code node gets back from one script execution.
type Result struct {
	Value       record.Record
	ConsoleLogs []ConsoleEntry
	Duration    time.Duration
}

// Execute runs script once against rec, exposed to the script as the
// global `record` (and `data` as a shorthand), and returns the value of
// the script's top-level `return` statement. The script body is wrapped
// in an IIFE, so a script without one yields null; a trailing bare
// expression is not returned.
func (e *Engine) Execute(ctx context.Context, script string, rec record.Record) (*Result, error) {
	start := time.Now()

	if script == "" {
		return nil, wrapValidation(ErrEmptyScript)
	}
	if err := validateScriptLength(script, e.limits.MaxScriptLength); err != nil {
		return nil, wrapValidation(err)
	}
	if err := e.sandbox.ValidateScript(script); err != nil {
		return nil, wrapValidation(err)
	}

	execCtx, cancel := context.WithTimeout(ctx, e.limits.Timeout)
	defer cancel()

	vm, err := e.pool.get(execCtx)
	if err != nil {
		return nil, fmt.Errorf("javascript: acquire VM: %w", err)
	}
	defer e.pool.put(vm)

	console := NewConsoleCapture()
	if err := console.InstallInRuntime(vm); err != nil {
		return nil, fmt.Errorf("javascript: install console: %w", err)
	}
	if err := vm.Set("record", rec.Native()); err != nil {
		return nil, fmt.Errorf("javascript: inject record: %w", err)
	}
	if err := vm.Set("data", rec.Native()); err != nil {
		return nil, fmt.Errorf("javascript: inject data: %w", err)
	}

	monitor := NewResourceMonitor(e.limits)
	monitor.Start()
	defer monitor.Stop()
	go monitor.Watch(execCtx.Done(), 50*time.Millisecond)

	val, execErr := e.run(execCtx, vm, script, monitor)
	duration := time.Since(start)

	if execErr != nil {
		e.logger.Debug("code node script failed", "error", execErr, "duration", duration)
		return nil, execErr
	}

	result := record.FromNative(exportValue(val))
	e.logger.Debug("code node script executed", "duration", duration, "console_lines", len(console.Logs()))
	return &Result{Value: result, ConsoleLogs: console.Logs(), Duration: duration}, nil
}

func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

func (e *Engine) run(ctx context.Context, vm *goja.Runtime, script string, monitor *ResourceMonitor) (goja.Value, error) {
	wrapped := "(function() {\n" + script + "\n})();"

	type outcome struct {
		val goja.Value
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("script panic: %v", r)}
			}
		}()
		val, err := vm.RunString(wrapped)
		if err != nil {
			done <- outcome{err: wrapExecution(err)}
			return
		}
		done <- outcome{val: val}
	}()

	select {
	case res := <-done:
		return res.val, res.err
	case <-ctx.Done():
		vm.Interrupt("execution timeout")
		return nil, ErrTimeout
	case <-monitor.InterruptChan():
		vm.Interrupt("resource limit exceeded")
		return nil, ErrInterrupted
	}
}

// Close releases all pooled VMs.
func (e *Engine) Close() { e.pool.close() }

// vmPool keeps a warm set of sandboxed runtimes so Execute doesn't pay
// goja.New()'s setup cost on every record.
type vmPool struct {
	ch      chan *goja.Runtime
	sandbox *Sandbox
	limits  *Limits
	mu      sync.Mutex
	closed  bool
}

func newVMPool(size int, sandbox *Sandbox, limits *Limits) *vmPool {
	if size <= 0 {
		size = 8
	}
	p := &vmPool{ch: make(chan *goja.Runtime, size), sandbox: sandbox, limits: limits}
	for i := 0; i < size; i++ {
		p.ch <- p.newVM()
	}
	return p
}

func (p *vmPool) newVM() *goja.Runtime {
	vm := goja.New()
	_ = p.sandbox.ApplyToRuntime(vm)
	vm.SetMaxCallStackSize(p.limits.MaxCallStackSize)
	return vm
}

func (p *vmPool) get(ctx context.Context) (*goja.Runtime, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}
	select {
	case vm := <-p.ch:
		return vm, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return p.newVM(), nil
	}
}

// put discards the used VM and replaces it with a fresh one, guaranteeing
// the next record never sees state a prior script left behind.
func (p *vmPool) put(*goja.Runtime) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.ch <- p.newVM():
	default:
	}
}

func (p *vmPool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.ch)
}
