package expression

import (
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/flowgraph/runtime/internal/record"
)

// formulaCacheSize bounds the compiled-program LRU every Formula keeps.
// A workflow reuses a small fixed set of expressions across many
// records, so most evaluations become a cache lookup plus a VM run
// instead of a fresh expr-lang compile.
const formulaCacheSize = 256

// Recorder receives formula evaluation and cache observations; a caller
// that wants Prometheus visibility into expression evaluation (e.g.
// *metrics.Metrics) satisfies this without expression importing metrics
// directly.
type Recorder interface {
	RecordFormulaEvaluation(status string, durationSeconds float64)
	RecordFormulaCacheHit()
	RecordFormulaCacheMiss()
}

// Formula compiles and runs expr-lang expressions against a record's
// fields, so Router can express conditions over record data by field
// name with a small builtin function set in scope.
// Programs are compiled with undefined variables allowed, since the
// same expression runs against records of differing shape; a field the
// record lacks simply evaluates as nil, the same "absent reads as
// null" rule Search follows.
type Formula struct {
	programs *lru.Cache[string, *vm.Program]
	rec      Recorder
}

// NewFormula constructs a Formula with the builtin function set and no
// recording.
func NewFormula() *Formula {
	programs, err := lru.New[string, *vm.Program](formulaCacheSize)
	if err != nil {
		// Only a non-positive size can fail, and formulaCacheSize is a
		// positive constant.
		panic(err)
	}
	return &Formula{programs: programs}
}

// NewInstrumentedFormula is NewFormula plus a Recorder observing every
// evaluation's status, duration, and cache hit/miss.
func NewInstrumentedFormula(rec Recorder) *Formula {
	f := NewFormula()
	f.rec = rec
	return f
}

// Eval runs src against rec's fields as the expression environment (a
// non-map record evaluates against the builtins alone) and returns the
// result as a Record.
func (f *Formula) Eval(src string, rec record.Record) (record.Record, error) {
	start := time.Now()
	out, err := f.eval(src, rec)
	if f.rec != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		f.rec.RecordFormulaEvaluation(status, time.Since(start).Seconds())
	}
	return out, err
}

func (f *Formula) eval(src string, rec record.Record) (record.Record, error) {
	if src == "" {
		return record.Null, fmt.Errorf("expression: empty expression")
	}

	program, err := f.compile(src)
	if err != nil {
		return record.Null, fmt.Errorf("expression: compile %q: %w", src, err)
	}

	env := make(map[string]interface{}, 24)
	installBuiltins(env)
	if fields, ok := rec.Map(); ok {
		for k, v := range fields {
			env[k] = v.Native()
		}
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return record.Null, fmt.Errorf("expression: run %q: %w", src, err)
	}
	return record.FromNative(result), nil
}

// compile returns the cached program for src, compiling on first sight.
func (f *Formula) compile(src string) (*vm.Program, error) {
	if program, ok := f.programs.Get(src); ok {
		if f.rec != nil {
			f.rec.RecordFormulaCacheHit()
		}
		return program, nil
	}
	if f.rec != nil {
		f.rec.RecordFormulaCacheMiss()
	}
	program, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	f.programs.Add(src, program)
	return program, nil
}

// EvalBool runs src like Eval and coerces the result to a bool the way
// Router/Switch condition branches expect, via Truthy.
func (f *Formula) EvalBool(src string, rec record.Record) (bool, error) {
	result, err := f.Eval(src, rec)
	if err != nil {
		return false, err
	}
	return Truthy(result), nil
}

// Truthy reports whether v should be treated as true in a condition:
// booleans by value, non-zero numbers, non-empty strings, non-empty
// slices/maps; null is false.
func Truthy(v record.Record) bool {
	if b, ok := v.Bool(); ok {
		return b
	}
	if n, ok := v.Number(); ok {
		return n != 0
	}
	if s, ok := v.StringValue(); ok {
		return s != ""
	}
	if v.IsNull() {
		return false
	}
	return v.Len() > 0
}

// installBuiltins adds the helpers workflow expressions may call beyond
// expr-lang's own builtin set (which already covers upper/lower/trim,
// abs/ceil/floor/round, min/max, and len): string concatenation and
// slicing over loosely-typed record values, plus the date arithmetic
// condition expressions tend to need.
func installBuiltins(env map[string]interface{}) {
	env["concat"] = func(parts ...interface{}) string {
		var b strings.Builder
		for _, p := range parts {
			b.WriteString(ToString(record.FromNative(p)))
		}
		return b.String()
	}
	env["substr"] = func(s string, start, length int) string {
		runes := []rune(s)
		if start < 0 || start >= len(runes) || length <= 0 {
			return ""
		}
		end := start + length
		if end > len(runes) {
			end = len(runes)
		}
		return string(runes[start:end])
	}

	env["now"] = func() time.Time { return time.Now().UTC() }
	env["dateFormat"] = func(t time.Time, layout string) string { return t.Format(layout) }
	env["dateParse"] = func(value, layout string) (time.Time, error) {
		t, err := time.Parse(layout, value)
		if err != nil {
			return time.Time{}, fmt.Errorf("dateParse: %w", err)
		}
		return t, nil
	}
	env["addDays"] = func(t time.Time, days int) time.Time { return t.AddDate(0, 0, days) }
}
