package expression

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/flowgraph/runtime/internal/record"
)

var interpolationRegex = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Render replaces every {{path.to.value}} placeholder in tmpl with the
// value found by Search against rec, rendered with ToString. A path that
// resolves to nothing leaves the placeholder untouched, matching the
// teacher's "return the original if not found" behavior so a partially
// wrong template is still diagnosable from its output.
func Render(tmpl string, rec record.Record) string {
	return interpolationRegex.ReplaceAllStringFunc(tmpl, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-2])
		val := Search(path, rec)
		if val.IsNull() && !hasNullLeaf(path, rec) {
			return match
		}
		return ToString(val)
	})
}

// hasNullLeaf distinguishes "path resolved to an explicit null" from
// "path does not exist", so Render only leaves {{...}} untouched in the
// latter case.
func hasNullLeaf(path string, rec record.Record) bool {
	current := rec
	for _, part := range splitPath(path) {
		if m := arrayIndexRegex.FindStringSubmatch(part); m != nil {
			idx, err := strconv.Atoi(m[2])
			if err != nil {
				return false
			}
			arr, ok := current.Get(m[1]).Slice()
			if !ok || idx >= len(arr) {
				return false
			}
			current = arr[idx]
			continue
		}
		m, ok := current.Map()
		if !ok {
			return false
		}
		if _, exists := m[part]; !exists {
			return false
		}
		current = current.Get(part)
	}
	return true
}

// RenderRecord walks tmpl recursively, rendering every string leaf as a
// template against rec via RenderFull and leaving every other leaf
// untouched. This is how SetData/Return turn a configured value — which
// may be a whole nested object containing {{path}} placeholders at any
// depth — into a concrete record per input.
func RenderRecord(tmpl record.Record, rec record.Record) record.Record {
	if s, ok := tmpl.StringValue(); ok {
		return RenderFull(s, rec)
	}
	if arr, ok := tmpl.Slice(); ok {
		out := make([]record.Record, len(arr))
		for i, v := range arr {
			out[i] = RenderRecord(v, rec)
		}
		return record.Slice(out)
	}
	if m, ok := tmpl.Map(); ok {
		out := make(map[string]record.Record, len(m))
		for k, v := range m {
			out[k] = RenderRecord(v, rec)
		}
		return record.Map(out)
	}
	return tmpl
}

// RenderFull renders tmpl and, when the entire template is a single
// {{path}} placeholder, returns the resolved record's native type instead
// of its stringified form (e.g. a number stays a number). This is what
// Return and SetData use so `{{x}}` can reproduce a non-string value.
func RenderFull(tmpl string, rec record.Record) record.Record {
	trimmed := strings.TrimSpace(tmpl)
	if m := interpolationRegex.FindStringSubmatch(trimmed); m != nil && len(trimmed) == len(m[0]) {
		return Search(strings.TrimSpace(m[1]), rec)
	}
	return record.String(Render(tmpl, rec))
}
