// Package expression provides the two pure helpers nodes use for dynamic
// configuration: Render (template: record -> string) and Search (path
// query: record -> value). Both are grounded on the teacher's
// {{path.to.value}} interpolation engine, generalized to operate on
// record.Record instead of map[string]interface{}.
package expression

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/flowgraph/runtime/internal/record"
)

var arrayIndexRegex = regexp.MustCompile(`^(.+)\[(\d+)\]$`)

// Search evaluates a dot-path (with optional array[index] segments, and
// backslash-escaped dots) against rec and returns the resulting value.
// An absent key or out-of-range index yields record.Null rather than an
// error — nodes destructure records at run time and missing data is
// routine, not exceptional.
func Search(path string, rec record.Record) record.Record {
	if path == "" {
		return rec
	}
	current := rec
	for _, part := range splitPath(path) {
		if m := arrayIndexRegex.FindStringSubmatch(part); m != nil {
			current = current.Get(m[1])
			idx, err := strconv.Atoi(m[2])
			if err != nil {
				return record.Null
			}
			current = current.Index(idx)
			continue
		}
		current = current.Get(part)
	}
	return current
}

// splitPath splits a path string by dots, honoring "\." as a literal dot.
func splitPath(path string) []string {
	var parts []string
	var cur strings.Builder
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '\\' && i+1 < len(path) && path[i+1] == '.' {
			cur.WriteByte('.')
			i++
			continue
		}
		if c == '.' {
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteByte(c)
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

// ToString renders a record as a plain string the way interpolation does:
// strings pass through unquoted, other kinds render as their JSON form.
func ToString(v record.Record) string {
	if s, ok := v.StringValue(); ok {
		return s
	}
	if v.IsNull() {
		return ""
	}
	if n, ok := v.Number(); ok {
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
	if b, ok := v.Bool(); ok {
		return fmt.Sprintf("%t", b)
	}
	return v.String()
}
