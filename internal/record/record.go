// Package record defines Record, the dynamically-typed JSON-shaped value
// that flows across every edge in the graph. Nodes destructure it at run
// time; absent keys read back as null rather than erroring.
package record

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind discriminates the variant a Record holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSlice
	KindMap
)

// Record is a tagged union: exactly one of null, bool, float64, string,
// []Record, or map[string]Record. The zero value is null.
type Record struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Record
	obj  map[string]Record
}

// Null is the null record.
var Null = Record{kind: KindNull}

func Bool(v bool) Record     { return Record{kind: KindBool, b: v} }
func Number(v float64) Record { return Record{kind: KindNumber, n: v} }
func String(v string) Record  { return Record{kind: KindString, s: v} }
func Slice(v []Record) Record {
	if v == nil {
		v = []Record{}
	}
	return Record{kind: KindSlice, arr: v}
}
func Map(v map[string]Record) Record {
	if v == nil {
		v = map[string]Record{}
	}
	return Record{kind: KindMap, obj: v}
}

func (r Record) Kind() Kind   { return r.kind }
func (r Record) IsNull() bool { return r.kind == KindNull }

func (r Record) Bool() (bool, bool)       { return r.b, r.kind == KindBool }
func (r Record) Number() (float64, bool)  { return r.n, r.kind == KindNumber }
func (r Record) String() string {
	switch r.kind {
	case KindString:
		return r.s
	case KindNull:
		return ""
	default:
		data, _ := json.Marshal(r)
		return string(data)
	}
}
func (r Record) StringValue() (string, bool) { return r.s, r.kind == KindString }
func (r Record) Slice() ([]Record, bool)     { return r.arr, r.kind == KindSlice }
func (r Record) Map() (map[string]Record, bool) { return r.obj, r.kind == KindMap }

// Get returns the field at key for a map record, or Null if the record is
// not a map or the key is absent — absent keys always read as null.
func (r Record) Get(key string) Record {
	if r.kind != KindMap {
		return Null
	}
	if v, ok := r.obj[key]; ok {
		return v
	}
	return Null
}

// Index returns the element at i for a slice record, or Null if out of
// range or the record is not a slice.
func (r Record) Index(i int) Record {
	if r.kind != KindSlice || i < 0 || i >= len(r.arr) {
		return Null
	}
	return r.arr[i]
}

// Len returns the number of elements (slice) or fields (map); zero
// otherwise.
func (r Record) Len() int {
	switch r.kind {
	case KindSlice:
		return len(r.arr)
	case KindMap:
		return len(r.obj)
	default:
		return 0
	}
}

// Keys returns the sorted field names of a map record, nil otherwise.
func (r Record) Keys() []string {
	if r.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(r.obj))
	for k := range r.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports deep structural equality.
func Equal(a, b Record) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n
	case KindString:
		return a.s == b.s
	case KindSlice:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, v := range a.obj {
			ov, ok := b.obj[k]
			if !ok || !Equal(v, ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Native converts a Record to a plain Go value (nil, bool, float64,
// string, []interface{}, map[string]interface{}) suitable for json.Marshal
// or for handing to a third-party client library (e.g. an HTTP request
// body or a document-store insert).
func (r Record) Native() interface{} {
	switch r.kind {
	case KindNull:
		return nil
	case KindBool:
		return r.b
	case KindNumber:
		return r.n
	case KindString:
		return r.s
	case KindSlice:
		out := make([]interface{}, len(r.arr))
		for i, v := range r.arr {
			out[i] = v.Native()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(r.obj))
		for k, v := range r.obj {
			out[k] = v.Native()
		}
		return out
	}
	return nil
}

// FromNative builds a Record from a plain Go value, typically the result
// of json.Unmarshal into interface{}.
func FromNative(v interface{}) Record {
	switch t := v.(type) {
	case nil:
		return Null
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case string:
		return String(t)
	case []interface{}:
		arr := make([]Record, len(t))
		for i, e := range t {
			arr[i] = FromNative(e)
		}
		return Slice(arr)
	case map[string]interface{}:
		obj := make(map[string]Record, len(t))
		for k, e := range t {
			obj[k] = FromNative(e)
		}
		return Map(obj)
	case Record:
		return t
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// Parse decodes JSON bytes into a Record.
func Parse(data []byte) (Record, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return Null, fmt.Errorf("record: parse json: %w", err)
	}
	return FromNative(v), nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Native())
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = FromNative(v)
	return nil
}
