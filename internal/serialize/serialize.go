package serialize

import (
	"encoding"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
)

// Placeholders substituted for values that cannot be represented
const (
	PlaceholderCircular      = "[circular]"
	PlaceholderMaxDepth      = "[max depth]"
	PlaceholderInvalidNumber = "[invalid number]"

	truncatedSuffix = "…[truncated]"
)

// errorKey is the only field of the document Marshal emits when even the
// normalized tree cannot be encoded.
const errorKey = "_serialization_error"

var (
	timeType          = reflect.TypeOf(time.Time{})
	errorType         = reflect.TypeOf((*error)(nil)).Elem()
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// Options bound the conversion
type Options struct {
	MaxDepth     int
	MaxStringLen int
}

// DefaultOptions returns the limits used when none are configured
func DefaultOptions() Options {
	return Options{MaxDepth: 16, MaxStringLen: 8192}
}

// Fallback records one value that was replaced or cut short
type Fallback struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Serializer normalizes and encodes values. It is safe for concurrent use.
type Serializer struct {
	opts Options
}

// New creates a serializer, filling unset limits from DefaultOptions
func New(opts Options) *Serializer {
	def := DefaultOptions()
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = def.MaxDepth
	}
	if opts.MaxStringLen <= 0 {
		opts.MaxStringLen = def.MaxStringLen
	}
	return &Serializer{opts: opts}
}

// Normalize converts v into nil, bool, int64, uint64, float64, string,
// []any or map[string]any. It never fails.
func (s *Serializer) Normalize(v any) (any, []Fallback) {
	w := &walker{opts: s.opts, visiting: make(map[visitKey]struct{})}
	out := w.value(reflect.ValueOf(v), "$", 0)
	return out, w.fallbacks
}

// Marshal normalizes v and encodes it as JSON. It never fails; if the
// encoder rejects the normalized tree the result is a one-field error object.
func (s *Serializer) Marshal(v any) ([]byte, []Fallback) {
	out, fallbacks := s.Normalize(v)

	data, err := sonic.ConfigStd.Marshal(out)
	if err != nil {
		fallbacks = append(fallbacks, Fallback{Path: "$", Reason: "encode: " + err.Error()})
		return errorDocument(err), fallbacks
	}
	return data, fallbacks
}

// Encode encodes a tree that Normalize already produced, such as a record
// assembled from normalized parts. Limits are not applied a second time:
// nested map[string]any, []any and strings pass through as they are, and any
// other value is normalized with depth counted from that value. Cycles are
// still replaced. It never fails.
func (s *Serializer) Encode(tree any) ([]byte, []Fallback) {
	w := &walker{opts: s.opts, visiting: make(map[visitKey]struct{})}
	out := w.tree(tree, "$")

	data, err := sonic.ConfigStd.Marshal(out)
	if err != nil {
		w.fallbacks = append(w.fallbacks, Fallback{Path: "$", Reason: "encode: " + err.Error()})
		return errorDocument(err), w.fallbacks
	}
	return data, w.fallbacks
}

func errorDocument(err error) []byte {
	data, encErr := sonic.ConfigStd.Marshal(map[string]string{errorKey: err.Error()})
	if encErr != nil {
		return []byte(`{"` + errorKey + `":"encode failed"}`)
	}
	return data
}

type visitKey struct {
	ptr uintptr
	typ reflect.Type
}

type walker struct {
	opts      Options
	visiting  map[visitKey]struct{}
	fallbacks []Fallback
}

func (w *walker) fallback(path, reason, placeholder string) string {
	w.fallbacks = append(w.fallbacks, Fallback{Path: path, Reason: reason})
	return placeholder
}

// tree copies normalized containers without counting depth
func (w *walker) tree(v any, path string) any {
	switch t := v.(type) {
	case nil, bool, int64, uint64, string:
		return t
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return w.fallback(path, "invalid number", PlaceholderInvalidNumber)
		}
		return t
	case map[string]any:
		if t == nil {
			return nil
		}
		return w.enter(reflect.ValueOf(t), path, func() any {
			out := make(map[string]any, len(t))
			for k, e := range t {
				out[k] = w.tree(e, path+"."+k)
			}
			return out
		})
	case []any:
		if t == nil {
			return nil
		}
		return w.enter(reflect.ValueOf(t), path, func() any {
			out := make([]any, len(t))
			for i, e := range t {
				out[i] = w.tree(e, path+"["+strconv.Itoa(i)+"]")
			}
			return out
		})
	default:
		return w.value(reflect.ValueOf(v), path, 0)
	}
}

func (w *walker) value(v reflect.Value, path string, depth int) any {
	if !v.IsValid() {
		return nil
	}
	if depth > w.opts.MaxDepth {
		return w.fallback(path, "max depth exceeded", PlaceholderMaxDepth)
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return nil
		}
	}
	if v.Kind() == reflect.Interface {
		return w.value(v.Elem(), path, depth)
	}

	if out, ok := w.special(v, path); ok {
		return out
	}

	switch v.Kind() {
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return w.fallback(path, "invalid number", PlaceholderInvalidNumber)
		}
		return f
	case reflect.String:
		return w.str(v.String(), path)
	case reflect.Pointer:
		return w.enter(v, path, func() any { return w.value(v.Elem(), path, depth+1) })
	case reflect.Map:
		return w.enter(v, path, func() any { return w.mapValue(v, path, depth) })
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return base64.StdEncoding.EncodeToString(v.Bytes())
		}
		return w.enter(v, path, func() any { return w.list(v, path, depth) })
	case reflect.Array:
		return w.list(v, path, depth)
	case reflect.Struct:
		out := make(map[string]any, v.NumField())
		w.structFields(v, path, depth, out)
		return out
	default:
		return w.fallback(path, "unsupported kind "+v.Kind().String(), unserializable(v.Type()))
	}
}

// special handles types with their own textual form. Values reached through
// unexported fields cannot be interfaced and fall through to the kind switch.
func (w *walker) special(v reflect.Value, path string) (any, bool) {
	if !v.CanInterface() {
		return nil, false
	}
	t := v.Type()

	switch {
	case t == timeType:
		return v.Interface().(time.Time).Format(time.RFC3339Nano), true
	case t.Implements(jsonMarshalerType):
		return w.jsonMarshaler(v, path), true
	case t.Implements(errorType):
		msg, ok := safeCall(func() string { return v.Interface().(error).Error() })
		if !ok {
			return w.fallback(path, "Error() panicked", marshalError(t)), true
		}
		return w.str(msg, path), true
	case t.Implements(textMarshalerType):
		var text []byte
		var err error
		_, ok := safeCall(func() string {
			text, err = v.Interface().(encoding.TextMarshaler).MarshalText()
			return ""
		})
		if !ok || err != nil {
			return w.fallback(path, "MarshalText failed", marshalError(t)), true
		}
		return w.str(string(text), path), true
	}
	return nil, false
}

func (w *walker) jsonMarshaler(v reflect.Value, path string) any {
	t := v.Type()

	var raw []byte
	var err error
	_, ok := safeCall(func() string {
		raw, err = v.Interface().(json.Marshaler).MarshalJSON()
		return ""
	})
	if !ok || err != nil {
		return w.fallback(path, "MarshalJSON failed", marshalError(t))
	}

	var decoded any
	if err := sonic.ConfigStd.Unmarshal(raw, &decoded); err != nil {
		return w.fallback(path, "MarshalJSON returned invalid JSON", marshalError(t))
	}
	return decoded
}

// enter guards reference kinds against cycles. Keys are removed on exit, so a
// value shared by two siblings is serialized twice rather than flagged.
func (w *walker) enter(v reflect.Value, path string, fn func() any) any {
	key := visitKey{ptr: v.Pointer(), typ: v.Type()}
	if _, seen := w.visiting[key]; seen {
		return w.fallback(path, "circular reference", PlaceholderCircular)
	}
	w.visiting[key] = struct{}{}
	defer delete(w.visiting, key)
	return fn()
}

func (w *walker) mapValue(v reflect.Value, path string, depth int) any {
	out := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k := w.mapKey(iter.Key())
		out[k] = w.value(iter.Value(), path+"."+k, depth+1)
	}
	return out
}

func (w *walker) mapKey(k reflect.Value) string {
	if k.Kind() == reflect.Interface && !k.IsNil() {
		k = k.Elem()
	}
	switch k.Kind() {
	case reflect.String:
		return k.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10)
	}
	if k.CanInterface() {
		if s, ok := safeCall(func() string { return fmt.Sprint(k.Interface()) }); ok {
			return s
		}
	}
	return k.Type().String()
}

func (w *walker) list(v reflect.Value, path string, depth int) any {
	out := make([]any, v.Len())
	for i := range out {
		out[i] = w.value(v.Index(i), path+"["+strconv.Itoa(i)+"]", depth+1)
	}
	return out
}

func (w *walker) structFields(v reflect.Value, path string, depth int, out map[string]any) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, omitEmpty, skip := jsonName(f)
		if skip {
			continue
		}

		fv := v.Field(i)
		if f.Anonymous && name == "" && fv.Kind() == reflect.Struct {
			w.structFields(fv, path, depth, out)
			continue
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		if omitEmpty && fv.IsZero() {
			continue
		}
		out[name] = w.value(fv, path+"."+name, depth+1)
	}
}

func jsonName(f reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	return name, strings.Contains(opts, "omitempty"), false
}

func (w *walker) str(s, path string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	if len(s) <= w.opts.MaxStringLen {
		return s
	}
	cut := w.opts.MaxStringLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	w.fallbacks = append(w.fallbacks, Fallback{Path: path, Reason: "string truncated"})
	return s[:cut] + truncatedSuffix
}

func safeCall(fn func() string) (s string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return fn(), true
}

func unserializable(t reflect.Type) string {
	return "[unserializable: " + t.String() + "]"
}

func marshalError(t reflect.Type) string {
	return "[marshal error: " + t.String() + "]"
}
