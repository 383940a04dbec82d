package persistence

import (
	"encoding"
	"encoding/json"
	"reflect"
	"strings"
)

// Sanitizer strips values that cannot or should not be persisted: UI
// element objects, functions, channels and configured keys such as
// rendered icons.
type Sanitizer struct {
	// DropKeys are map keys removed wherever they appear.
	DropKeys []string
	// ElementMarker identifies a tagged UI element object; any map
	// carrying this key is removed from its parent.
	ElementMarker string
}

// DefaultSanitizer drops "icon" fields and "$$typeof"-tagged objects.
var DefaultSanitizer = Sanitizer{
	DropKeys:      []string{"icon"},
	ElementMarker: "$$typeof",
}

var (
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// Sanitize returns a JSON-ready copy of v. Maps, slices, arrays and structs
// are rebuilt as generic values. Scalars and text marshalers are returned as
// is. A json.Marshaler that encodes to an object or array is decoded and
// sanitized like any other generic value, so custom encoders cannot smuggle
// dropped keys through. The result is false when v itself must be dropped.
func (s Sanitizer) Sanitize(v any) (any, bool) {
	return s.walk(reflect.ValueOf(v))
}

func (s Sanitizer) dropKey(key string) bool {
	for _, k := range s.DropKeys {
		if k == key {
			return true
		}
	}
	return false
}

// walk returns the sanitized value and false when the value must be
// removed from its container.
func (s Sanitizer) walk(v reflect.Value) (any, bool) {
	if !v.IsValid() {
		return nil, true
	}

	switch v.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil, false
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil, true
		}
		if v.Kind() == reflect.Pointer && v.CanInterface() && hasOwnEncoding(v.Type()) {
			return s.reencode(v)
		}
		return s.walk(v.Elem())
	}

	if hasOwnEncoding(v.Type()) {
		if !v.CanInterface() {
			return nil, false
		}
		return s.reencode(v)
	}

	switch v.Kind() {
	case reflect.Map:
		return s.walkMap(v)
	case reflect.Slice:
		if v.IsNil() {
			return nil, true
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return scalar(v)
		}
		return s.walkList(v), true
	case reflect.Array:
		return s.walkList(v), true
	case reflect.Struct:
		out := map[string]any{}
		s.walkStruct(v, out)
		return out, true
	default:
		return scalar(v)
	}
}

// reencode runs a json.Marshaler through the encoder and sanitizes the
// decoded document. Scalar encodings and encoder errors are left to Save.
func (s Sanitizer) reencode(v reflect.Value) (any, bool) {
	x := v.Interface()
	if !v.Type().Implements(jsonMarshalerType) {
		return x, true
	}
	data, err := canonical.Marshal(x)
	if err != nil || len(data) == 0 || (data[0] != '{' && data[0] != '[') {
		return x, true
	}
	var generic any
	if err := canonical.Unmarshal(data, &generic); err != nil {
		return x, true
	}
	return s.walk(reflect.ValueOf(generic))
}

// scalar extracts a leaf value. Fields reached through unexported embedded
// structs cannot be boxed directly, so basic kinds are copied out.
func scalar(v reflect.Value) (any, bool) {
	if v.CanInterface() {
		return v.Interface(), true
	}
	switch v.Kind() {
	case reflect.String:
		return v.String(), true
	case reflect.Bool:
		return v.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return append([]byte(nil), v.Bytes()...), true
		}
	}
	return nil, false
}

func (s Sanitizer) walkMap(v reflect.Value) (any, bool) {
	if v.IsNil() {
		return nil, true
	}
	if v.Type().Key().Kind() != reflect.String {
		// Non-string keys are left to the encoder
		return scalar(v)
	}

	if s.ElementMarker != "" {
		if v.MapIndex(reflect.ValueOf(s.ElementMarker).Convert(v.Type().Key())).IsValid() {
			return nil, false
		}
	}

	out := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key := iter.Key().String()
		if s.dropKey(key) {
			continue
		}
		val, ok := s.walk(iter.Value())
		if !ok {
			continue
		}
		out[key] = val
	}
	return out, true
}

// walkList keeps positions stable: dropped elements become null, as a JSON
// encoder does for unencodable array members.
func (s Sanitizer) walkList(v reflect.Value) []any {
	out := make([]any, v.Len())
	for i := 0; i < v.Len(); i++ {
		if val, ok := s.walk(v.Index(i)); ok {
			out[i] = val
		}
	}
	return out
}

func (s Sanitizer) walkStruct(v reflect.Value, out map[string]any) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, omitEmpty, skip := jsonField(field)
		if skip {
			continue
		}

		fv := v.Field(i)
		if field.Anonymous && name == "" {
			if fv.Kind() == reflect.Pointer {
				if fv.IsNil() {
					continue
				}
				fv = fv.Elem()
			}
			if fv.Kind() == reflect.Struct {
				s.walkStruct(fv, out)
				continue
			}
		}
		if !field.IsExported() {
			continue
		}
		if name == "" {
			name = field.Name
		}
		if s.dropKey(name) {
			continue
		}
		if omitEmpty && fv.IsZero() {
			continue
		}
		val, ok := s.walk(fv)
		if !ok {
			continue
		}
		out[name] = val
	}
}

func jsonField(field reflect.StructField) (name string, omitEmpty, skip bool) {
	tag, ok := field.Tag.Lookup("json")
	if !ok {
		return "", false, false
	}
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	for _, opt := range strings.Split(opts, ",") {
		if opt == "omitempty" || opt == "omitzero" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

func hasOwnEncoding(t reflect.Type) bool {
	return t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType)
}
