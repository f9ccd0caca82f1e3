// Package structured models the JSON-shaped data returned by the language
// model and extracts it from free-form completion text.
package structured

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Value is a JSON-like value: Null, Bool, Number, String, Sequence or
// Mapping. Consumers switch on the concrete type.
type Value interface {
	isValue()
}

// Null is the JSON null literal.
type Null struct{}

// Bool is a JSON boolean.
type Bool bool

// Number keeps the literal text of a JSON number so that it renders
// exactly as the model wrote it.
type Number string

// String is a JSON string (already unescaped).
type String string

// Sequence is a JSON array.
type Sequence []Value

// Field is one key/value pair of a Mapping.
type Field struct {
	Key   string
	Value Value
}

// Mapping is a JSON object. Fields keep their insertion order.
type Mapping struct {
	Fields []Field
}

func (Null) isValue()     {}
func (Bool) isValue()     {}
func (Number) isValue()   {}
func (String) isValue()   {}
func (Sequence) isValue() {}
func (Mapping) isValue()  {}

// Get returns the value stored under key.
func (m Mapping) Get(key string) (Value, bool) {
	for _, f := range m.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Keys returns the mapping keys in insertion order.
func (m Mapping) Keys() []string {
	keys := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		keys[i] = f.Key
	}
	return keys
}

// Len returns the number of fields.
func (m Mapping) Len() int { return len(m.Fields) }

// Set stores v under key. A repeated key replaces the earlier value but
// keeps its original position.
func (m *Mapping) Set(key string, v Value) {
	for i := range m.Fields {
		if m.Fields[i].Key == key {
			m.Fields[i].Value = v
			return
		}
	}
	m.Fields = append(m.Fields, Field{Key: key, Value: v})
}

// IsScalar reports whether v is neither a Sequence nor a Mapping.
func IsScalar(v Value) bool {
	switch v.(type) {
	case Sequence, Mapping:
		return false
	default:
		return true
	}
}

// Text converts any value to display text: null becomes "N/A", booleans
// "Yes"/"No", numbers their decimal form, strings are trimmed (blank
// becomes "N/A"). Collections fall back to compact JSON.
func Text(v Value) string {
	switch t := v.(type) {
	case nil, Null:
		return "N/A"
	case Bool:
		if t {
			return "Yes"
		}
		return "No"
	case Number:
		return t.Decimal()
	case String:
		s := strings.TrimSpace(string(t))
		if s == "" {
			return "N/A"
		}
		return s
	default:
		return Compact(v)
	}
}

// Decimal returns the number in plain decimal notation. Literals without an
// exponent are returned unchanged.
func (n Number) Decimal() string {
	s := string(n)
	if !strings.ContainsAny(s, "eE") {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Compact encodes v as single-line JSON, preserving mapping key order.
func Compact(v Value) string {
	var b strings.Builder
	writeCompact(&b, v)
	return b.String()
}

func writeCompact(b *strings.Builder, v Value) {
	switch t := v.(type) {
	case nil, Null:
		b.WriteString("null")
	case Bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case Number:
		b.WriteString(string(t))
	case String:
		b.WriteString(quote(string(t)))
	case Sequence:
		b.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCompact(b, item)
		}
		b.WriteByte(']')
	case Mapping:
		b.WriteByte('{')
		for i, f := range t.Fields {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(quote(f.Key))
			b.WriteByte(':')
			writeCompact(b, f.Value)
		}
		b.WriteByte('}')
	}
}

func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
