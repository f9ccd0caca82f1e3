package structured

import (
	"errors"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNotFound is returned when a completion contains no decodable JSON
// object. Callers fall back to rendering the raw text.
var ErrNotFound = errors.New("structured: no JSON object found in response")

// fencedJSON matches a ```json fenced block spanning from the first '{' to
// the last '}' before a closing fence. firstFencedJSON stops at the first
// closing fence and is tried when the greedy match runs across several
// blocks and fails to decode.
var (
	fencedJSON      = regexp.MustCompile("(?s)```json\\s*(\\{.*\\})\\s*```")
	firstFencedJSON = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")
)

// Parse locates and decodes the JSON object embedded in raw. A fenced
// ```json block wins; otherwise the first balanced {...} region is used.
// Any failure yields ErrNotFound.
func Parse(raw string) (Value, error) {
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		if v, err := Decode(m[1]); err == nil {
			return v, nil
		}
		if m := firstFencedJSON.FindStringSubmatch(raw); m != nil {
			if v, err := Decode(m[1]); err == nil {
				return v, nil
			}
		}
		return nil, ErrNotFound
	}

	candidate, ok := balancedObject(raw)
	if !ok {
		return nil, ErrNotFound
	}
	v, err := Decode(candidate)
	if err != nil {
		return nil, ErrNotFound
	}
	return v, nil
}

// balancedObject returns the substring from the first '{' to its matching
// '}'. Braces inside string literals are ignored and a backslash escapes
// the following character.
func balancedObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

// Decode parses a JSON document into a Value, keeping object key order.
func Decode(doc string) (Value, error) {
	if !gjson.Valid(doc) {
		return nil, ErrNotFound
	}
	return fromResult(gjson.Parse(doc)), nil
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.False:
		return Bool(false)
	case gjson.True:
		return Bool(true)
	case gjson.Number:
		return Number(r.Raw)
	case gjson.String:
		return String(r.Str)
	case gjson.JSON:
		if r.IsArray() {
			seq := Sequence{}
			r.ForEach(func(_, item gjson.Result) bool {
				seq = append(seq, fromResult(item))
				return true
			})
			return seq
		}
		m := Mapping{}
		r.ForEach(func(key, item gjson.Result) bool {
			m.Set(key.Str, fromResult(item))
			return true
		})
		return m
	default:
		return Null{}
	}
}
