package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// Object is a JSON object. Keys are emitted in UTF-16 code unit order.
type Object map[string]any

// Array is a JSON array.
type Array []any

// MarshalCanonical encodes v as canonical JSON.
//
// Supported values: string, bool, int, int64, float64, Array, []any, Object,
// map[string]any. Strings are NFC normalised and HTML characters are not
// escaped. Floats are emitted as strings in shortest round-trip form, so the
// encoding never depends on a JSON number formatter. Null is rejected.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return writeString(buf, val)
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case int:
		fmt.Fprintf(buf, "%d", val)
	case int64:
		fmt.Fprintf(buf, "%d", val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("non-finite float in canonical JSON: %v", val)
		}
		return writeString(buf, FormatFloat(val))
	case Array:
		return writeArray(buf, val)
	case []any:
		return writeArray(buf, val)
	case Object:
		return writeObject(buf, val)
	case map[string]any:
		return writeObject(buf, val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

func writeArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonical(buf, elem); err != nil {
			return fmt.Errorf("array[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeObject(buf *bytes.Buffer, obj map[string]any) error {
	buf.WriteByte('{')
	for i, k := range sortedKeys(obj) {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := writeCanonical(buf, obj[k]); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// sortedKeys orders keys by UTF-16 code units.
func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
	})
	return keys
}

// writeString writes s as a JSON string after NFC normalisation. Only
// control characters, backslash and quote are escaped.
func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'})
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators turns the encoder's \u2028 and \u2029 escapes back
// into literal characters. An escape preceded by an odd number of
// backslashes is literal text and stays.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	backslashes := 0
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c == '\\' && backslashes%2 == 0 && i+5 < len(data) &&
			string(data[i+1:i+5]) == "u202" && (data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			backslashes = 0
			continue
		}
		if c == '\\' {
			backslashes++
		} else {
			backslashes = 0
		}
		out = append(out, c)
	}
	return out
}

// Object renders the event as a canonical object.
func (e Event) Object() Object {
	obj := Object{
		"seq":       e.Seq,
		"kind":      string(e.Kind),
		"element":   e.Element,
		"round":     e.Round,
		"timestamp": e.Timestamp,
	}
	if e.Label != "" {
		obj["label"] = e.Label
	}
	if e.Step != "" {
		obj["step"] = e.Step
	}
	if e.Phase != "" {
		obj["phase"] = e.Phase
	}
	if len(e.Fields) > 0 {
		fields := make(Array, len(e.Fields))
		for i, f := range e.Fields {
			fields[i] = Object{"label": f.Label, "value": f.Value}
		}
		obj["fields"] = fields
	}
	return obj
}

// Canonical encodes the trace as canonical JSON.
func (t Trace) Canonical() ([]byte, error) {
	events := make(Array, len(t.Events))
	for i, e := range t.Events {
		events[i] = e.Object()
	}
	return MarshalCanonical(Object{"session_id": t.SessionID, "events": events})
}
