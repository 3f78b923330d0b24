package valueobject

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MaxDepth is the deepest array or object nesting ParseJSON accepts.
const MaxDepth = 32

var (
	// ErrTrailingData indicates extra tokens after a complete JSON value.
	ErrTrailingData = errors.New("valueobject: unexpected data after json value")
	// ErrTooDeep indicates nesting beyond MaxDepth.
	ErrTooDeep = errors.New("valueobject: json nested too deeply")
)

// Kind identifies the variant held by a JSON value.
type Kind uint8

const (
	// KindUndefined is the zero value: the field was absent.
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "undefined"
	}
}

// Member is a key/value pair of a JSON object.
type Member struct {
	Key   string
	Value JSON
}

// JSON is a tagged JSON value tree.
//
// Objects keep member insertion order and numbers keep their literal text, so
// encoding a decoded value reproduces the caller's layout.
// @swaggertype object
type JSON struct {
	kind    Kind
	boolean bool
	text    string
	items   []JSON
	members []Member
}

// Null returns a JSON null.
func Null() JSON { return JSON{kind: KindNull} }

// Bool returns a JSON boolean.
func Bool(b bool) JSON { return JSON{kind: KindBool, boolean: b} }

// Number returns a JSON number from its literal representation.
func Number(n json.Number) JSON { return JSON{kind: KindNumber, text: n.String()} }

// Int returns a JSON number.
func Int(n int64) JSON { return JSON{kind: KindNumber, text: strconv.FormatInt(n, 10)} }

// String returns a JSON string.
func String(s string) JSON { return JSON{kind: KindString, text: s} }

// Array returns a JSON array.
func Array(items ...JSON) JSON { return JSON{kind: KindArray, items: items} }

// Object returns a JSON object with members in the given order.
func Object(members ...Member) JSON { return JSON{kind: KindObject, members: members} }

// Kind reports the variant.
func (j JSON) Kind() Kind { return j.kind }

// IsUndefined reports whether the value was never set.
func (j JSON) IsUndefined() bool { return j.kind == KindUndefined }

// Str returns the string payload for KindString values.
func (j JSON) Str() string {
	if j.kind != KindString {
		return ""
	}
	return j.text
}

// AsString returns the payload of a string value. An undefined value is the
// empty string; any other kind reports false.
func (j JSON) AsString() (string, bool) {
	switch j.kind {
	case KindString:
		return j.text, true
	case KindUndefined:
		return "", true
	default:
		return "", false
	}
}

// Members returns object members in order.
func (j JSON) Members() []Member { return j.members }

// Items returns array items in order.
func (j JSON) Items() []JSON { return j.items }

// Len returns the number of members or items.
func (j JSON) Len() int {
	switch j.kind {
	case KindObject:
		return len(j.members)
	case KindArray:
		return len(j.items)
	default:
		return 0
	}
}

// Get returns the member value for key.
func (j JSON) Get(key string) (JSON, bool) {
	for _, m := range j.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return JSON{}, false
}

// ParseJSON decodes a complete JSON document nested at most MaxDepth levels.
func ParseJSON(raw string) (JSON, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	v, err := decodeValue(dec, 0)
	if err != nil {
		return JSON{}, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return JSON{}, ErrTrailingData
	}

	return v, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSON) UnmarshalJSON(b []byte) error {
	v, err := ParseJSON(string(b))
	if err != nil {
		return err
	}
	*j = v
	return nil
}

// MarshalJSON implements json.Marshaler. Undefined encodes as null.
func (j JSON) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := j.write(&buf, "", "", 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Indent returns the value encoded with one indent per nesting level.
// HTML characters are not escaped.
func (j JSON) Indent(indent string) string {
	var buf bytes.Buffer
	//nolint:errcheck // bytes.Buffer never fails
	j.write(&buf, "\n", indent, 0)
	return buf.String()
}

// Any converts the tree to plain Go values (map[string]any, []any, json.Number, ...).
// Member order is lost.
func (j JSON) Any() any {
	switch j.kind {
	case KindBool:
		return j.boolean
	case KindNumber:
		return json.Number(j.text)
	case KindString:
		return j.text
	case KindArray:
		out := make([]any, len(j.items))
		for i, it := range j.items {
			out[i] = it.Any()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(j.members))
		for _, m := range j.members {
			out[m.Key] = m.Value.Any()
		}
		return out
	default:
		return nil
	}
}

func decodeValue(dec *json.Decoder, depth int) (JSON, error) {
	tok, err := dec.Token()
	if err != nil {
		return JSON{}, err
	}
	if _, ok := tok.(json.Delim); ok && depth >= MaxDepth {
		return JSON{}, ErrTooDeep
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			items := []JSON{}
			for dec.More() {
				it, err := decodeValue(dec, depth+1)
				if err != nil {
					return JSON{}, err
				}
				items = append(items, it)
			}
			if _, err := dec.Token(); err != nil {
				return JSON{}, err
			}
			return Array(items...), nil
		case '{':
			obj := JSON{kind: KindObject, members: []Member{}}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return JSON{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return JSON{}, fmt.Errorf("valueobject: object key is %T", keyTok)
				}
				val, err := decodeValue(dec, depth+1)
				if err != nil {
					return JSON{}, err
				}
				obj.set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return JSON{}, err
			}
			return obj, nil
		}
	}

	return JSON{}, fmt.Errorf("valueobject: unexpected token %v", tok)
}

// set replaces an existing key in place (last value wins) or appends it.
func (j *JSON) set(key string, val JSON) {
	for i := range j.members {
		if j.members[i].Key == key {
			j.members[i].Value = val
			return
		}
	}
	j.members = append(j.members, Member{Key: key, Value: val})
}

func (j JSON) write(buf *bytes.Buffer, newline, indent string, depth int) error {
	switch j.kind {
	case KindUndefined, KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(j.boolean))
	case KindNumber:
		buf.WriteString(j.text)
	case KindString:
		return writeString(buf, j.text)
	case KindArray:
		if len(j.items) == 0 {
			buf.WriteString("[]")
			return nil
		}
		buf.WriteByte('[')
		for i, it := range j.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeBreak(buf, newline, indent, depth+1)
			if err := it.write(buf, newline, indent, depth+1); err != nil {
				return err
			}
		}
		writeBreak(buf, newline, indent, depth)
		buf.WriteByte(']')
	case KindObject:
		if len(j.members) == 0 {
			buf.WriteString("{}")
			return nil
		}
		buf.WriteByte('{')
		for i, m := range j.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeBreak(buf, newline, indent, depth+1)
			if err := writeString(buf, m.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if newline != "" {
				buf.WriteByte(' ')
			}
			if err := m.Value.write(buf, newline, indent, depth+1); err != nil {
				return err
			}
		}
		writeBreak(buf, newline, indent, depth)
		buf.WriteByte('}')
	}

	return nil
}

func writeBreak(buf *bytes.Buffer, newline, indent string, depth int) {
	if newline == "" {
		return
	}
	buf.WriteString(newline)
	for range depth {
		buf.WriteString(indent)
	}
}

func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode always terminates with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}
