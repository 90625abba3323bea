package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"
)

var (
	ErrUnknownType  = errors.New("unknown message type")
	ErrMissingField = errors.New("missing field")
	ErrNullValue    = errors.New("null value")
	ErrInvalidUTF8  = errors.New("invalid utf-8")
)

// DecodeError reports a line that is not a valid envelope for the codec's message set.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	line := e.Line
	if len(line) > 120 {
		line = line[:120] + "..."
	}
	return fmt.Sprintf("decode %q: %v", line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Variant registers one payload tag of a message set.
// New must return a pointer so the body can be unmarshaled into it.
// Required lists the payload fields that must be present and non-null.
type Variant[P Payload] struct {
	Tag      string
	New      func() P
	Required []string
}

// Codec decodes envelopes whose payload belongs to a closed set of variants.
// Keys are matched case-sensitively; payload keys the variant does not
// declare are ignored.
type Codec[P Payload] struct {
	variants map[string]variant[P]
}

type variant[P Payload] struct {
	Variant[P]
	fields []string
}

func NewCodec[P Payload](variants ...Variant[P]) *Codec[P] {
	c := &Codec[P]{variants: make(map[string]variant[P], len(variants))}
	for _, v := range variants {
		if _, dup := c.variants[v.Tag]; dup {
			panic("proto: duplicate variant " + v.Tag)
		}
		c.variants[v.Tag] = variant[P]{Variant: v, fields: jsonFields(v.New())}
	}
	return c
}

// Decode parses one line into a Message. Any mismatch with the envelope,
// body or payload shape is a *DecodeError; unknown tags are never skipped.
func (c *Codec[P]) Decode(line []byte) (Message[P], error) {
	if !utf8.Valid(line) {
		return Message[P]{}, &DecodeError{Line: string(line), Err: ErrInvalidUTF8}
	}
	m, err := c.decode(bytes.TrimSpace(line))
	if err != nil {
		return Message[P]{}, &DecodeError{Line: string(line), Err: err}
	}
	return m, nil
}

func (c *Codec[P]) decode(line []byte) (Message[P], error) {
	var m Message[P]

	var env map[string]json.RawMessage
	if err := json.Unmarshal(line, &env); err != nil {
		return m, err
	}
	var src, dest string
	if err := requiredString(env, "src", &src); err != nil {
		return m, err
	}
	if err := requiredString(env, "dest", &dest); err != nil {
		return m, err
	}
	rawBody, ok := env["body"]
	if !ok || isNull(rawBody) {
		return m, fmt.Errorf("%w: body", ErrMissingField)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(rawBody, &fields); err != nil {
		return m, fmt.Errorf("body: %w", err)
	}
	var tag string
	if err := requiredString(fields, "type", &tag); err != nil {
		return m, err
	}
	v, ok := c.variants[tag]
	if !ok {
		return m, fmt.Errorf("%w %q", ErrUnknownType, tag)
	}
	for _, name := range v.Required {
		if raw, ok := fields[name]; !ok || isNull(raw) {
			return m, fmt.Errorf("%w: %s.%s", ErrMissingField, tag, name)
		}
	}

	msgID, err := optionalID(fields, "msg_id")
	if err != nil {
		return m, err
	}
	inReplyTo, err := optionalID(fields, "in_reply_to")
	if err != nil {
		return m, err
	}

	// Rebuild the payload from its exact keys only, so encoding/json's
	// case-insensitive matching never sees "MESSAGE" for "message".
	payload := make(map[string]json.RawMessage, len(v.fields))
	for _, name := range v.fields {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		if hasNull(raw) {
			return m, fmt.Errorf("%w: %s.%s", ErrNullValue, tag, name)
		}
		payload[name] = raw
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return m, err
	}
	p := v.New()
	if err := json.Unmarshal(data, p); err != nil {
		return m, fmt.Errorf("%s: %w", tag, err)
	}

	m.Src, m.Dest = src, dest
	m.Body = Body[P]{MsgID: msgID, InReplyTo: inReplyTo, Payload: p}
	return m, nil
}

func requiredString(fields map[string]json.RawMessage, name string, dst *string) error {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func optionalID(fields map[string]json.RawMessage, name string) (*uint64, error) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var id uint64
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &id, nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// hasNull reports whether raw contains a JSON null at any depth.
// Payload fields have no optional members, so null is never valid there.
func hasNull(raw json.RawMessage) bool {
	dec := json.NewDecoder(bytes.NewReader(raw))
	for {
		tok, err := dec.Token()
		if err != nil {
			return false
		}
		if tok == nil {
			return true
		}
	}
}

// jsonFields lists the JSON keys of the struct p points to.
func jsonFields(p any) []string {
	t := reflect.TypeOf(p)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	var names []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = f.Name
		}
		names = append(names, name)
	}
	return names
}
