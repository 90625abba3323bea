package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Wire format of the cluster protocol: one JSON envelope per line.
// The payload fields are merged flat into the body next to the "type"
// discriminant, msg_id and in_reply_to.

// NodeID names a cluster member, e.g. "n1" or "c3".
type NodeID = string

// Payload is one variant of a protocol message set.
// Type returns the lowercase snake_case tag written into the body's "type" field.
type Payload interface {
	Type() string
}

// Body carries the correlation metadata plus the payload.
type Body[P Payload] struct {
	MsgID     *uint64
	InReplyTo *uint64
	Payload   P
}

// Message is one complete wire envelope.
type Message[P Payload] struct {
	Src  NodeID  `json:"src"`
	Dest NodeID  `json:"dest"`
	Body Body[P] `json:"body"`
}

// ID returns a pointer to v, for filling optional msg_id fields.
func ID(v uint64) *uint64 { return &v }

// Next returns id+1, or nil when id is nil.
func Next(id *uint64) *uint64 {
	if id == nil {
		return nil
	}
	return ID(*id + 1)
}

// Reply builds the envelope answering in: src/dest swapped and in_reply_to set to in's msg_id.
func Reply[P Payload](in Message[P], msgID *uint64, p P) Message[P] {
	return Message[P]{
		Src:  in.Dest,
		Dest: in.Src,
		Body: Body[P]{
			MsgID:     msgID,
			InReplyTo: in.Body.MsgID,
			Payload:   p,
		},
	}
}

var errNilPayload = errors.New("nil payload")

// MarshalJSON writes {"type":...,"in_reply_to":...,"msg_id":...,<payload fields>}.
func (b Body[P]) MarshalJSON() ([]byte, error) {
	var p Payload = b.Payload
	if p == nil {
		return nil, errNilPayload
	}
	fields, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	fields = bytes.TrimSpace(fields)
	if len(fields) < 2 || fields[0] != '{' || fields[len(fields)-1] != '}' {
		return nil, fmt.Errorf("payload %q does not encode as an object", p.Type())
	}
	tag, err := json.Marshal(p.Type())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if b.InReplyTo != nil {
		fmt.Fprintf(&buf, `,"in_reply_to":%d`, *b.InReplyTo)
	}
	if b.MsgID != nil {
		fmt.Fprintf(&buf, `,"msg_id":%d`, *b.MsgID)
	}
	if inner := bytes.TrimSpace(fields[1 : len(fields)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Encode serializes m as a single line terminated by '\n'.
func Encode[P Payload](m Message[P]) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s -> %s: %w", m.Src, m.Dest, err)
	}
	return append(data, '\n'), nil
}
