package uniqueid

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ryandielhenn/glomers/pkg/node"
	"github.com/ryandielhenn/glomers/pkg/proto"
)

// Payload is the unique-id workload's message set.
type Payload interface {
	proto.Payload
	uniqueID()
}

type Generate struct{}

// GenerateOk carries a random 128-bit id, written as its canonical string form.
type GenerateOk struct {
	ID uuid.UUID `json:"id"`
}

func (*Generate) Type() string   { return "generate" }
func (*GenerateOk) Type() string { return "generate_ok" }
func (*Generate) uniqueID()      {}
func (*GenerateOk) uniqueID()    {}

var Codec = proto.NewCodec[Payload](
	proto.Variant[Payload]{Tag: "generate", New: func() Payload { return &Generate{} }},
	proto.Variant[Payload]{Tag: "generate_ok", New: func() Payload { return &GenerateOk{} }, Required: []string{"id"}},
)

// Handler answers generate with a fresh UUIDv4. Reply ids follow the
// request: msg_id = in_reply_to + 1.
type Handler struct {
	gen func() (uuid.UUID, error)
}

// New returns a Handler drawing ids from gen, or from uuid.NewRandom when gen is nil.
func New(gen func() (uuid.UUID, error)) *Handler {
	if gen == nil {
		gen = uuid.NewRandom
	}
	return &Handler{gen: gen}
}

// Factory adapts New to node.Factory.
func Factory(proto.Init) (node.Handler[Payload], error) { return New(nil), nil }

func (h *Handler) Handle(msg proto.Message[Payload]) ([]proto.Message[Payload], error) {
	switch msg.Body.Payload.(type) {
	case *Generate:
		id, err := h.gen()
		if err != nil {
			return nil, fmt.Errorf("generate id: %w", err)
		}
		return []proto.Message[Payload]{
			proto.Reply(msg, proto.Next(msg.Body.MsgID), Payload(&GenerateOk{ID: id})),
		}, nil
	case *GenerateOk:
		return nil, nil
	}
	return nil, fmt.Errorf("unhandled payload %T", msg.Body.Payload)
}
