package node

import (
	"github.com/ryandielhenn/glomers/pkg/proto"
)

// Handler is the contract every node kind implements. Handle may return
// zero or more envelopes, addressed to anyone; they are written in order
// before the next input line is read. A non-nil error is fatal to the loop.
type Handler[P proto.Payload] interface {
	Handle(msg proto.Message[P]) ([]proto.Message[P], error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc[P proto.Payload] func(msg proto.Message[P]) ([]proto.Message[P], error)

func (f HandlerFunc[P]) Handle(msg proto.Message[P]) ([]proto.Message[P], error) { return f(msg) }

// Factory builds the handler once the handshake has established the node's
// identity and roster. Configuration is captured by the closure.
type Factory[P proto.Payload] func(info proto.Init) (Handler[P], error)

// Responder is the narrower request/response shape: exactly one reply
// payload per input, addressed back to the sender.
type Responder[P proto.Payload] interface {
	Respond(msg proto.Message[P]) (P, error)
}

// ResponderFunc adapts a plain function to Responder.
type ResponderFunc[P proto.Payload] func(msg proto.Message[P]) (P, error)

func (f ResponderFunc[P]) Respond(msg proto.Message[P]) (P, error) { return f(msg) }

// Reply lifts a Responder into a Handler. The envelope is derived from the
// input: src/dest swapped, in_reply_to = msg_id, msg_id = msg_id+1.
func Reply[P proto.Payload](r Responder[P]) Handler[P] {
	return HandlerFunc[P](func(msg proto.Message[P]) ([]proto.Message[P], error) {
		p, err := r.Respond(msg)
		if err != nil {
			return nil, err
		}
		return []proto.Message[P]{proto.Reply(msg, proto.Next(msg.Body.MsgID), p)}, nil
	})
}
