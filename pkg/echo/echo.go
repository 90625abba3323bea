package echo

import (
	"fmt"

	"github.com/ryandielhenn/glomers/pkg/node"
	"github.com/ryandielhenn/glomers/pkg/proto"
)

// Payload is the echo workload's message set.
type Payload interface {
	proto.Payload
	echo()
}

type Echo struct {
	Echo string `json:"echo"`
}

type EchoOk struct {
	Echo string `json:"echo"`
}

func (*Echo) Type() string   { return "echo" }
func (*EchoOk) Type() string { return "echo_ok" }
func (*Echo) echo()          {}
func (*EchoOk) echo()        {}

// Codec only accepts requests; echo_ok is written, never read.
var Codec = proto.NewCodec[Payload](
	proto.Variant[Payload]{Tag: "echo", New: func() Payload { return &Echo{} }, Required: []string{"echo"}},
)

// Responder answers every echo with the same text.
type Responder struct{}

func (Responder) Respond(msg proto.Message[Payload]) (Payload, error) {
	e, ok := msg.Body.Payload.(*Echo)
	if !ok {
		return nil, fmt.Errorf("unexpected %s", msg.Body.Payload.Type())
	}
	return &EchoOk{Echo: e.Echo}, nil
}

// New builds the echo handler; it keeps no state.
func New(proto.Init) (node.Handler[Payload], error) {
	return node.Reply[Payload](Responder{}), nil
}
