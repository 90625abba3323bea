package broadcast

import "github.com/ryandielhenn/glomers/pkg/proto"

// Payload is the closed message set of the broadcast workload.
type Payload interface {
	proto.Payload
	broadcast()
}

type Broadcast struct {
	Message uint64 `json:"message"`
}

type BroadcastOk struct{}

type Read struct{}

type ReadOk struct {
	Messages []uint64 `json:"messages"`
}

// Topology maps every cluster member to its neighbor ids.
type Topology struct {
	Topology map[string][]string `json:"topology"`
}

type TopologyOk struct{}

func (*Broadcast) Type() string   { return "broadcast" }
func (*BroadcastOk) Type() string { return "broadcast_ok" }
func (*Read) Type() string        { return "read" }
func (*ReadOk) Type() string      { return "read_ok" }
func (*Topology) Type() string    { return "topology" }
func (*TopologyOk) Type() string  { return "topology_ok" }

func (*Broadcast) broadcast()   {}
func (*BroadcastOk) broadcast() {}
func (*Read) broadcast()        {}
func (*ReadOk) broadcast()      {}
func (*Topology) broadcast()    {}
func (*TopologyOk) broadcast()  {}

// Codec decodes every variant of the set, including the *_ok replies.
var Codec = proto.NewCodec[Payload](
	proto.Variant[Payload]{Tag: "broadcast", New: func() Payload { return &Broadcast{} }, Required: []string{"message"}},
	proto.Variant[Payload]{Tag: "broadcast_ok", New: func() Payload { return &BroadcastOk{} }},
	proto.Variant[Payload]{Tag: "read", New: func() Payload { return &Read{} }},
	proto.Variant[Payload]{Tag: "read_ok", New: func() Payload { return &ReadOk{} }, Required: []string{"messages"}},
	proto.Variant[Payload]{Tag: "topology", New: func() Payload { return &Topology{} }, Required: []string{"topology"}},
	proto.Variant[Payload]{Tag: "topology_ok", New: func() Payload { return &TopologyOk{} }},
)
