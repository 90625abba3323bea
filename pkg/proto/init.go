package proto

// Init is the handshake payload delivered once at process start.
// NodeIDs is the full roster, including NodeID itself.
type Init struct {
	NodeID  NodeID   `json:"node_id"`
	NodeIDs []NodeID `json:"node_ids"`
}

func (*Init) Type() string { return "init" }

// InitOk acknowledges the handshake.
type InitOk struct{}

func (*InitOk) Type() string { return "init_ok" }

// InitCodec decodes the single-variant handshake message set.
var InitCodec = NewCodec[Payload](Variant[Payload]{
	Tag:      "init",
	New:      func() Payload { return &Init{} },
	Required: []string{"node_id", "node_ids"},
})
