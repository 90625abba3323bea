package broadcast

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ryandielhenn/glomers/pkg/msgset"
	"github.com/ryandielhenn/glomers/pkg/proto"
	"github.com/ryandielhenn/glomers/pkg/topology"
)

// ErrNoTopology is returned when a topology assignment has no entry for this node.
var ErrNoTopology = errors.New("no topology entry for this node")

// Handler is the broadcast node: it accepts values, serves reads of
// everything accepted so far and records its assigned neighbors.
// Values are not forwarded; a node only learns what it is told directly.
type Handler struct {
	id       string
	messages *msgset.Set
	topo     *topology.Table
	nextID   uint64
	log      *zap.Logger
}

func New(info proto.Init, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		id:       info.NodeID,
		messages: msgset.New(),
		topo:     topology.New(info.NodeID, info.NodeIDs),
		nextID:   1,
		log:      log,
	}
}

// Handle runs one message through the state machine. The reply-id counter
// advances by one for every message, including failed ones.
func (h *Handler) Handle(msg proto.Message[Payload]) ([]proto.Message[Payload], error) {
	out, err := h.handle(msg)
	h.nextID++
	return out, err
}

func (h *Handler) handle(msg proto.Message[Payload]) ([]proto.Message[Payload], error) {
	id := proto.ID(h.nextID)

	switch p := msg.Body.Payload.(type) {
	case *Broadcast:
		if h.messages.Add(p.Message) {
			h.log.Debug("accepted", zap.Uint64("message", p.Message), zap.Int("total", h.messages.Len()))
		}
		return h.reply(msg, id, &BroadcastOk{}), nil

	case *Read:
		return h.reply(msg, id, &ReadOk{Messages: h.messages.Snapshot()}), nil

	case *Topology:
		unknown, ok := h.topo.Assign(p.Topology)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoTopology, h.id)
		}
		if len(unknown) > 0 {
			h.log.Warn("neighbors outside roster", zap.Strings("ids", unknown))
		}
		h.log.Debug("topology assigned", zap.Strings("neighbors", h.topo.Neighbors()))
		return h.reply(msg, id, &TopologyOk{}), nil

	case *BroadcastOk, *ReadOk, *TopologyOk:
		return nil, nil
	}
	return nil, fmt.Errorf("unhandled payload %T", msg.Body.Payload)
}

func (h *Handler) reply(in proto.Message[Payload], id *uint64, p Payload) []proto.Message[Payload] {
	return []proto.Message[Payload]{proto.Reply(in, id, p)}
}

// Len returns the number of accepted values.
func (h *Handler) Len() int { return h.messages.Len() }
