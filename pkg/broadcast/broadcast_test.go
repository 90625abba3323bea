package broadcast

import (
	"bytes"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/ryandielhenn/glomers/pkg/node"
	"github.com/ryandielhenn/glomers/pkg/proto"
)

func newHandler(t *testing.T) *Handler {
	t.Helper()
	return New(proto.Init{NodeID: "n1", NodeIDs: []string{"n1", "n2", "n3"}}, zaptest.NewLogger(t))
}

func request(id uint64, p Payload) proto.Message[Payload] {
	return proto.Message[Payload]{
		Src:  "c1",
		Dest: "n1",
		Body: proto.Body[Payload]{MsgID: proto.ID(id), Payload: p},
	}
}

func handleOne(t *testing.T, h *Handler, msg proto.Message[Payload]) proto.Message[Payload] {
	t.Helper()
	out, err := h.Handle(msg)
	if err != nil {
		t.Fatalf("Handle(%s): %v", msg.Body.Payload.Type(), err)
	}
	if len(out) != 1 {
		t.Fatalf("Handle(%s) returned %d replies, want 1", msg.Body.Payload.Type(), len(out))
	}
	return out[0]
}

func read(t *testing.T, h *Handler, id uint64) []uint64 {
	t.Helper()
	r := handleOne(t, h, request(id, &Read{}))
	ok, isReadOk := r.Body.Payload.(*ReadOk)
	if !isReadOk {
		t.Fatalf("read reply = %T, want *ReadOk", r.Body.Payload)
	}
	return ok.Messages
}

func TestBroadcastReply(t *testing.T) {
	h := newHandler(t)
	r := handleOne(t, h, request(5, &Broadcast{Message: 42}))

	if r.Src != "n1" || r.Dest != "c1" {
		t.Fatalf("reply src/dest = %s/%s, want n1/c1", r.Src, r.Dest)
	}
	if _, ok := r.Body.Payload.(*BroadcastOk); !ok {
		t.Fatalf("reply payload = %T, want *BroadcastOk", r.Body.Payload)
	}
	if r.Body.InReplyTo == nil || *r.Body.InReplyTo != 5 {
		t.Fatalf("in_reply_to = %v, want 5", r.Body.InReplyTo)
	}
	// The reply id comes from the node's own counter, not from the request.
	if r.Body.MsgID == nil || *r.Body.MsgID != 1 {
		t.Fatalf("msg_id = %v, want 1", r.Body.MsgID)
	}
}

func TestReadIsUnionOfBroadcasts(t *testing.T) {
	h := newHandler(t)
	var id uint64 = 1
	for _, v := range []uint64{3, 1, 3, 7, 1} {
		handleOne(t, h, request(id, &Broadcast{Message: v}))
		id++
	}
	if got, want := read(t, h, id), []uint64{1, 3, 7}; !slices.Equal(got, want) {
		t.Fatalf("read = %v, want %v", got, want)
	}
}

func TestReadEmpty(t *testing.T) {
	h := newHandler(t)
	got := read(t, h, 1)
	if got == nil || len(got) != 0 {
		t.Fatalf("read on fresh node = %#v, want empty list", got)
	}
}

func TestReadIdempotent(t *testing.T) {
	h := newHandler(t)
	handleOne(t, h, request(1, &Broadcast{Message: 9}))
	first := read(t, h, 2)
	second := read(t, h, 3)
	if !slices.Equal(first, second) {
		t.Fatalf("consecutive reads differ: %v vs %v", first, second)
	}
}

func TestReadSnapshotIsCopy(t *testing.T) {
	h := newHandler(t)
	handleOne(t, h, request(1, &Broadcast{Message: 1}))
	got := read(t, h, 2)
	got[0] = 100
	if slices.Contains(h.messages.Snapshot(), 100) {
		t.Fatal("read reply aliases handler state")
	}
}

func TestTopologyAssignsNeighbors(t *testing.T) {
	h := newHandler(t)
	r := handleOne(t, h, request(1, &Topology{Topology: map[string][]string{
		"n1": {"n3", "n2"},
		"n2": {"n1"},
		"n3": {"n1"},
	}}))
	if _, ok := r.Body.Payload.(*TopologyOk); !ok {
		t.Fatalf("reply payload = %T, want *TopologyOk", r.Body.Payload)
	}
	if got := h.topo.Neighbors(); !slices.Equal(got, []string{"n3", "n2"}) {
		t.Fatalf("Neighbors = %v, want [n3 n2]", got)
	}
}

func TestTopologyWithoutSelfFails(t *testing.T) {
	h := newHandler(t)
	out, err := h.Handle(request(1, &Topology{Topology: map[string][]string{"n2": {"n3"}}}))
	if !errors.Is(err, ErrNoTopology) {
		t.Fatalf("err = %v, want ErrNoTopology", err)
	}
	if len(out) != 0 {
		t.Fatalf("failed topology produced replies: %v", out)
	}
	if ns := h.topo.Neighbors(); len(ns) != 0 {
		t.Fatalf("neighbors = %v after failed assignment", ns)
	}
	if h.nextID != 2 {
		t.Fatalf("nextID = %d after failure, want 2", h.nextID)
	}
}

func TestOkMessagesProduceNothing(t *testing.T) {
	h := newHandler(t)
	for i, p := range []Payload{&BroadcastOk{}, &ReadOk{Messages: []uint64{1}}, &TopologyOk{}} {
		out, err := h.Handle(request(uint64(i+1), p))
		if err != nil || len(out) != 0 {
			t.Fatalf("Handle(%s) = %v, %v; want no replies", p.Type(), out, err)
		}
	}
	if h.Len() != 0 {
		t.Fatalf("ok messages changed accepted set: %v", h.messages.Snapshot())
	}
	if h.nextID != 4 {
		t.Fatalf("nextID = %d, want 4", h.nextID)
	}
}

func TestReplyIDsAreUnique(t *testing.T) {
	h := newHandler(t)
	seen := map[uint64]bool{}
	msgs := []Payload{
		&Broadcast{Message: 1}, &Read{}, &BroadcastOk{}, &Broadcast{Message: 1},
		&Topology{Topology: map[string][]string{"n1": {}}}, &Read{},
	}
	for i, p := range msgs {
		out, err := h.Handle(request(1, p)) // same inbound id every time
		if err != nil {
			t.Fatalf("Handle #%d: %v", i, err)
		}
		for _, r := range out {
			id := *r.Body.MsgID
			if seen[id] {
				t.Fatalf("reply msg_id %d reused", id)
			}
			seen[id] = true
		}
	}
}

func TestTopologyAcceptsNeighborsOutsideRoster(t *testing.T) {
	h := newHandler(t)
	handleOne(t, h, request(1, &Topology{Topology: map[string][]string{"n1": {"n2", "n9"}}}))
	if got := h.topo.Neighbors(); !slices.Equal(got, []string{"n2", "n9"}) {
		t.Fatalf("neighbors = %v, want [n2 n9]", got)
	}
}

func TestBroadcastFullUnsignedRange(t *testing.T) {
	h := newHandler(t)
	handleOne(t, h, request(1, &Broadcast{Message: math.MaxUint64}))
	handleOne(t, h, request(2, &Broadcast{Message: 0}))
	if got, want := read(t, h, 3), []uint64{0, math.MaxUint64}; !slices.Equal(got, want) {
		t.Fatalf("read = %v, want %v", got, want)
	}
}

func TestEndToEnd(t *testing.T) {
	input := strings.Join([]string{
		`{"src":"c1","dest":"n1","body":{"type":"init","msg_id":1,"node_id":"n1","node_ids":["n1"]}}`,
		`{"src":"c1","dest":"n1","body":{"type":"broadcast","msg_id":2,"message":42}}`,
		`{"src":"c1","dest":"n1","body":{"type":"read","msg_id":3}}`,
	}, "\n") + "\n"

	var out bytes.Buffer
	n := node.New(Codec, strings.NewReader(input), &out, node.WithLogger(zaptest.NewLogger(t)))
	err := n.Run(func(info proto.Init) (node.Handler[Payload], error) {
		return New(info, zaptest.NewLogger(t)), nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := strings.Join([]string{
		`{"src":"n1","dest":"c1","body":{"type":"init_ok","in_reply_to":1,"msg_id":2}}`,
		`{"src":"n1","dest":"c1","body":{"type":"broadcast_ok","in_reply_to":2,"msg_id":1}}`,
		`{"src":"n1","dest":"c1","body":{"type":"read_ok","in_reply_to":3,"msg_id":2,"messages":[42]}}`,
	}, "\n") + "\n"
	if out.String() != want {
		t.Fatalf("output:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestEndToEndTopologyMissingSelf(t *testing.T) {
	input := `{"src":"c1","dest":"n1","body":{"type":"init","msg_id":1,"node_id":"n1","node_ids":["n1","n2"]}}` + "\n" +
		`{"src":"c1","dest":"n1","body":{"type":"topology","msg_id":2,"topology":{"n2":["n1"]}}}` + "\n" +
		`{"src":"c1","dest":"n1","body":{"type":"read","msg_id":3}}` + "\n"

	var out bytes.Buffer
	n := node.New(Codec, strings.NewReader(input), &out)
	err := n.Run(func(info proto.Init) (node.Handler[Payload], error) { return New(info, nil), nil })

	var he *node.HandlerError
	if !errors.As(err, &he) || !errors.Is(err, ErrNoTopology) {
		t.Fatalf("err = %v, want HandlerError wrapping ErrNoTopology", err)
	}
	if lines := strings.Count(out.String(), "\n"); lines != 1 {
		t.Fatalf("wrote %d lines, want only init_ok:\n%s", lines, out.String())
	}
}

func TestCodecDecodesBroadcast(t *testing.T) {
	m, err := Codec.Decode([]byte(`{"src":"c1","dest":"n1","body":{"type":"topology","msg_id":4,"topology":{"n1":["n2"],"n2":["n1"]}}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	tp, ok := m.Body.Payload.(*Topology)
	if !ok || !slices.Equal(tp.Topology["n1"], []string{"n2"}) {
		t.Fatalf("payload = %#v", m.Body.Payload)
	}

	m, err = Codec.Decode([]byte(`{"src":"c1","dest":"n1","body":{"type":"broadcast","message":18446744073709551615}}`))
	if err != nil {
		t.Fatalf("Decode max value: %v", err)
	}
	if got := m.Body.Payload.(*Broadcast).Message; got != math.MaxUint64 {
		t.Fatalf("message = %d, want %d", got, uint64(math.MaxUint64))
	}

	m, err = Codec.Decode([]byte(`{"src":"c1","dest":"n1","body":{"type":"broadcast","message":1,"MESSAGE":99}}`))
	if err != nil {
		t.Fatalf("Decode miscased duplicate: %v", err)
	}
	if got := m.Body.Payload.(*Broadcast).Message; got != 1 {
		t.Fatalf("message = %d, want 1", got)
	}

	for _, line := range []string{
		`{"src":"c1","dest":"n1","body":{"type":"broadcast","msg_id":2}}`,
		`{"src":"c1","dest":"n1","body":{"type":"broadcast","MESSAGE":2}}`,
		`{"SRC":"c1","DEST":"n1","body":{"type":"read"}}`,
		`{"src":"c1","dest":"n1","body":{"type":"broadcast","message":-1}}`,
		`{"src":"c1","dest":"n1","body":{"type":"broadcast","message":18446744073709551616}}`,
		`{"src":"c1","dest":"n1","body":{"type":"topology","topology":{"n1":null}}}`,
		`{"src":"c1","dest":"n1","body":{"type":"read_ok","messages":[1,null]}}`,
		`{"src":"c1","dest":"n1","body":{"type":"broadcast","message":"x"}}`,
		`{"src":"c1","dest":"n1","body":{"type":"echo","echo":"x"}}`,
	} {
		if _, err := Codec.Decode([]byte(line)); err == nil {
			t.Fatalf("Decode(%s) succeeded, want error", line)
		}
	}
}
