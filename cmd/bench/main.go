package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/ryandielhenn/glomers/pkg/broadcast"
	"github.com/ryandielhenn/glomers/pkg/proto"
)

// bench writes a broadcast workload to stdout, ready to pipe into a node:
//
//	bench -n 5000 -nodes 5 | broadcast
func main() {
	n := flag.Int("n", 5000, "broadcast messages")
	nodes := flag.Int("nodes", 5, "cluster size")
	readEvery := flag.Int("read-every", 100, "issue a read after this many broadcasts (0 disables)")
	seed := flag.Int64("seed", 1, "random seed for values")
	flag.Parse()

	w := bufio.NewWriter(os.Stdout)
	if err := generate(w, workload{
		broadcasts: *n,
		nodes:      *nodes,
		readEvery:  *readEvery,
		rng:        rand.New(rand.NewSource(*seed)),
	}); err != nil {
		fmt.Fprintln(os.Stderr, "bench:", err)
		os.Exit(1)
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, "bench:", err)
		os.Exit(1)
	}
}

type workload struct {
	broadcasts int
	nodes      int
	readEvery  int
	rng        *rand.Rand
}

// generate writes init, a ring topology, the broadcasts with periodic
// reads, and a final read. Target node is n0; the client is c0.
func generate(w io.Writer, wl workload) error {
	if wl.nodes < 1 {
		return fmt.Errorf("nodes must be >= 1, got %d", wl.nodes)
	}
	ids := make([]string, wl.nodes)
	for i := range ids {
		ids[i] = fmt.Sprintf("n%d", i)
	}

	var msgID uint64
	next := func() *uint64 { msgID++; return proto.ID(msgID) }

	initMsg := proto.Message[proto.Payload]{
		Src: "c0", Dest: ids[0],
		Body: proto.Body[proto.Payload]{MsgID: next(), Payload: &proto.Init{NodeID: ids[0], NodeIDs: ids}},
	}
	if err := write(w, initMsg); err != nil {
		return err
	}

	send := func(p broadcast.Payload) error {
		return write(w, proto.Message[broadcast.Payload]{
			Src: "c0", Dest: ids[0],
			Body: proto.Body[broadcast.Payload]{MsgID: next(), Payload: p},
		})
	}

	if err := send(&broadcast.Topology{Topology: ring(ids)}); err != nil {
		return err
	}
	for i := 1; i <= wl.broadcasts; i++ {
		if err := send(&broadcast.Broadcast{Message: uint64(wl.rng.Int63n(1 << 20))}); err != nil {
			return err
		}
		if wl.readEvery > 0 && i%wl.readEvery == 0 {
			if err := send(&broadcast.Read{}); err != nil {
				return err
			}
		}
	}
	return send(&broadcast.Read{})
}

// ring connects every node to its two neighbors on a cycle.
func ring(ids []string) map[string][]string {
	topo := make(map[string][]string, len(ids))
	for i, id := range ids {
		switch len(ids) {
		case 1:
			topo[id] = []string{}
		case 2:
			topo[id] = []string{ids[1-i]}
		default:
			topo[id] = []string{ids[(i+len(ids)-1)%len(ids)], ids[(i+1)%len(ids)]}
		}
	}
	return topo
}

func write[P proto.Payload](w io.Writer, m proto.Message[P]) error {
	line, err := proto.Encode(m)
	if err != nil {
		return err
	}
	_, err = w.Write(line)
	return err
}
