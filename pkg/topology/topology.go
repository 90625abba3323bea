package topology

import "slices"

// Table holds the cluster roster from the handshake and the neighbor
// list most recently assigned to this node. It is owned by the single
// dispatch goroutine and is not safe for concurrent use.
type Table struct {
	self      string
	members   map[string]struct{}
	neighbors []string
}

func New(self string, roster []string) *Table {
	t := &Table{
		self:      self,
		members:   make(map[string]struct{}, len(roster)),
		neighbors: []string{},
	}
	for _, id := range roster {
		t.members[id] = struct{}{}
	}
	return t
}

// Assign looks up this node's entry in topo and, if present, replaces the
// neighbor list with it. ok is false when the entry is missing, in which
// case the previous neighbors are kept. unknown lists assigned neighbors
// that were not in the handshake roster; they are still accepted.
func (t *Table) Assign(topo map[string][]string) (unknown []string, ok bool) {
	ns, ok := topo[t.self]
	if !ok {
		return nil, false
	}

	t.neighbors = slices.Clone(ns)
	if t.neighbors == nil {
		t.neighbors = []string{}
	}
	for _, id := range t.neighbors {
		if _, member := t.members[id]; !member {
			unknown = append(unknown, id)
		}
	}
	return unknown, true
}

// Neighbors returns a copy of the current neighbor list in assignment order.
func (t *Table) Neighbors() []string {
	return slices.Clone(t.neighbors)
}
