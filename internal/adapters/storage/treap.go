package storage

import "math/rand/v2"

// Order-statistic treap holding the ids of one list.
//
// Ordering: seq DESC, then id ASC. In-order traversal yields the list from
// most to least recently added, and subtree sizes give O(log n) offsets.

type node struct {
	id    string
	seq   uint64
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aSeq, aID) comes before (bSeq, bID).
func less(aSeq uint64, aID string, bSeq uint64, bID string) bool {
	if aSeq != bSeq {
		return aSeq > bSeq
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, seq uint64) *node {
	if n == nil {
		return &node{id: id, seq: seq, prio: rand.Uint64(), size: 1}
	}
	if less(seq, id, n.seq, n.id) {
		n.left = insert(n.left, id, seq)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, seq)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, seq uint64) *node {
	if n == nil {
		return nil
	}
	if seq == n.seq && id == n.id {
		// Rotate the higher priority child up until n is a leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, seq)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, seq)
		}
	} else if less(seq, id, n.seq, n.id) {
		n.left = deleteNode(n.left, id, seq)
	} else {
		n.right = deleteNode(n.right, id, seq)
	}
	fix(n)
	return n
}

// collect appends up to limit ids in order, skipping the first skip.
func collect(n *node, skip, limit int, out *[]string) {
	if n == nil || len(*out) >= limit {
		return
	}
	left := nsize(n.left)
	if skip < left {
		collect(n.left, skip, limit, out)
	}
	if len(*out) >= limit {
		return
	}
	if skip <= left {
		*out = append(*out, n.id)
	}
	rest := skip - left - 1
	if rest < 0 {
		rest = 0
	}
	collect(n.right, rest, limit, out)
}

// list is one ordered id set.
type list struct {
	root *node
	seqs map[string]uint64
}

func newList() *list {
	return &list{seqs: make(map[string]uint64)}
}

func (l *list) add(id string, seq uint64) {
	if old, ok := l.seqs[id]; ok {
		l.root = deleteNode(l.root, id, old)
	}
	l.seqs[id] = seq
	l.root = insert(l.root, id, seq)
}

func (l *list) remove(id string) bool {
	old, ok := l.seqs[id]
	if !ok {
		return false
	}
	delete(l.seqs, id)
	l.root = deleteNode(l.root, id, old)
	return true
}

func (l *list) window(offset, limit int) []string {
	out := []string{}
	if limit <= 0 || offset < 0 || offset >= nsize(l.root) {
		return out
	}
	collect(l.root, offset, limit, &out)
	return out
}
