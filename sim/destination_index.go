// Implements the DestinationIndex: an AVL tree keyed by destination whose nodes
// each own a FIFO queue of parcels waiting for that destination.

package sim

import (
	"github.com/sirupsen/logrus"
)

// nilNode is the handle of an absent child.
const nilNode = -1

// indexNode is one destination in the tree. Nodes live in DestinationIndex.nodes
// and refer to their children by handle, never by pointer.
type indexNode struct {
	key    string
	queue  []*Parcel // FIFO, front at index 0
	left   int
	right  int
	height int // leaf = 1
}

// DestinationIndex maps destination keys to FIFO parcel queues.
//
// Invariants:
//   - |height(left) - height(right)| <= 1 at every node
//   - keys strictly increase in in-order traversal
//   - a key appears in at most one node
//   - nodes are never deleted, even when their queue drains
type DestinationIndex struct {
	nodes     []indexNode
	root      int
	rotations int
}

// NewDestinationIndex creates an empty index.
func NewDestinationIndex() *DestinationIndex {
	return &DestinationIndex{root: nilNode}
}

// Insert appends p to the queue for p.Destination, creating the node if the key is
// unseen, and rebalances the insertion path. Never fails.
func (x *DestinationIndex) Insert(p *Parcel) {
	x.root = x.insert(x.root, p)
}

func (x *DestinationIndex) insert(h int, p *Parcel) int {
	key := p.Destination
	if h == nilNode {
		x.nodes = append(x.nodes, indexNode{
			key:    key,
			queue:  []*Parcel{p},
			left:   nilNode,
			right:  nilNode,
			height: 1,
		})
		logrus.Debugf("destination index: new node %q", key)
		return len(x.nodes) - 1
	}

	// Children are assigned through a temporary: the recursive call may grow
	// x.nodes and move its backing array.
	switch {
	case key == x.nodes[h].key:
		x.nodes[h].queue = append(x.nodes[h].queue, p)
		return h
	case key < x.nodes[h].key:
		child := x.insert(x.nodes[h].left, p)
		x.nodes[h].left = child
	default:
		child := x.insert(x.nodes[h].right, p)
		x.nodes[h].right = child
	}

	x.updateHeight(h)
	balance := x.balance(h)

	// Left Left
	if balance > 1 && key < x.nodes[x.nodes[h].left].key {
		return x.rotateRight(h)
	}
	// Right Right
	if balance < -1 && key > x.nodes[x.nodes[h].right].key {
		return x.rotateLeft(h)
	}
	// Left Right
	if balance > 1 && key > x.nodes[x.nodes[h].left].key {
		child := x.rotateLeft(x.nodes[h].left)
		x.nodes[h].left = child
		return x.rotateRight(h)
	}
	// Right Left
	if balance < -1 && key < x.nodes[x.nodes[h].right].key {
		child := x.rotateRight(x.nodes[h].right)
		x.nodes[h].right = child
		return x.rotateLeft(h)
	}
	return h
}

func (x *DestinationIndex) height(h int) int {
	if h == nilNode {
		return 0
	}
	return x.nodes[h].height
}

func (x *DestinationIndex) updateHeight(h int) {
	x.nodes[h].height = 1 + max(x.height(x.nodes[h].left), x.height(x.nodes[h].right))
}

func (x *DestinationIndex) balance(h int) int {
	if h == nilNode {
		return 0
	}
	return x.height(x.nodes[h].left) - x.height(x.nodes[h].right)
}

// rotateRight lifts y's left child into y's place and returns its handle.
func (x *DestinationIndex) rotateRight(y int) int {
	logrus.Debugf("destination index: right rotation at %q", x.nodes[y].key)
	l := x.nodes[y].left
	x.nodes[y].left = x.nodes[l].right
	x.nodes[l].right = y
	x.updateHeight(y)
	x.updateHeight(l)
	x.rotations++
	return l
}

// rotateLeft lifts y's right child into y's place and returns its handle.
func (x *DestinationIndex) rotateLeft(y int) int {
	logrus.Debugf("destination index: left rotation at %q", x.nodes[y].key)
	r := x.nodes[y].right
	x.nodes[y].right = x.nodes[r].left
	x.nodes[r].left = y
	x.updateHeight(y)
	x.updateHeight(r)
	x.rotations++
	return r
}

func (x *DestinationIndex) find(key string) int {
	h := x.root
	for h != nilNode {
		switch {
		case key == x.nodes[h].key:
			return h
		case key < x.nodes[h].key:
			h = x.nodes[h].left
		default:
			h = x.nodes[h].right
		}
	}
	return nilNode
}

// PeekFront returns the head of key's queue without removing it.
// Returns nil if the key is unknown or its queue is empty.
func (x *DestinationIndex) PeekFront(key string) *Parcel {
	h := x.find(key)
	if h == nilNode || len(x.nodes[h].queue) == 0 {
		return nil
	}
	return x.nodes[h].queue[0]
}

// Remove pops the head of key's queue only if its ID equals parcelID.
// Returns false, and changes nothing, otherwise. Tree shape is never affected.
func (x *DestinationIndex) Remove(key, parcelID string) bool {
	h := x.find(key)
	if h == nilNode || len(x.nodes[h].queue) == 0 {
		return false
	}
	q := x.nodes[h].queue
	if q[0].ID != parcelID {
		return false
	}
	q[0] = nil
	x.nodes[h].queue = q[1:]
	logrus.Debugf("destination index: parcel %s removed from %q", parcelID, key)
	return true
}

// CountFor returns the number of parcels waiting for key (0 if unknown).
func (x *DestinationIndex) CountFor(key string) int {
	h := x.find(key)
	if h == nilNode {
		return 0
	}
	return len(x.nodes[h].queue)
}

// TotalCount returns the number of parcels waiting across all destinations.
func (x *DestinationIndex) TotalCount() int {
	total := 0
	x.Walk(func(_ string, queued []*Parcel) {
		total += len(queued)
	})
	return total
}

// Height returns the height of the tree (0 when empty).
func (x *DestinationIndex) Height() int { return x.height(x.root) }

// Len returns the number of distinct destinations ever inserted.
func (x *DestinationIndex) Len() int { return len(x.nodes) }

// Rotations returns the number of single rotations performed so far.
func (x *DestinationIndex) Rotations() int { return x.rotations }

// Walk visits every destination in ascending key order. The queued slice is the
// node's internal storage and MUST NOT be modified.
func (x *DestinationIndex) Walk(fn func(key string, queued []*Parcel)) {
	x.walk(x.root, fn)
}

func (x *DestinationIndex) walk(h int, fn func(string, []*Parcel)) {
	if h == nilNode {
		return
	}
	x.walk(x.nodes[h].left, fn)
	fn(x.nodes[h].key, x.nodes[h].queue)
	x.walk(x.nodes[h].right, fn)
}

// Keys returns all destination keys in ascending order.
func (x *DestinationIndex) Keys() []string {
	keys := make([]string, 0, len(x.nodes))
	x.Walk(func(key string, _ []*Parcel) {
		keys = append(keys, key)
	})
	return keys
}

// MostLoaded returns the destinations with the longest pending queue, in key order,
// and that queue length. Returns nil, 0 when the index is empty.
func (x *DestinationIndex) MostLoaded() ([]string, int) {
	var keys []string
	best := -1
	x.Walk(func(key string, queued []*Parcel) {
		switch {
		case len(queued) > best:
			best = len(queued)
			keys = []string{key}
		case len(queued) == best:
			keys = append(keys, key)
		}
	})
	if best < 0 {
		return nil, 0
	}
	return keys, best
}

// IsBalanced walks the whole tree and verifies the AVL, ordering and cached-height
// invariants independently of the stored balance bookkeeping.
func (x *DestinationIndex) IsBalanced() bool {
	_, ok := x.verify(x.root, "", false, "", false)
	return ok
}

// verify returns the recomputed height of h and whether its subtree is valid given
// exclusive key bounds.
func (x *DestinationIndex) verify(h int, lo string, hasLo bool, hi string, hasHi bool) (int, bool) {
	if h == nilNode {
		return 0, true
	}
	n := x.nodes[h]
	if (hasLo && n.key <= lo) || (hasHi && n.key >= hi) {
		return 0, false
	}
	lh, lok := x.verify(n.left, lo, hasLo, n.key, true)
	rh, rok := x.verify(n.right, n.key, true, hi, hasHi)
	if !lok || !rok {
		return 0, false
	}
	if lh-rh > 1 || rh-lh > 1 {
		return 0, false
	}
	height := 1 + max(lh, rh)
	return height, height == n.height
}
