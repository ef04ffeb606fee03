package bptree

import "github.com/pkg/errors"

// the largest key+value pair that could ever fit a freshly-compacted
// empty leaf page, accounting for the header, one slot, the large-entry
// length prefix, and the payload-length field.
const maxEntrySize = pageSize - headerSize - slotSize - 2 - 2

// Tree owns the root of an in-memory B+ tree and orchestrates routing,
// cascading splits, and opportunistic merges around Node's local
// operations. It is single-threaded and non-reentrant: callers must not
// invoke it concurrently, or recursively from within a callback passed
// to Scan.
type Tree struct {
	root *Node

	// onEvent, when set, is called with a short event name for every
	// structural change (leaf split, inner split, root growth, merge
	// attempted/applied/skipped). It exists so a wrapper like pkg/index
	// can log these diagnostics without this package importing a
	// logging library itself.
	onEvent func(event string)
}

// New creates an empty tree, a single empty leaf with no fences.
func New() *Tree {
	return &Tree{root: newLeaf()}
}

// SetEventHook installs fn as the structural-event callback. Passing
// nil disables event reporting.
func (t *Tree) SetEventHook(fn func(event string)) { t.onEvent = fn }

func (t *Tree) emit(event string) {
	if t.onEvent != nil {
		t.onEvent(event)
	}
}

// Insert adds key/value, replacing any existing value for key. Empty
// keys and nil values are rejected silently, matching the free
// functions' null-guard behavior in the original implementation.
func (t *Tree) Insert(key, value []byte) {
	if len(key) == 0 || value == nil {
		return
	}
	if len(key)+len(value) > maxEntrySize {
		panic(errors.Wrapf(ErrEntryTooLarge, "key len %d, value len %d", len(key), len(value)))
	}

	for {
		n := t.root
		var chain []*Node
		for !n.isLeaf() {
			n.ensureSorted()
			chain = append(chain, n)
			pos := n.lookupInnerPos(key)
			n = n.childAt(pos)
		}
		if _, ok := n.lookupExact(key); ok {
			n.remove(key)
		}
		if n.insert(key, value) {
			return
		}
		t.splitCascade(n, chain)
	}
}

// splitCascade splits node in place and installs the new separator into
// its parent, recursively splitting ancestors first if they lack room.
// The descent in Insert retains the ancestor chain as live pointers, and
// a split keeps each node's identity (it rewrites the node's own bytes).
// When the parent itself has to split, though, node may end up under the
// parent's new left sibling, so the current parent is found again by
// routing the separator down from the root.
func (t *Tree) splitCascade(node *Node, chain []*Node) {
	sepKey, left := node.split()
	if node.isLeaf() {
		t.emit("leaf_split")
	} else {
		t.emit("inner_split")
	}
	if len(chain) == 0 {
		root := newInner()
		root.upperChild = node
		root.insertChild(sepKey, left)
		root.toEytzinger()
		t.root = root
		t.emit("root_grow")
		return
	}
	parent := chain[len(chain)-1]
	if !parent.canHoldSeparator(sepKey) {
		t.splitCascade(parent, chain[:len(chain)-1])
		// sepKey sorts into node, so routing it from the root reaches
		// node's current parent.
		parent = t.root
		for c := parent.childAt(parent.lookupInnerPos(sepKey)); c != node; c = parent.childAt(parent.lookupInnerPos(sepKey)) {
			parent = c
		}
	}
	parent.insertChild(sepKey, left)
	// Opportunistic re-optimization: parent was just forced sorted by the
	// descent in Insert before it could be mutated, per spec; converting
	// it back to Eytzinger order now benefits any subsequent pure Lookup
	// routing through it without affecting correctness of later mutations
	// (which re-sort on their own descent).
	parent.toEytzinger()
}

// Lookup returns a copy of the value stored for key, sized to exactly
// its stored length (the original's fixed 1024-byte scratch buffer is
// not reproduced here).
func (t *Tree) Lookup(key []byte) ([]byte, bool) {
	if len(key) == 0 {
		return nil, false
	}
	n := t.root
	for !n.isLeaf() {
		pos := n.lookupInnerPos(key)
		n = n.childAt(pos)
	}
	pos, ok := n.lookupExact(key)
	if !ok {
		return nil, false
	}
	stored := n.payload(pos)
	out := make([]byte, len(stored))
	copy(out, stored)
	return out, true
}

// Remove deletes key if present and opportunistically merges the
// containing leaf with its immediate right sibling if both are
// under-full afterward, cascading the same check up the ancestor chain:
// removing a parent's separator slot can itself leave the parent
// under-full, same as splitCascade propagates growth upward.
func (t *Tree) Remove(key []byte) bool {
	if len(key) == 0 {
		return false
	}
	n := t.root
	var chain []*Node
	var posChain []uint16
	for !n.isLeaf() {
		n.ensureSorted()
		chain = append(chain, n)
		pos := n.lookupInnerPos(key)
		posChain = append(posChain, pos)
		n = n.childAt(pos)
	}
	ok := n.remove(key)
	if ok {
		t.mergeCascade(n, chain, posChain)
	}
	return ok
}

// mergeCascade attempts an opportunistic merge at node's level and, if
// applied, retries one level up, since the parent just lost a separator
// slot and may itself have become under-full.
func (t *Tree) mergeCascade(node *Node, chain []*Node, posChain []uint16) {
	for len(chain) > 0 {
		parent := chain[len(chain)-1]
		pos := posChain[len(posChain)-1]
		if !t.tryMerge(node, parent, pos) {
			return
		}
		node = parent
		chain = chain[:len(chain)-1]
		posChain = posChain[:len(posChain)-1]
	}
}

// tryMerge opportunistically combines node with its immediate right
// sibling under the same parent when both are under-full, per the
// original's BTree::remove (right sibling at pos+1, not 2*pos+2 — the
// latter would be the child-array indexing of a different tree shape).
// Best effort: failure at any step silently leaves the tree unchanged.
// Reports whether a merge was actually applied, so mergeCascade knows
// whether to keep walking up.
func (t *Tree) tryMerge(node, parent *Node, pos uint16) bool {
	if !node.isUnderfull() {
		return false
	}
	right := parent.childAt(pos + 1)
	if right == nil || !right.isUnderfull() {
		return false
	}
	// node may be in Eytzinger order when mergeCascade passes up a parent
	// that a merge one level down just converted; right is an unvisited
	// sibling that may still be in Eytzinger order from an earlier
	// opportunistic conversion.
	node.ensureSorted()
	right.ensureSorted()
	t.emit("merge_attempt")
	var sepKey []byte
	if pos < parent.count() {
		sepKey = parent.fullKey(pos)
	}
	if node.merge(right, sepKey) {
		parent.removeSlotAt(pos)
		// The child that now follows the removed separator is right;
		// point it at node, which holds the combined entries.
		if int(pos) < len(parent.children) {
			parent.children[pos] = node
		} else {
			parent.upperChild = node
		}
		parent.toEytzinger()
		t.emit("merge_applied")
		return true
	}
	t.emit("merge_skipped")
	return false
}

// Scan visits every key >= start in ascending order, calling fn for
// each. fn's return value threads the continue/stop decision explicitly
// through the recursion, replacing the original's global mutable `cont`
// flag, which the spec's design notes single out as an anti-pattern.
func (t *Tree) Scan(start []byte, fn func(key, value []byte) bool) {
	t.root.scan(start, fn)
}

func (n *Node) scan(start []byte, fn func(key, value []byte) bool) bool {
	if n.isLeaf() {
		pos, _ := n.lowerBound(start)
		for i := pos; i < n.count(); i++ {
			if !fn(n.fullKey(i), n.payload(i)) {
				return false
			}
		}
		return true
	}
	n.ensureSorted()
	pos := n.lookupInnerPos(start)
	for i := pos; i <= n.count(); i++ {
		if !n.childAt(i).scan(start, fn) {
			return false
		}
		start = nil
	}
	return true
}

// Destroy releases the tree's nodes via an explicit post-order subtree
// walk and resets the tree to empty. Go's GC makes this unnecessary for
// memory safety, but the spec calls out node teardown order as its own
// operation, so it is kept observable and testable as one.
func (t *Tree) Destroy() {
	t.root.destroy()
	t.root = newLeaf()
}
