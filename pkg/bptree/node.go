package bptree

import "encoding/binary"

func newLeaf() *Node {
	n := &Node{}
	n.setLeaf(true)
	n.setSorted(true)
	n.setHeapLow(pageSize)
	return n
}

func newInner() *Node {
	n := &Node{}
	n.setLeaf(false)
	n.setSorted(true)
	n.setHeapLow(pageSize)
	return n
}

// recordLen returns the number of heap bytes occupied by slot i's record.
func (n *Node) recordLen(i uint16) uint16 {
	off := n.slotOffset(i)
	remLen := n.slotRemLen(i)
	var afterRemainder uint16
	if remLen == largeSentinel {
		trueLen := binary.BigEndian.Uint16(n.buf[off:])
		afterRemainder = off + 2 + trueLen
	} else {
		afterRemainder = off + uint16(remLen)
	}
	if !n.isLeaf() {
		return afterRemainder - off
	}
	plen := binary.BigEndian.Uint16(n.buf[afterRemainder:])
	return (afterRemainder + 2 + plen) - off
}

func (n *Node) rawRecord(i uint16) []byte {
	off := n.slotOffset(i)
	return n.buf[off : off+n.recordLen(i)]
}

// remainder returns the post-prefix portion of slot i's key.
func (n *Node) remainder(i uint16) []byte {
	off := n.slotOffset(i)
	remLen := n.slotRemLen(i)
	if remLen == largeSentinel {
		trueLen := binary.BigEndian.Uint16(n.buf[off:])
		return n.buf[off+2 : off+2+trueLen]
	}
	return n.buf[off : off+uint16(remLen)]
}

// payload returns slot i's value. Leaf nodes only.
func (n *Node) payload(i uint16) []byte {
	off := n.slotOffset(i)
	remLen := n.slotRemLen(i)
	var p uint16
	if remLen == largeSentinel {
		trueLen := binary.BigEndian.Uint16(n.buf[off:])
		p = off + 2 + trueLen
	} else {
		p = off + uint16(remLen)
	}
	plen := binary.BigEndian.Uint16(n.buf[p:])
	return n.buf[p+2 : p+2+plen]
}

// prefix returns the common prefix bytes shared by every key in this
// node, derived from whichever fence actually carries it.
func (n *Node) prefix() []byte {
	pl := int(n.prefixLen())
	if pl == 0 {
		return nil
	}
	if lf := n.lowerFence(); len(lf) >= pl {
		return lf[:pl]
	}
	return n.upperFence()[:pl]
}

func (n *Node) fullKey(i uint16) []byte {
	pre := n.prefix()
	rem := n.remainder(i)
	out := make([]byte, 0, len(pre)+len(rem))
	out = append(out, pre...)
	out = append(out, rem...)
	return out
}

// compact rebuilds the heap in place to reclaim fragmentation from prior
// deletes, without changing the node's logical contents.
func (n *Node) compact() {
	var scratch [pageSize]byte
	write := pageSize

	lf := append([]byte(nil), n.lowerFence()...)
	uf := append([]byte(nil), n.upperFence()...)
	var lfOff, ufOff uint16
	if len(lf) > 0 {
		write -= len(lf)
		lfOff = uint16(write)
		copy(scratch[write:], lf)
	}
	if len(uf) > 0 {
		write -= len(uf)
		ufOff = uint16(write)
		copy(scratch[write:], uf)
	}

	count := n.count()
	type saved struct {
		headLen, remLen uint8
		head            uint32
		data            []byte
	}
	items := make([]saved, count)
	for i := uint16(0); i < count; i++ {
		items[i] = saved{
			headLen: n.slotHeadLen(i),
			remLen:  n.slotRemLen(i),
			head:    n.slotHead(i),
			data:    append([]byte(nil), n.rawRecord(i)...),
		}
	}
	offsets := make([]uint16, count)
	for i := uint16(0); i < count; i++ {
		write -= len(items[i].data)
		offsets[i] = uint16(write)
		copy(scratch[write:], items[i].data)
	}

	copy(n.buf[write:], scratch[write:])
	n.setHeapLow(uint16(write))
	if len(lf) > 0 {
		binary.BigEndian.PutUint16(n.buf[hdrLowerFenceOff:], lfOff)
	}
	if len(uf) > 0 {
		binary.BigEndian.PutUint16(n.buf[hdrUpperFenceOff:], ufOff)
	}
	for i := uint16(0); i < count; i++ {
		n.setSlot(i, offsets[i], items[i].headLen, items[i].remLen, items[i].head)
	}
}

// hintRange narrows [lo, hi) using the 16 equally-spaced head-key
// samples before falling back to binary search. Purely an accelerator:
// returning the full [0, count) range here is always a correct (if
// slower) answer.
func (n *Node) hintRange(remainder []byte) (lo, hi uint16) {
	count := n.count()
	if count == 0 {
		return 0, 0
	}
	dist := count / (hintCount + 1)
	if dist == 0 {
		return 0, count
	}
	_, head := extractHead(remainder)
	lo, hi = 0, count
	for i := 0; i < hintCount; i++ {
		slotIdx := uint16(i+1) * dist
		if slotIdx >= count {
			break
		}
		h := n.hint(i)
		if h < head {
			lo = slotIdx
		} else if h > head {
			hi = slotIdx
			break
		}
		// A hint equal to head moves neither bound: the true lower bound
		// may sit anywhere in the run of equal heads, which can extend up
		// to the next strictly greater hint (or to count if there is none).
	}
	if hi > count {
		hi = count
	}
	return lo, hi
}

// updateHints resamples the hint array from the current, sorted slot
// array. Called after any mutation (insert/remove/split/merge/compact).
// Never load-bearing for correctness, only for search speed.
func (n *Node) updateHints() {
	count := n.count()
	if count == 0 {
		for i := 0; i < hintCount; i++ {
			n.setHint(i, 0)
		}
		return
	}
	dist := count / (hintCount + 1)
	for i := 0; i < hintCount; i++ {
		if dist == 0 {
			n.setHint(i, 0)
			continue
		}
		slotIdx := uint16(i+1) * dist
		if slotIdx >= count {
			slotIdx = count - 1
		}
		n.setHint(i, n.slotHead(slotIdx))
	}
}

// lowerBound returns the position of the first key >= key and whether
// that position is an exact match. Ported from the original's clean
// lowerBound1 (binary search narrowed by hints); the debug dual-path
// variant that cross-checked against the Eytzinger layout is not
// reproduced here.
func (n *Node) lowerBound(key []byte) (pos uint16, exact bool) {
	pre := n.prefix()
	cp := commonPrefixLen(key, pre)
	if cp < len(pre) {
		if cp == len(key) || key[cp] < pre[cp] {
			return 0, false
		}
		return n.count(), false
	}
	remainder := key[len(pre):]
	if !n.isLeaf() && !n.sorted() {
		pos := n.eytzingerLowerBound(remainder)
		if pos < n.count() {
			// pos is a sorted rank; compare against the slot that
			// physically holds that rank.
			for p, r := range n.eytzOrder {
				if r == int(pos) {
					return pos, n.cmpRemainder(uint16(p), remainder) == 0
				}
			}
		}
		return pos, false
	}
	lo, hi := n.hintRange(remainder)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if n.cmpRemainder(mid, remainder) > 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < n.count() && n.cmpRemainder(lo, remainder) == 0 {
		return lo, true
	}
	return lo, false
}

func (n *Node) lookupExact(key []byte) (pos uint16, ok bool) {
	p, exact := n.lowerBound(key)
	return p, exact
}

func isUnderfull(post uint16) bool {
	return uint32(post)*underfullDenominator >= uint32(pageSize)*underfullNumerator
}

func (n *Node) isUnderfull() bool { return isUnderfull(n.postCompactFreeSpace()) }

// spaceNeededForRecord computes the heap bytes a (remainder, payload)
// pair will occupy, including the large-entry length prefix when the
// remainder exceeds maxSmallRemLen.
func spaceNeededForRecord(remainder []byte, payload []byte, leaf bool) uint16 {
	sz := len(remainder)
	if sz > maxSmallRemLen {
		sz += 2
	}
	if leaf {
		sz += 2 + len(payload)
	}
	return uint16(sz)
}

// canHoldSeparator reports whether inserting sepKey as a new separator
// would fit without needing a split, without actually mutating the node.
func (n *Node) canHoldSeparator(sepKey []byte) bool {
	pre := n.prefix()
	cp := commonPrefixLen(sepKey, pre)
	remainder := sepKey
	if cp == len(pre) {
		remainder = sepKey[len(pre):]
	}
	need := spaceNeededForRecord(remainder, nil, false) + slotSize
	return n.postCompactFreeSpace() >= need
}

// childAt returns the child pointer for routing position i in
// [0, count]; i == count means the rightmost (upper) child. Returns nil
// past that range (no right sibling).
func (n *Node) childAt(i uint16) *Node {
	if int(i) < len(n.children) {
		return n.children[i]
	}
	if i == n.count() {
		return n.upperChild
	}
	return nil
}

// lookupInnerPos returns the child index to descend into for key.
func (n *Node) lookupInnerPos(key []byte) uint16 {
	pos, exact := n.lowerBound(key)
	if exact {
		return pos + 1
	}
	return pos
}

// destroy releases a subtree post-order. With native Go pointers this
// exists for parity with the spec's explicit Destroy operation and to
// make teardown order observable/testable, not because Go needs manual
// freeing.
func (n *Node) destroy() {
	if n.isLeaf() {
		return
	}
	for _, c := range n.children {
		c.destroy()
	}
	if n.upperChild != nil {
		n.upperChild.destroy()
	}
	n.children = nil
	n.upperChild = nil
}
