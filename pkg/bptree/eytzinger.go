package bptree

import "math/bits"

// eytzingerOrder returns, for each physical slot-array position p (0-indexed,
// corresponding to the classic 1-indexed Eytzinger position k = p+1), the
// sorted rank that belongs there. The construction is the standard
// in-order DFS over the implicit BFS-indexed binary tree: visit the left
// subtree, label the node with the next rank, visit the right subtree.
func eytzingerOrder(n int) []int {
	order := make([]int, n)
	rank := 0
	var fill func(k int)
	fill = func(k int) {
		if k > n {
			return
		}
		fill(2 * k)
		order[k-1] = rank
		rank++
		fill(2*k + 1)
	}
	fill(1)
	return order
}

// toEytzinger reorders an inner node's sorted slot array into Eytzinger
// (BFS) order in place, for branch-prediction-friendly search. Leaf
// nodes never use this layout. Child pointers are left untouched and
// stay indexed by sorted rank, since eytzingerLowerBound already yields
// a sorted rank directly — there is never a need to permute children.
func (n *Node) toEytzinger() {
	count := int(n.count())
	if n.isLeaf() || !n.sorted() || count < 2 {
		return
	}
	order := eytzingerOrder(count)
	copies := make([]slotCopy, count)
	for i := 0; i < count; i++ {
		copies[i] = n.copySlot(uint16(i))
	}
	for p := 0; p < count; p++ {
		c := copies[order[p]]
		n.setSlot(uint16(p), c.offset, c.headLen, c.remLen, c.head)
	}
	n.setSorted(false)
	n.eytzOrder = order
}

type slotCopy struct {
	offset          uint16
	headLen, remLen uint8
	head            uint32
}

func (n *Node) copySlot(i uint16) slotCopy {
	return slotCopy{n.slotOffset(i), n.slotHeadLen(i), n.slotRemLen(i), n.slotHead(i)}
}

// ensureSorted converts an Eytzinger-ordered inner node back to plain
// ascending slot order. Required before any mutation or scan of the
// node (Eytzinger order is a read-mostly search accelerator only).
func (n *Node) ensureSorted() {
	if n.sorted() {
		return
	}
	count := int(n.count())
	order := eytzingerOrder(count)
	copies := make([]slotCopy, count)
	for p := 0; p < count; p++ {
		copies[p] = n.copySlot(uint16(p))
	}
	for p := 0; p < count; p++ {
		c := copies[p]
		n.setSlot(uint16(order[p]), c.offset, c.headLen, c.remLen, c.head)
	}
	n.setSorted(true)
	n.eytzOrder = nil
	n.updateHints()
}

// eytzingerLowerBound returns the sorted rank (0-indexed, following the
// usual lower-bound convention) of the first key >= remainder, searching
// the physical slot array directly in its current Eytzinger order. This
// is the classic branchless Eytzinger query: descend doubling the index,
// then correct for the overshoot using the lowest clear bit of the final
// index. That correction yields the physical Eytzinger position of the
// answer, not its sorted rank, so the result is translated through the
// cached construction order (children stay indexed by sorted rank; see
// toEytzinger).
func (n *Node) eytzingerLowerBound(remainder []byte) uint16 {
	count := int(n.count())
	k := 1
	for k <= count {
		if n.cmpRemainder(uint16(k-1), remainder) > 0 {
			k = 2*k + 1
		} else {
			k = 2 * k
		}
	}
	shift := bits.TrailingZeros32(^uint32(k)) + 1
	k >>= shift
	// k == 0 is the original's "past the end" sentinel (all-ones k before
	// the shift collapses to 0), not a valid 1-indexed Eytzinger position.
	if k == 0 || k-1 >= count {
		return uint16(count)
	}
	return uint16(n.eytzOrder[k-1])
}
