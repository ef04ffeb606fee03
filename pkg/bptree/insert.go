package bptree

import "encoding/binary"

// insert adds key/value at its sorted position, returning false if the
// node does not have room (the caller must split and retry). key must
// not already be present — Tree.Insert removes an existing key first to
// implement replace-if-present semantics. For inner nodes value is
// always nil; the child pointer at the new position is left for the
// caller (insertChild) to fill in.
func (n *Node) insert(key, value []byte) bool {
	pre := n.prefix()
	remainder := key[len(pre):]
	pos, exact := n.lowerBound(key)
	if exact {
		panic("bptree: insert called with a key already present")
	}

	recSize := spaceNeededForRecord(remainder, value, n.isLeaf())
	if n.postCompactFreeSpace() < recSize+slotSize {
		return false
	}

	// Compact before the slot directory grows: compact() copies the record
	// of every slot below count(), and the new slot is not filled in yet.
	if n.freeSpace() < recSize+slotSize {
		n.compact()
	}

	count := n.count()
	n.setCount(count + 1)
	for i := count; i > pos; i-- {
		c := n.copySlot(i - 1)
		n.setSlot(i, c.offset, c.headLen, c.remLen, c.head)
	}
	if !n.isLeaf() {
		n.children = append(n.children, nil)
		copy(n.children[pos+1:], n.children[pos:count])
	}

	off, ok := n.allocateSpace(recSize)
	if !ok {
		// Unreachable given the postCompactFreeSpace check above, but
		// leave the node internally consistent if it ever happens.
		n.setCount(count)
		if !n.isLeaf() {
			n.children = n.children[:count]
		}
		return false
	}

	headLen, head := extractHead(remainder)
	remLen := uint8(len(remainder))
	write := off
	if len(remainder) > maxSmallRemLen {
		binary.BigEndian.PutUint16(n.buf[write:], uint16(len(remainder)))
		write += 2
		remLen = largeSentinel
	}
	copy(n.buf[write:], remainder)
	write += uint16(len(remainder))
	if n.isLeaf() {
		binary.BigEndian.PutUint16(n.buf[write:], uint16(len(value)))
		write += 2
		copy(n.buf[write:], value)
	}

	n.setSlot(pos, off, headLen, remLen, head)
	n.setSpaceUsed(n.spaceUsed() + recSize)
	n.updateHints()
	return true
}

// removeSlotAt removes the slot (and, for inner nodes, the child
// pointer) at a known position.
func (n *Node) removeSlotAt(pos uint16) {
	count := n.count()
	recSize := n.recordLen(pos)
	for i := pos; i < count-1; i++ {
		c := n.copySlot(i + 1)
		n.setSlot(i, c.offset, c.headLen, c.remLen, c.head)
	}
	if !n.isLeaf() {
		copy(n.children[pos:], n.children[pos+1:count])
		n.children = n.children[:count-1]
	}
	n.setCount(count - 1)
	n.setSpaceUsed(n.spaceUsed() - recSize)
	n.updateHints()
}

// remove deletes key if present, reporting whether it was found.
func (n *Node) remove(key []byte) bool {
	pos, exact := n.lowerBound(key)
	if !exact {
		return false
	}
	n.removeSlotAt(pos)
	return true
}
