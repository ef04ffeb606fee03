// Package bptree implements an in-memory, single-threaded B+ tree over
// fixed-size slotted pages. A page never grows past pageSize and is never
// persisted: node-to-node references are native Go pointers rather than
// page IDs, since durability is explicitly out of scope.
package bptree

import "encoding/binary"

const (
	pageSize = 4096

	// Header layout, all fixed offsets into Node.buf.
	hdrIsLeaf         = 0  // 1 byte
	hdrSorted         = 1  // 1 byte: 1 = ascending slot order, 0 = eytzinger order
	hdrCount          = 2  // uint16
	hdrSpaceUsed      = 4  // uint16
	hdrHeapLow        = 6  // uint16: lowest allocated heap offset
	hdrPrefixLen      = 8  // uint16
	hdrLowerFenceOff  = 10 // uint16
	hdrLowerFenceLen  = 12 // uint16
	hdrUpperFenceOff  = 14 // uint16
	hdrUpperFenceLen  = 16 // uint16
	hdrHints          = 18 // uint32 * hintCount
	headerSize        = 88 // padded, hdrHints(18) + 16*4(64) = 82, rounded up

	hintCount = 16

	slotSize   = 8 // offset(2) + headLen(1) + remLen(1) + head(4)
	maxHeadLen = 4

	// remLen == largeSentinel means the true remainder length is stored as
	// a uint16 immediately before the remainder bytes in the heap record.
	largeSentinel  = 255
	maxSmallRemLen = 254

	// A node is a merge candidate once its post-compact free space reaches
	// this fraction of the page. Purely a rebalancing heuristic, never
	// load-bearing for correctness.
	underfullNumerator   = 3
	underfullDenominator = 5 // 60%
)

// Node is one fixed-size slotted page: header, slot directory (grows
// upward from headerSize), and heap (grows downward from pageSize).
// Inner nodes additionally carry their child pointers natively in Go
// rather than encoded in the page bytes, since child references never
// need to survive a process restart.
type Node struct {
	buf [pageSize]byte

	// Inner-node only: children[i] is the child below slot i's separator,
	// upperChild is the rightmost child (beyond the last separator).
	children   []*Node
	upperChild *Node

	// eytzOrder caches eytzingerOrder(count()) while the node is in
	// Eytzinger layout (sorted() == false): eytzOrder[p] is the sorted
	// rank of the element physically stored at Eytzinger position p.
	// nil whenever sorted() == true.
	eytzOrder []int
}

func (n *Node) isLeaf() bool { return n.buf[hdrIsLeaf] != 0 }

func (n *Node) setLeaf(v bool) {
	if v {
		n.buf[hdrIsLeaf] = 1
	} else {
		n.buf[hdrIsLeaf] = 0
	}
}

func (n *Node) sorted() bool { return n.buf[hdrSorted] != 0 }

func (n *Node) setSorted(v bool) {
	if v {
		n.buf[hdrSorted] = 1
	} else {
		n.buf[hdrSorted] = 0
	}
}

func (n *Node) count() uint16      { return binary.BigEndian.Uint16(n.buf[hdrCount:]) }
func (n *Node) setCount(v uint16)  { binary.BigEndian.PutUint16(n.buf[hdrCount:], v) }
func (n *Node) spaceUsed() uint16  { return binary.BigEndian.Uint16(n.buf[hdrSpaceUsed:]) }
func (n *Node) setSpaceUsed(v uint16) {
	binary.BigEndian.PutUint16(n.buf[hdrSpaceUsed:], v)
}
func (n *Node) heapLow() uint16     { return binary.BigEndian.Uint16(n.buf[hdrHeapLow:]) }
func (n *Node) setHeapLow(v uint16) { binary.BigEndian.PutUint16(n.buf[hdrHeapLow:], v) }
func (n *Node) prefixLen() uint16   { return binary.BigEndian.Uint16(n.buf[hdrPrefixLen:]) }
func (n *Node) setPrefixLen(v uint16) {
	binary.BigEndian.PutUint16(n.buf[hdrPrefixLen:], v)
}

func (n *Node) dirEnd() uint16 { return headerSize + n.count()*slotSize }

// freeSpace is the currently-unallocated region between the slot
// directory and the heap; it may understate what's recoverable by
// compaction.
func (n *Node) freeSpace() uint16 { return n.heapLow() - n.dirEnd() }

// postCompactFreeSpace is what freeSpace would be after a compact().
func (n *Node) postCompactFreeSpace() uint16 {
	return pageSize - n.dirEnd() - n.spaceUsed()
}

func (n *Node) lowerFence() []byte {
	off := binary.BigEndian.Uint16(n.buf[hdrLowerFenceOff:])
	l := binary.BigEndian.Uint16(n.buf[hdrLowerFenceLen:])
	return n.buf[off : off+l]
}

func (n *Node) upperFence() []byte {
	off := binary.BigEndian.Uint16(n.buf[hdrUpperFenceOff:])
	l := binary.BigEndian.Uint16(n.buf[hdrUpperFenceLen:])
	return n.buf[off : off+l]
}

func (n *Node) hasUpperFence() bool {
	return binary.BigEndian.Uint16(n.buf[hdrUpperFenceLen:]) > 0
}

// writeFence allocates heap space for a fence key and records its
// location in the header. Passing a nil/empty key clears the fence
// (represents -infinity for the lower fence, +infinity for the upper).
func (n *Node) writeFence(offField, lenField int, key []byte) {
	if len(key) == 0 {
		binary.BigEndian.PutUint16(n.buf[offField:], 0)
		binary.BigEndian.PutUint16(n.buf[lenField:], 0)
		return
	}
	off, ok := n.allocateSpace(uint16(len(key)))
	if !ok {
		panic("bptree: fence key does not fit in an empty page")
	}
	copy(n.buf[off:], key)
	binary.BigEndian.PutUint16(n.buf[offField:], off)
	binary.BigEndian.PutUint16(n.buf[lenField:], uint16(len(key)))
	n.setSpaceUsed(n.spaceUsed() + uint16(len(key)))
}

func (n *Node) setLowerFence(key []byte) { n.writeFence(hdrLowerFenceOff, hdrLowerFenceLen, key) }
func (n *Node) setUpperFence(key []byte) { n.writeFence(hdrUpperFenceOff, hdrUpperFenceLen, key) }

func (n *Node) hint(i int) uint32 {
	return binary.BigEndian.Uint32(n.buf[hdrHints+4*i:])
}

func (n *Node) setHint(i int, v uint32) {
	binary.BigEndian.PutUint32(n.buf[hdrHints+4*i:], v)
}

// slot accessors. Slot i lives at headerSize + i*slotSize.
func (n *Node) slotAt(i uint16) int { return headerSize + int(i)*slotSize }

func (n *Node) slotOffset(i uint16) uint16 {
	p := n.slotAt(i)
	return binary.BigEndian.Uint16(n.buf[p:])
}

func (n *Node) slotHeadLen(i uint16) uint8 { return n.buf[n.slotAt(i)+2] }
func (n *Node) slotRemLen(i uint16) uint8  { return n.buf[n.slotAt(i)+3] }

func (n *Node) slotHead(i uint16) uint32 {
	p := n.slotAt(i) + 4
	return binary.BigEndian.Uint32(n.buf[p:])
}

func (n *Node) setSlot(i uint16, offset uint16, headLen, remLen uint8, head uint32) {
	p := n.slotAt(i)
	binary.BigEndian.PutUint16(n.buf[p:], offset)
	n.buf[p+2] = headLen
	n.buf[p+3] = remLen
	binary.BigEndian.PutUint32(n.buf[p+4:], head)
}

// allocateSpace tries to carve n bytes out of the heap, compacting once
// if the physically free region is too small but the post-compact
// region would suffice. Returns ok=false if the record cannot fit even
// in a freshly-compacted empty page, in which case the caller must
// split first.
func (n *Node) allocateSpace(size uint16) (uint16, bool) {
	if n.freeSpace() < size {
		if n.postCompactFreeSpace() < size {
			return 0, false
		}
		n.compact()
	}
	newLow := n.heapLow() - size
	n.setHeapLow(newLow)
	return newLow, true
}
