package bptree

import (
	"bytes"
	"encoding/binary"
)

// commonPrefixLen returns how many leading bytes a and b share.
func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// extractHead packs the first up to maxHeadLen bytes of remainder into a
// big-endian uint32, zero-padded on the right. Unsigned comparison of two
// heads then agrees with bytes.Compare of the corresponding remainders
// for any shared head length, because a strict-prefix remainder is
// zero-extended and therefore compares as smaller.
func extractHead(remainder []byte) (headLen uint8, head uint32) {
	var buf [4]byte
	n := len(remainder)
	if n > maxHeadLen {
		n = maxHeadLen
	}
	copy(buf[:], remainder[:n])
	return uint8(n), binary.BigEndian.Uint32(buf[:])
}

// remHeadForCompare builds the comparable head for a full key slice that
// has already been reduced to its remainder (post common-prefix) form.
func remHeadForCompare(remainder []byte) uint32 {
	_, h := extractHead(remainder)
	return h
}

// cmpRemainder compares a query remainder against a slot's stored head +
// true remainder bytes, matching bytes.Compare semantics.
func (n *Node) cmpRemainder(i uint16, remainder []byte) int {
	headLen, head := extractHead(remainder)
	slotHead := n.slotHead(i)
	slotHeadLen := n.slotHeadLen(i)
	// Compare at head-length resolution first: this is just a fast
	// rejection, since the full comparison below is always correct too.
	if head != slotHead {
		if head < slotHead {
			return -1
		}
		return 1
	}
	if headLen != slotHeadLen && headLen < maxHeadLen && slotHeadLen < maxHeadLen {
		// Both remainders are shorter than a full head and their heads
		// matched byte-for-byte up to the shorter length: the shorter
		// one is the strict prefix and therefore smaller.
		if headLen < slotHeadLen {
			return -1
		}
		return 1
	}
	// Heads tie on all maxHeadLen bytes (or both keys are <= maxHeadLen
	// and equal there); fall back to the true remainder bytes.
	return bytes.Compare(remainder, n.remainder(i))
}
