package bptree

import (
	"bytes"
	"testing"
)

func expectPanic(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Error("expected a panic, got none")
		}
	}()
	f()
}

func TestHeaderOperations(t *testing.T) {
	n := newLeaf()
	if !n.isLeaf() {
		t.Error("newLeaf should report isLeaf true")
	}
	if n.count() != 0 {
		t.Errorf("expected count 0, got %d", n.count())
	}
	n.setCount(3)
	if n.count() != 3 {
		t.Errorf("expected count 3, got %d", n.count())
	}
	n.setCount(0)

	inner := newInner()
	if inner.isLeaf() {
		t.Error("newInner should report isLeaf false")
	}
}

func TestFenceOperations(t *testing.T) {
	n := newLeaf()
	n.setLowerFence([]byte("apple"))
	n.setUpperFence([]byte("banana"))
	if !bytes.Equal(n.lowerFence(), []byte("apple")) {
		t.Errorf("lowerFence = %q, want apple", n.lowerFence())
	}
	if !bytes.Equal(n.upperFence(), []byte("banana")) {
		t.Errorf("upperFence = %q, want banana", n.upperFence())
	}
	if !n.hasUpperFence() {
		t.Error("expected hasUpperFence true")
	}

	empty := newLeaf()
	empty.setLowerFence(nil)
	if empty.hasUpperFence() {
		t.Error("expected hasUpperFence false on a fresh node")
	}
}

func TestSlotRoundTrip(t *testing.T) {
	n := newLeaf()
	n.setCount(1)
	n.setSlot(0, 4000, 3, 5, 0xAABBCCDD)
	if got := n.slotOffset(0); got != 4000 {
		t.Errorf("slotOffset = %d, want 4000", got)
	}
	if got := n.slotHeadLen(0); got != 3 {
		t.Errorf("slotHeadLen = %d, want 3", got)
	}
	if got := n.slotRemLen(0); got != 5 {
		t.Errorf("slotRemLen = %d, want 5", got)
	}
	if got := n.slotHead(0); got != 0xAABBCCDD {
		t.Errorf("slotHead = %#x, want 0xaabbccdd", got)
	}
	n.setCount(0)
}

func TestInsertAndLookupExact(t *testing.T) {
	n := newLeaf()
	n.setUpperFence(nil)
	if !n.insert([]byte("bob"), []byte("1")) {
		t.Fatal("insert bob failed")
	}
	if !n.insert([]byte("alice"), []byte("2")) {
		t.Fatal("insert alice failed")
	}
	if !n.insert([]byte("carol"), []byte("3")) {
		t.Fatal("insert carol failed")
	}

	pos, ok := n.lookupExact([]byte("alice"))
	if !ok || pos != 0 {
		t.Fatalf("lookupExact(alice) = %d,%v, want 0,true", pos, ok)
	}
	if !bytes.Equal(n.payload(pos), []byte("2")) {
		t.Errorf("payload(alice) = %q, want 2", n.payload(pos))
	}

	if _, ok := n.lookupExact([]byte("dave")); ok {
		t.Error("lookupExact(dave) should not be found")
	}
}

func TestInsertDuplicatePanics(t *testing.T) {
	n := newLeaf()
	n.insert([]byte("k"), []byte("v"))
	expectPanic(t, func() {
		n.insert([]byte("k"), []byte("v2"))
	})
}

func TestRemove(t *testing.T) {
	n := newLeaf()
	n.insert([]byte("a"), []byte("1"))
	n.insert([]byte("b"), []byte("2"))
	n.insert([]byte("c"), []byte("3"))

	if !n.remove([]byte("b")) {
		t.Fatal("remove(b) should succeed")
	}
	if n.count() != 2 {
		t.Errorf("count after remove = %d, want 2", n.count())
	}
	if _, ok := n.lookupExact([]byte("b")); ok {
		t.Error("b should be gone after remove")
	}
	if n.remove([]byte("b")) {
		t.Error("second remove(b) should report not-found")
	}
}

func TestCompactPreservesContents(t *testing.T) {
	n := newLeaf()
	keys := []string{"d", "b", "a", "c", "e"}
	for _, k := range keys {
		n.insert([]byte(k), []byte("val-"+k))
	}
	n.remove([]byte("b"))
	n.remove([]byte("d"))

	before := map[string]string{}
	for i := uint16(0); i < n.count(); i++ {
		before[string(n.fullKey(i))] = string(n.payload(i))
	}

	n.compact()

	after := map[string]string{}
	for i := uint16(0); i < n.count(); i++ {
		after[string(n.fullKey(i))] = string(n.payload(i))
	}

	if len(before) != len(after) {
		t.Fatalf("compact changed entry count: %d -> %d", len(before), len(after))
	}
	for k, v := range before {
		if after[k] != v {
			t.Errorf("compact changed %q: %q -> %q", k, v, after[k])
		}
	}
}

func TestLargeRemainderEncoding(t *testing.T) {
	n := newLeaf()
	bigKey := bytes.Repeat([]byte("x"), 300)
	if !n.insert(bigKey, []byte("payload")) {
		t.Fatal("insert of a 300-byte key should fit in an empty page")
	}
	if got := n.slotRemLen(0); got != largeSentinel {
		t.Errorf("slotRemLen = %d, want largeSentinel (%d)", got, largeSentinel)
	}
	if !bytes.Equal(n.fullKey(0), bigKey) {
		t.Error("large key round-trip mismatch")
	}
}

func TestPrefixTruncation(t *testing.T) {
	n := newLeaf()
	n.setLowerFence([]byte("https://example.com/a"))
	n.setUpperFence([]byte("https://example.com/z"))
	n.setPrefixLen(uint16(commonPrefixLen(n.lowerFence(), n.upperFence())))
	if n.prefixLen() == 0 {
		t.Fatal("expected a non-zero shared prefix")
	}
	if !n.insert([]byte("https://example.com/m"), []byte("v")) {
		t.Fatal("insert within fence bounds should succeed")
	}
	if got := n.slotRemLen(0); int(got) >= len("https://example.com/m") {
		t.Errorf("remainder length %d should be shorter than the full key once prefix-stripped", got)
	}
}
