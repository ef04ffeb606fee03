package bptree

import (
	"bytes"
	"sort"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/require"
)

// refEntry and refMap are a disposable, test-only oracle — a sorted
// slice, not a shipped ordered-map implementation — used purely to
// check the tree against ground truth in the S5 random-workload
// equivalence property.
type refEntry struct {
	key, value []byte
}

type refMap struct{ entries []refEntry }

func (m *refMap) find(key []byte) int {
	return sort.Search(len(m.entries), func(i int) bool {
		return bytes.Compare(m.entries[i].key, key) >= 0
	})
}

func (m *refMap) put(key, value []byte) {
	i := m.find(key)
	if i < len(m.entries) && bytes.Equal(m.entries[i].key, key) {
		m.entries[i].value = value
		return
	}
	m.entries = append(m.entries, refEntry{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = refEntry{key, value}
}

func (m *refMap) get(key []byte) ([]byte, bool) {
	i := m.find(key)
	if i < len(m.entries) && bytes.Equal(m.entries[i].key, key) {
		return m.entries[i].value, true
	}
	return nil, false
}

func (m *refMap) del(key []byte) bool {
	i := m.find(key)
	if i < len(m.entries) && bytes.Equal(m.entries[i].key, key) {
		m.entries = append(m.entries[:i], m.entries[i+1:]...)
		return true
	}
	return false
}

// S5: 10,000 randomized insert/delete operations, followed by a lookup
// of every live key and a full scan, checked against an ordered-slice
// reference map.
func TestRandomWorkloadMatchesReferenceMap(t *testing.T) {
	f := fuzz.New().NilChance(0).NumElements(1, 50)
	tree := New()
	ref := &refMap{}

	randKey := func() []byte {
		var s string
		f.Fuzz(&s)
		if len(s) == 0 {
			s = "k"
		}
		if len(s) > 50 {
			s = s[:50]
		}
		return []byte(s)
	}
	randVal := func() []byte {
		var s string
		f.Fuzz(&s)
		return []byte(s)
	}

	const ops = 10000
	for i := 0; i < ops; i++ {
		switch i % 3 {
		case 0, 1:
			k, v := randKey(), randVal()
			tree.Insert(k, v)
			ref.put(k, v)
		case 2:
			k := randKey()
			gotTree := tree.Remove(k)
			gotRef := ref.del(k)
			require.Equal(t, gotRef, gotTree, "delete(%q) disagreement", k)
		}
	}

	for _, e := range ref.entries {
		v, ok := tree.Lookup(e.key)
		require.True(t, ok, "reference has %q but tree does not", e.key)
		require.True(t, bytes.Equal(v, e.value), "value mismatch for %q", e.key)
	}

	var scanned []refEntry
	tree.Scan(nil, func(key, value []byte) bool {
		scanned = append(scanned, refEntry{append([]byte(nil), key...), append([]byte(nil), value...)})
		return true
	})
	require.Equal(t, len(ref.entries), len(scanned), "scan should visit exactly the live key set")
	for i, e := range ref.entries {
		require.True(t, bytes.Equal(e.key, scanned[i].key), "scan order mismatch at position %d", i)
	}
}
