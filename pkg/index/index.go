// Package index wraps bptree.Tree the way the teacher's pkg/db wraps
// pkg/btree: it is the surface application code actually talks to,
// adding structured logging and a guard against the one thing this
// package cannot support — concurrent or re-entrant use.
package index

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ceth-x86/slotted-bptree/pkg/bptree"
)

// Option configures an Index at construction time.
type Option func(*Index)

// WithLogger attaches a zap.Logger for structural diagnostics (splits,
// merges, root growth). The default is a no-op logger, so unconfigured
// use costs nothing on the hot path.
func WithLogger(l *zap.Logger) Option {
	return func(idx *Index) { idx.log = l }
}

// Index is the single-threaded, non-reentrant external surface over a
// bptree.Tree.
type Index struct {
	tree    *bptree.Tree
	log     *zap.Logger
	entered atomic.Bool
}

// Open creates an empty index.
func Open(opts ...Option) *Index {
	idx := &Index{tree: bptree.New(), log: zap.NewNop()}
	for _, opt := range opts {
		opt(idx)
	}
	idx.tree.SetEventHook(func(event string) {
		idx.log.Debug("bptree structural event", zap.String("event", event))
	})
	return idx
}

// enter panics on re-entrant or concurrent use instead of silently
// racing: this package explicitly does not support concurrency, so a
// second caller arriving mid-operation is a programming error, not a
// contention case to be serialized away.
func (idx *Index) enter() {
	if !idx.entered.CompareAndSwap(false, true) {
		panic("index: concurrent or re-entrant use of a single-threaded Index")
	}
}

func (idx *Index) leave() { idx.entered.Store(false) }

// Put inserts key/value, replacing any existing value for key.
func (idx *Index) Put(key, value []byte) {
	idx.enter()
	defer idx.leave()
	idx.tree.Insert(key, value)
	idx.log.Debug("put", zap.Int("key_len", len(key)), zap.Int("value_len", len(value)))
}

// Get looks up key.
func (idx *Index) Get(key []byte) ([]byte, bool) {
	idx.enter()
	defer idx.leave()
	return idx.tree.Lookup(key)
}

// Delete removes key, reporting whether it was present.
func (idx *Index) Delete(key []byte) bool {
	idx.enter()
	defer idx.leave()
	ok := idx.tree.Remove(key)
	idx.log.Debug("delete", zap.Int("key_len", len(key)), zap.Bool("found", ok))
	return ok
}

// Scan visits every key >= start in ascending order until fn returns
// false or the index is exhausted.
func (idx *Index) Scan(start []byte, fn func(key, value []byte) bool) {
	idx.enter()
	defer idx.leave()
	idx.tree.Scan(start, fn)
}

// Destroy tears the index down. There is no file handle or network
// connection behind it to close — this exists so callers following the
// teacher's defer-a-Close convention have something to call, and so
// subtree teardown stays an explicit, testable operation.
func (idx *Index) Destroy() {
	idx.enter()
	defer idx.leave()
	idx.tree.Destroy()
	idx.log.Info("destroyed")
}
