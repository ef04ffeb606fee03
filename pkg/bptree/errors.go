package bptree

import "github.com/pkg/errors"

// ErrEntryTooLarge is the one unrecoverable condition this package can
// hit: a single key/value pair that cannot fit even in a freshly
// compacted, otherwise-empty leaf page. Every other failure mode is
// handled internally by splitting, compacting, or (for merges) simply
// giving up and leaving the tree as it was.
var ErrEntryTooLarge = errors.New("bptree: entry too large for an empty page")
