package store

import (
	"fmt"
	"io"

	dbm "github.com/tendermint/tm-db"

	"github.com/compactchain/compactd/types"
)

// streamPageSize is the number of compact blocks read per iterator. The
// iterator is closed before any block of the page is handed out, so a slow
// consumer never holds a database iterator open.
const streamPageSize = 16

// StateRead is read access to versioned application state.
type StateRead interface {
	// Get returns the value for key, or nil if it is not set.
	Get(key string) ([]byte, error)
}

// StateWrite is read/write access to application state.
type StateWrite interface {
	StateRead
	Put(key string, value []byte)
	Delete(key string)
}

// Snapshot is an immutable view of the store at one version.
type Snapshot struct {
	db      dbm.DB
	version uint64
}

var _ StateRead = (*Snapshot)(nil)

// Version returns the version of the snapshot, which equals the height of the
// last block it contains.
func (s *Snapshot) Version() uint64 { return s.version }

// IsInitialized reports whether the snapshot contains any committed state.
func (s *Snapshot) IsInitialized() bool { return s.version != UninitializedVersion }

// Get returns the newest value of key at or below the snapshot version.
func (s *Snapshot) Get(key string) ([]byte, error) {
	if !s.IsInitialized() {
		return nil, nil
	}

	iter, err := s.db.ReverseIterator(stateKey(key, 0), stateKey(key, s.version+1))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	if !iter.Valid() {
		return nil, iter.Error()
	}
	stored := iter.Value()
	if len(stored) == 0 {
		return nil, fmt.Errorf("corrupt state entry for key %q", key)
	}
	if stored[0] == valueDeleted {
		return nil, nil
	}
	out := make([]byte, len(stored)-1)
	copy(out, stored[1:])
	return out, iter.Error()
}

// AppHash returns the application hash committed at the snapshot version.
// The uninitialized snapshot has an empty hash.
func (s *Snapshot) AppHash() ([]byte, error) {
	if !s.IsInitialized() {
		return []byte{}, nil
	}
	return s.db.Get(appHashKey(s.version))
}

// CompactBlock returns the compact block at height, or nil if the snapshot
// does not contain that height.
func (s *Snapshot) CompactBlock(height uint64) (*types.CompactBlock, error) {
	if !s.IsInitialized() || height > s.version {
		return nil, nil
	}
	bz, err := s.db.Get(compactBlockKey(height))
	if err != nil {
		return nil, err
	}
	if len(bz) == 0 {
		return nil, nil
	}
	cb, err := decodeCompactBlock(bz)
	if err != nil {
		return nil, fmt.Errorf("decoding compact block %d: %w", height, err)
	}
	return cb, nil
}

// StreamCompactBlocks returns a lazy, height-ordered sequence of the compact
// blocks in the snapshot starting at start.
func (s *Snapshot) StreamCompactBlocks(start uint64) *CompactBlockStream {
	return &CompactBlockStream{snap: s, next: start}
}

// CompactBlockStream iterates over compact blocks in height order. It reads
// the database one page at a time and holds no iterator between calls.
type CompactBlockStream struct {
	snap *Snapshot
	next uint64
	page []*types.CompactBlock
	done bool
}

// Next returns the next compact block, or io.EOF once the sequence is
// exhausted.
func (cs *CompactBlockStream) Next() (*types.CompactBlock, error) {
	if len(cs.page) == 0 && !cs.done {
		if err := cs.fill(); err != nil {
			return nil, err
		}
	}
	if len(cs.page) == 0 {
		return nil, io.EOF
	}
	cb := cs.page[0]
	cs.page = cs.page[1:]
	return cb, nil
}

func (cs *CompactBlockStream) fill() error {
	if !cs.snap.IsInitialized() || cs.next > cs.snap.version {
		cs.done = true
		return nil
	}

	iter, err := cs.snap.db.Iterator(compactBlockKey(cs.next), compactBlockKey(cs.snap.version+1))
	if err != nil {
		return err
	}
	defer iter.Close()

	for ; iter.Valid() && len(cs.page) < streamPageSize; iter.Next() {
		height, err := decodeCompactBlockKey(iter.Key())
		if err != nil {
			return err
		}
		cb, err := decodeCompactBlock(iter.Value())
		if err != nil {
			return fmt.Errorf("decoding compact block %d: %w", height, err)
		}
		cs.page = append(cs.page, cb)
		cs.next = height + 1
	}
	if err := iter.Error(); err != nil {
		return err
	}
	if len(cs.page) < streamPageSize {
		cs.done = true
	}
	return nil
}
