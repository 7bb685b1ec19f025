package state

import (
	"fmt"

	"github.com/compactchain/compactd/internal/store"
	"github.com/compactchain/compactd/types"
)

// IsNullifierSpent reports whether nf has been revealed by a committed or
// staged spend.
func IsNullifierSpent(r store.StateRead, nf types.Nullifier) (bool, error) {
	bz, err := r.Get(spentNullifierKey(nf))
	if err != nil {
		return false, fmt.Errorf("reading nullifier %s: %w", nf, err)
	}
	return bz != nil, nil
}

// SpendNullifier records nf as spent at height.
func SpendNullifier(w store.StateWrite, nf types.Nullifier, height uint64) {
	putUint64(w, spentNullifierKey(nf), height)
}

// LastBlockRoot returns the root of the most recent block, or the zero root
// before the first block.
func LastBlockRoot(r store.StateRead) (types.Root, error) {
	var root types.Root
	if _, err := getJSON(r, keyLastBlockRoot, &root); err != nil {
		return types.Root{}, err
	}
	return root, nil
}

// BlockRoot returns the root committed at height.
func BlockRoot(r store.StateRead, height uint64) (types.Root, error) {
	var root types.Root
	ok, err := getJSON(r, blockRootKey(height), &root)
	if err != nil {
		return root, err
	}
	if !ok {
		return root, fmt.Errorf("block root at %d: %w", height, ErrNotFound)
	}
	return root, nil
}

// PutBlockRoot records the root of the block at height and makes it the last
// block root.
func PutBlockRoot(w store.StateWrite, height uint64, root types.Root) error {
	if err := putJSON(w, blockRootKey(height), root); err != nil {
		return err
	}
	return putJSON(w, keyLastBlockRoot, root)
}

// EpochRoot returns the root of a completed epoch.
func EpochRoot(r store.StateRead, index uint64) (types.Root, error) {
	var root types.Root
	ok, err := getJSON(r, epochRootKey(index), &root)
	if err != nil {
		return root, err
	}
	if !ok {
		return root, fmt.Errorf("epoch root %d: %w", index, ErrNotFound)
	}
	return root, nil
}

func PutEpochRoot(w store.StateWrite, index uint64, root types.Root) error {
	return putJSON(w, epochRootKey(index), root)
}
