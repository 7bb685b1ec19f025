// Package state implements typed access to the application state kept in the
// versioned store. Functions take a store.StateRead or store.StateWrite so the
// same accessors serve committed snapshots and in-flight deltas.
package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/compactchain/compactd/internal/store"
	"github.com/compactchain/compactd/types"
)

var (
	// ErrNotFound is returned when a required state entry has never been
	// written.
	ErrNotFound = errors.New("not found in state")
	// ErrChainIDMismatch is returned when a caller's chain id differs from
	// the one recorded at genesis.
	ErrChainIDMismatch = errors.New("chain id mismatch")
	// ErrUnknownValidator is returned for validator lookups that match no
	// validator in the set.
	ErrUnknownValidator = errors.New("unknown validator")
)

func getJSON(r store.StateRead, key string, v interface{}) (bool, error) {
	bz, err := r.Get(key)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", key, err)
	}
	if bz == nil {
		return false, nil
	}
	if err := json.Unmarshal(bz, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

func putJSON(w store.StateWrite, key string, v interface{}) error {
	bz, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	w.Put(key, bz)
	return nil
}

func getUint64(r store.StateRead, key string) (uint64, bool, error) {
	bz, err := r.Get(key)
	if err != nil {
		return 0, false, fmt.Errorf("reading %s: %w", key, err)
	}
	if bz == nil {
		return 0, false, nil
	}
	if len(bz) != 8 {
		return 0, false, fmt.Errorf("corrupt %s: %d bytes", key, len(bz))
	}
	return binary.BigEndian.Uint64(bz), true, nil
}

func putUint64(w store.StateWrite, key string, v uint64) {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, v)
	w.Put(key, bz)
}

// ChainParameters returns the current chain parameters.
func ChainParameters(r store.StateRead) (types.ChainParameters, error) {
	var p types.ChainParameters
	ok, err := getJSON(r, keyChainParams, &p)
	if err != nil {
		return p, err
	}
	if !ok {
		return p, fmt.Errorf("chain parameters: %w", ErrNotFound)
	}
	return p, nil
}

// PutChainParameters validates and stores the chain parameters.
func PutChainParameters(w store.StateWrite, p types.ChainParameters) error {
	if err := p.ValidateBasic(); err != nil {
		return fmt.Errorf("invalid chain parameters: %w", err)
	}
	return putJSON(w, keyChainParams, p)
}

// ChainID returns the chain id recorded at genesis.
func ChainID(r store.StateRead) (string, error) {
	p, err := ChainParameters(r)
	if err != nil {
		return "", err
	}
	return p.ChainID, nil
}

// CheckChainID returns ErrChainIDMismatch unless expected equals the chain id
// of the state.
func CheckChainID(r store.StateRead, expected string) error {
	chainID, err := ChainID(r)
	if err != nil {
		return err
	}
	if chainID != expected {
		return fmt.Errorf("%w: expected %q, got %q", ErrChainIDMismatch, chainID, expected)
	}
	return nil
}

// FmdParameters returns the current fuzzy message detection parameters.
func FmdParameters(r store.StateRead) (types.FmdParameters, error) {
	var p types.FmdParameters
	ok, err := getJSON(r, keyFmdParams, &p)
	if err != nil {
		return p, err
	}
	if !ok {
		return p, fmt.Errorf("fmd parameters: %w", ErrNotFound)
	}
	return p, nil
}

func PutFmdParameters(w store.StateWrite, p types.FmdParameters) error {
	if err := p.ValidateBasic(); err != nil {
		return fmt.Errorf("invalid fmd parameters: %w", err)
	}
	return putJSON(w, keyFmdParams, p)
}

// BlockHeight returns the height of the block being executed or last
// executed.
func BlockHeight(r store.StateRead) (uint64, error) {
	h, ok, err := getUint64(r, keyBlockHeight)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("block height: %w", ErrNotFound)
	}
	return h, nil
}

func PutBlockHeight(w store.StateWrite, height uint64) {
	putUint64(w, keyBlockHeight, height)
}

// BlockTimestamp returns the header time of the current block.
func BlockTimestamp(r store.StateRead) (time.Time, error) {
	bz, err := r.Get(keyBlockTimestamp)
	if err != nil {
		return time.Time{}, err
	}
	if bz == nil {
		return time.Time{}, fmt.Errorf("block timestamp: %w", ErrNotFound)
	}
	var t time.Time
	if err := t.UnmarshalBinary(bz); err != nil {
		return time.Time{}, fmt.Errorf("decoding block timestamp: %w", err)
	}
	return t, nil
}

func PutBlockTimestamp(w store.StateWrite, t time.Time) error {
	bz, err := t.UTC().MarshalBinary()
	if err != nil {
		return err
	}
	w.Put(keyBlockTimestamp, bz)
	return nil
}

// EpochByHeight returns the epoch containing height under the current
// epoch duration.
func EpochByHeight(r store.StateRead, height uint64) (types.Epoch, error) {
	p, err := ChainParameters(r)
	if err != nil {
		return types.Epoch{}, err
	}
	return types.EpochByHeight(height, p.EpochDuration), nil
}
