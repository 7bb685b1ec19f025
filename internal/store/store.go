package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/golang/snappy"
	dbm "github.com/tendermint/tm-db"
	"golang.org/x/crypto/blake2b"

	"github.com/compactchain/compactd/internal/libs/watch"
	"github.com/compactchain/compactd/libs/log"
	"github.com/compactchain/compactd/types"
)

// UninitializedVersion is the version of a store nothing was ever committed
// to. The first commit (genesis) produces version 0.
const UninitializedVersion uint64 = math.MaxUint64

var (
	// ErrStaleDelta is returned when committing a delta that was not built on
	// top of the latest version.
	ErrStaleDelta = errors.New("state delta is not based on the latest version")
	// ErrVersionNotFound is returned for snapshots of versions not yet committed.
	ErrVersionNotFound = errors.New("version not found")
)

const (
	valueDeleted byte = 0x00
	valuePresent byte = 0x01
)

/*
Store is a versioned key/value store for application state.

Every Commit writes one new version. Values are never overwritten: a write to
key k at version v is stored under (k, v), and a snapshot at version v reads
the newest entry for k at or below v. Snapshots are therefore cheap, immutable
point-in-time views that stay valid while later versions are committed.

Compact blocks live in their own keyspace keyed by height and are written
once, in the commit that produces their height.

The store has a single writer (the consensus driver). Readers subscribe to
the latest snapshot through a watch cell that is published on every commit.
*/
type Store struct {
	db     dbm.DB
	logger log.Logger

	commitMtx sync.Mutex
	latest    *watch.Value[*Snapshot]
}

// NewStore returns a Store over db, positioned at the last committed version.
func NewStore(db dbm.DB, logger log.Logger) (*Store, error) {
	version := UninitializedVersion
	bz, err := db.Get(latestVersionKey())
	if err != nil {
		return nil, fmt.Errorf("loading latest version: %w", err)
	}
	if len(bz) != 0 {
		if len(bz) != 8 {
			return nil, fmt.Errorf("corrupt latest version record of %d bytes", len(bz))
		}
		version = binary.BigEndian.Uint64(bz)
	}

	s := &Store{
		db:     db,
		logger: logger.With("module", "store"),
	}
	s.latest = watch.New(&Snapshot{db: db, version: version})
	return s, nil
}

// LatestVersion returns the last committed version, or UninitializedVersion.
func (s *Store) LatestVersion() uint64 {
	return s.latest.Load().version
}

// LatestSnapshot returns a snapshot of the last committed version.
func (s *Store) LatestSnapshot() *Snapshot {
	return s.latest.Load()
}

// SnapshotAt returns a snapshot of a committed version.
func (s *Store) SnapshotAt(version uint64) (*Snapshot, error) {
	latest := s.LatestVersion()
	if latest == UninitializedVersion || version > latest {
		return nil, fmt.Errorf("snapshot at %d (latest %d): %w", version, latest, ErrVersionNotFound)
	}
	return &Snapshot{db: s.db, version: version}, nil
}

// Subscribe returns a receiver of the latest snapshot. The snapshot current
// at subscription time counts as already seen.
func (s *Store) Subscribe() *watch.Receiver[*Snapshot] {
	return s.latest.Subscribe()
}

// Commit durably writes delta as the next version, publishes the new
// snapshot to subscribers and returns the new application hash.
func (s *Store) Commit(delta *StateDelta) ([]byte, error) {
	s.commitMtx.Lock()
	defer s.commitMtx.Unlock()

	prev := s.latest.Load()
	if delta.base.version != prev.version {
		return nil, fmt.Errorf("delta at %d, latest %d: %w", delta.base.version, prev.version, ErrStaleDelta)
	}

	version := prev.version + 1 // UninitializedVersion wraps to 0
	prevHash, err := prev.AppHash()
	if err != nil {
		return nil, err
	}

	hasher, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	hasher.Write(prevHash)
	writeUint64(hasher, version)

	batch := s.db.NewBatch()
	defer batch.Close()

	keys := make([]string, 0, len(delta.writes))
	for k := range delta.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var stored []byte
		if v := delta.writes[k]; v == nil {
			stored = []byte{valueDeleted}
		} else {
			stored = append([]byte{valuePresent}, v...)
		}
		writeBytes(hasher, []byte(k))
		writeBytes(hasher, stored)
		if err := batch.Set(stateKey(k, version), stored); err != nil {
			return nil, err
		}
	}

	if cb := delta.compactBlock; cb != nil {
		if cb.Height != version {
			return nil, fmt.Errorf("compact block for height %d committed at version %d", cb.Height, version)
		}
		bz, err := encodeCompactBlock(cb)
		if err != nil {
			return nil, fmt.Errorf("encoding compact block %d: %w", cb.Height, err)
		}
		writeBytes(hasher, bz)
		if err := batch.Set(compactBlockKey(cb.Height), bz); err != nil {
			return nil, err
		}
	}

	appHash := hasher.Sum(nil)
	if err := batch.Set(appHashKey(version), appHash); err != nil {
		return nil, err
	}
	versionBz := make([]byte, 8)
	binary.BigEndian.PutUint64(versionBz, version)
	if err := batch.Set(latestVersionKey(), versionBz); err != nil {
		return nil, err
	}
	if err := batch.WriteSync(); err != nil {
		return nil, fmt.Errorf("writing version %d: %w", version, err)
	}

	s.logger.Debug("committed version", "version", version, "writes", len(keys), "app_hash", fmt.Sprintf("%X", appHash))
	s.latest.Publish(&Snapshot{db: s.db, version: version})
	return appHash, nil
}

// Close releases subscribers and closes the underlying database.
func (s *Store) Close() error {
	s.latest.Close()
	return s.db.Close()
}

func encodeCompactBlock(cb *types.CompactBlock) ([]byte, error) {
	bz, err := json.Marshal(cb)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, bz), nil
}

func decodeCompactBlock(bz []byte) (*types.CompactBlock, error) {
	raw, err := snappy.Decode(nil, bz)
	if err != nil {
		return nil, err
	}
	cb := new(types.CompactBlock)
	if err := json.Unmarshal(raw, cb); err != nil {
		return nil, err
	}
	return cb, nil
}

type byteWriter interface {
	Write([]byte) (int, error)
}

func writeUint64(w byteWriter, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, _ = w.Write(buf[:])
}

func writeBytes(w byteWriter, bz []byte) {
	writeUint64(w, uint64(len(bz)))
	_, _ = w.Write(bz)
}
