package store

import (
	"fmt"

	"github.com/google/orderedcode"
)

const (
	// prefixes must be unique across all db keys.
	prefixState        = int64(1)
	prefixCompactBlock = int64(2)
	prefixMeta         = int64(3)
)

const (
	metaLatestVersion = "latest_version"
	metaAppHash       = "app_hash"
)

// stateKey encodes a versioned state key. For a fixed key, encodings sort by
// version.
func stateKey(key string, version uint64) []byte {
	res, err := orderedcode.Append(nil, prefixState, key, version)
	if err != nil {
		panic(err)
	}
	return res
}

func compactBlockKey(height uint64) []byte {
	res, err := orderedcode.Append(nil, prefixCompactBlock, height)
	if err != nil {
		panic(err)
	}
	return res
}

func decodeCompactBlockKey(key []byte) (uint64, error) {
	var (
		prefix int64
		height uint64
	)
	remaining, err := orderedcode.Parse(string(key), &prefix, &height)
	if err != nil {
		return 0, fmt.Errorf("failed to parse compact block key: %w", err)
	}
	if len(remaining) != 0 {
		return 0, fmt.Errorf("expected complete key but got remainder: %s", remaining)
	}
	if prefix != prefixCompactBlock {
		return 0, fmt.Errorf("incorrect prefix %d, expected %d", prefix, prefixCompactBlock)
	}
	return height, nil
}

func latestVersionKey() []byte {
	res, err := orderedcode.Append(nil, prefixMeta, metaLatestVersion)
	if err != nil {
		panic(err)
	}
	return res
}

func appHashKey(version uint64) []byte {
	res, err := orderedcode.Append(nil, prefixMeta, metaAppHash, version)
	if err != nil {
		panic(err)
	}
	return res
}
