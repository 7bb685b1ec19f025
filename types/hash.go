package types

import (
	"encoding/hex"
	"fmt"
)

// HashSize is the size of every commitment, nullifier and root.
const HashSize = 32

// Commitment is a note or swap commitment appended to the state commitment tree.
type Commitment [HashSize]byte

// Nullifier reveals that a previously shielded note was spent, without
// revealing which one.
type Nullifier [HashSize]byte

// Root is the root of a commitment tree (per block or per epoch).
type Root [HashSize]byte

func (c Commitment) String() string { return hex.EncodeToString(c[:]) }
func (n Nullifier) String() string  { return hex.EncodeToString(n[:]) }
func (r Root) String() string       { return hex.EncodeToString(r[:]) }

func (c Commitment) MarshalText() ([]byte, error) { return marshalHash(c) }
func (n Nullifier) MarshalText() ([]byte, error)  { return marshalHash(n) }
func (r Root) MarshalText() ([]byte, error)       { return marshalHash(r) }

func (c *Commitment) UnmarshalText(text []byte) error {
	return unmarshalHash((*[HashSize]byte)(c), "commitment", text)
}

func (n *Nullifier) UnmarshalText(text []byte) error {
	return unmarshalHash((*[HashSize]byte)(n), "nullifier", text)
}

func (r *Root) UnmarshalText(text []byte) error {
	return unmarshalHash((*[HashSize]byte)(r), "root", text)
}

// IsZero reports whether the commitment is unset.
func (c Commitment) IsZero() bool { return c == Commitment{} }

// IsZero reports whether the nullifier is unset.
func (n Nullifier) IsZero() bool { return n == Nullifier{} }

func marshalHash(h [HashSize]byte) ([]byte, error) {
	out := make([]byte, hex.EncodedLen(HashSize))
	hex.Encode(out, h[:])
	return out, nil
}

func unmarshalHash(dst *[HashSize]byte, name string, text []byte) error {
	if len(text) != hex.EncodedLen(HashSize) {
		return fmt.Errorf("invalid %s length: got %d hex characters, want %d",
			name, len(text), hex.EncodedLen(HashSize))
	}
	if _, err := hex.Decode(dst[:], text); err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	return nil
}
