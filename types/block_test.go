package types

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func testCommitment(b byte) Commitment {
	var c Commitment
	for i := range c {
		c[i] = b
	}
	return c
}

func TestCompactBlockStatePayloadVariants(t *testing.T) {
	epochRoot := Root{9}
	cb := &CompactBlock{
		Height: 42,
		StatePayloads: []StatePayload{
			&NotePayload{
				Source:        PayloadSource{Transaction: "ab"},
				Commitment:    testCommitment(1),
				EphemeralKey:  []byte{1, 2},
				EncryptedNote: []byte{3},
			},
			&RolledUp{Commitment: testCommitment(2)},
			&SwapPayload{Commitment: testCommitment(3), EncryptedSwap: []byte{4}},
		},
		Nullifiers: []Nullifier{{7}},
		BlockRoot:  Root{8},
		EpochRoot:  &epochRoot,
	}

	bz, err := json.Marshal(cb)
	require.NoError(t, err)
	require.Contains(t, string(bz), `"rolled_up":{"commitment":"0202`)

	var got CompactBlock
	require.NoError(t, json.Unmarshal(bz, &got))
	if diff := cmp.Diff(cb, &got); diff != "" {
		t.Errorf("compact block mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, []Commitment{testCommitment(1), testCommitment(2), testCommitment(3)}, got.Commitments())
}

func TestCompactBlockRejectsAmbiguousPayload(t *testing.T) {
	c := testCommitment(1).String()
	testCases := map[string]string{
		"no variant":   `{"height":1,"block_root":"` + c + `","state_payloads":[{}]}`,
		"two variants": `{"height":1,"block_root":"` + c + `","state_payloads":[{"rolled_up":{"commitment":"` + c + `"},"swap":{"commitment":"` + c + `"}}]}`,
		"short hash":   `{"height":1,"block_root":"abcd"}`,
	}

	for name, input := range testCases {
		input := input
		t.Run(name, func(t *testing.T) {
			var cb CompactBlock
			require.Error(t, json.Unmarshal([]byte(input), &cb))
		})
	}
}

func TestTradingPairCanonicalOrder(t *testing.T) {
	tp, err := NewTradingPair("zeta", "alpha")
	require.NoError(t, err)
	require.Equal(t, TradingPair{Asset1: "alpha", Asset2: "zeta"}, tp)

	_, err = NewTradingPair("alpha", "alpha")
	require.Error(t, err)
}

func TestEpochByHeight(t *testing.T) {
	require.Equal(t, Epoch{Index: 0, StartHeight: 0}, EpochByHeight(0, 10))
	require.Equal(t, Epoch{Index: 0, StartHeight: 0}, EpochByHeight(9, 10))
	require.Equal(t, Epoch{Index: 1, StartHeight: 10}, EpochByHeight(10, 10))
	require.True(t, IsEpochEnd(9, 10))
	require.False(t, IsEpochEnd(10, 10))
}
