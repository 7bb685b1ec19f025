package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeTransaction(t *testing.T) {
	tx := &Transaction{
		ChainID: "test-chain",
		Actions: []Action{
			&Spend{Nullifier: Nullifier{1}},
			&Output{Commitment: testCommitment(2)},
			&Delegate{Validator: "val-1", Amount: 5},
		},
	}
	bz, err := EncodeTransaction(tx)
	require.NoError(t, err)

	got, err := DecodeTransaction(bz)
	require.NoError(t, err)
	require.Equal(t, tx, got)
}

func TestDecodeTransactionInvalid(t *testing.T) {
	testCases := map[string]struct {
		tx  *Transaction
		raw []byte
	}{
		"empty bytes": {raw: []byte{}},
		"not json":    {raw: []byte("garbage")},
		"no actions":  {tx: &Transaction{ChainID: "c"}},
		"no chain id": {tx: &Transaction{Actions: []Action{&Spend{Nullifier: Nullifier{1}}}}},
		"zero nullifier": {tx: &Transaction{
			ChainID: "c",
			Actions: []Action{&Spend{}},
		}},
		"non-canonical pair": {tx: &Transaction{
			ChainID: "c",
			Actions: []Action{&Swap{
				TradingPair: TradingPair{Asset1: "b", Asset2: "a"},
				Delta1:      1,
				Commitment:  testCommitment(1),
			}},
		}},
		"negative delegation": {tx: &Transaction{
			ChainID: "c",
			Actions: []Action{&Delegate{Validator: "v", Amount: -1}},
		}},
	}

	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			raw := tc.raw
			if tc.tx != nil {
				var err error
				raw, err = EncodeTransaction(tc.tx)
				require.NoError(t, err)
			}
			_, err := DecodeTransaction(raw)
			require.Error(t, err)
		})
	}
}
