package app

import (
	"golang.org/x/crypto/blake2b"

	"github.com/compactchain/compactd/internal/state"
	"github.com/compactchain/compactd/internal/store"
	"github.com/compactchain/compactd/types"
)

// blockBuilder accumulates the effects of one block between BeginBlock and
// Commit.
type blockBuilder struct {
	height uint64
	delta  *store.StateDelta
	params types.ChainParameters

	payloads        []types.StatePayload
	nullifiers      []types.Nullifier
	swaps           map[types.TradingPair]*types.BatchSwapOutputData
	swapOutputs     []types.BatchSwapOutputData
	powerDeltas     map[string]int64
	proposalStarted bool
	paramsChanged   bool
	epochEnd        bool
}

func newBlockBuilder(height uint64, delta *store.StateDelta, params types.ChainParameters) *blockBuilder {
	return &blockBuilder{
		height:      height,
		delta:       delta,
		params:      params,
		swaps:       make(map[types.TradingPair]*types.BatchSwapOutputData),
		powerDeltas: make(map[string]int64),
	}
}

// clearSwaps settles every batched swap at a one-to-one price: each pair's
// asset 1 inputs become asset 2 outputs and vice versa.
func (b *blockBuilder) clearSwaps() {
	b.swapOutputs = b.swapOutputs[:0]
	for pair, batch := range b.swaps {
		out := *batch
		out.TradingPair = pair
		out.Height = b.height
		out.Lambda1 = batch.Delta2
		out.Lambda2 = batch.Delta1
		b.swapOutputs = append(b.swapOutputs, out)
	}
	sortSwapOutputs(b.swapOutputs)
}

// finalize computes the block and epoch roots, stores them and returns the
// compact block of the height.
func (b *blockBuilder) finalize() (*types.CompactBlock, error) {
	prev, err := state.LastBlockRoot(b.delta)
	if err != nil {
		return nil, err
	}
	cb := &types.CompactBlock{
		Height:          b.height,
		StatePayloads:   b.payloads,
		Nullifiers:      b.nullifiers,
		ProposalStarted: b.proposalStarted,
		SwapOutputs:     b.swapOutputs,
	}
	cb.BlockRoot = blockRoot(prev, cb.Commitments())
	if err := state.PutBlockRoot(b.delta, b.height, cb.BlockRoot); err != nil {
		return nil, err
	}

	if b.epochEnd {
		epoch := types.EpochByHeight(b.height, b.params.EpochDuration)
		roots := make([]types.Root, 0, b.height-epoch.StartHeight+1)
		for h := epoch.StartHeight; h <= b.height; h++ {
			root, err := state.BlockRoot(b.delta, h)
			if err != nil {
				return nil, err
			}
			roots = append(roots, root)
		}
		epochRoot := hashRoots(roots)
		if err := state.PutEpochRoot(b.delta, epoch.Index, epochRoot); err != nil {
			return nil, err
		}
		cb.EpochRoot = &epochRoot
	}

	if b.epochEnd || b.paramsChanged {
		params, err := state.ChainParameters(b.delta)
		if err != nil {
			return nil, err
		}
		fmd, err := state.FmdParameters(b.delta)
		if err != nil {
			return nil, err
		}
		cb.ChainParameters = &params
		cb.FmdParameters = &fmd
	}
	return cb, nil
}

// blockRoot chains the previous block root with the block's commitments.
func blockRoot(prev types.Root, commitments []types.Commitment) types.Root {
	h, _ := blake2b.New256(nil)
	h.Write(prev[:])
	for _, c := range commitments {
		h.Write(c[:])
	}
	var root types.Root
	copy(root[:], h.Sum(nil))
	return root
}

func hashRoots(roots []types.Root) types.Root {
	h, _ := blake2b.New256(nil)
	for _, r := range roots {
		h.Write(r[:])
	}
	var root types.Root
	copy(root[:], h.Sum(nil))
	return root
}
