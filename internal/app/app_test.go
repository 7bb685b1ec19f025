package app

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	abci "github.com/compactchain/compactd/abci/types"
	"github.com/compactchain/compactd/internal/state"
	"github.com/compactchain/compactd/internal/store"
	"github.com/compactchain/compactd/libs/log"
	"github.com/compactchain/compactd/types"
)

const testChainID = "test-chain"

func testValidator(name string, power int64) types.Validator {
	key := make([]byte, 32)
	copy(key, name)
	return types.Validator{
		IdentityKey:  name,
		ConsensusKey: key,
		Name:         name,
		VotingPower:  power,
		State:        types.ValidatorStateActive,
	}
}

func testAppState() *types.AppState {
	return &types.AppState{
		ChainParams: types.ChainParameters{
			ChainID:              testChainID,
			EpochDuration:        3,
			ProposalVotingBlocks: 2,
		},
		FmdParameters: types.FmdParameters{PrecisionBits: 4},
		Validators: []types.Validator{
			testValidator("val-a", 10),
			testValidator("val-b", 5),
		},
		Allocations: []types.Allocation{
			{Commitment: types.Commitment{0xaa}},
			{Commitment: types.Commitment{0xbb}},
		},
	}
}

func newTestApp(t *testing.T) (*App, *store.Store) {
	t.Helper()
	s, err := store.NewStore(dbm.NewMemDB(), log.NewNopLogger())
	require.NoError(t, err)
	a, err := New(s, log.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, a.InitChain(context.Background(), &abci.RequestInitChain{
		Time:    time.Unix(0, 0).UTC(),
		ChainID: testChainID,
	}, testAppState()))
	return a, s
}

func encodeTx(t *testing.T, actions ...types.Action) []byte {
	t.Helper()
	bz, err := types.EncodeTransaction(&types.Transaction{ChainID: testChainID, Actions: actions})
	require.NoError(t, err)
	return bz
}

// runBlock executes one block with txs and returns the per-tx errors.
func runBlock(t *testing.T, a *App, s *store.Store, txs ...[]byte) []error {
	t.Helper()
	ctx := context.Background()
	height := int64(s.LatestVersion() + 1)

	_, err := a.BeginBlock(ctx, &abci.RequestBeginBlock{Header: abci.Header{
		ChainID: testChainID,
		Height:  height,
		Time:    time.Unix(height, 0).UTC(),
	}})
	require.NoError(t, err)

	errs := make([]error, 0, len(txs))
	for _, tx := range txs {
		_, err := a.DeliverTx(ctx, tx)
		errs = append(errs, err)
	}
	_, err = a.EndBlock(ctx, &abci.RequestEndBlock{Height: height})
	require.NoError(t, err)
	_, err = a.Commit(ctx)
	require.NoError(t, err)
	return errs
}

func TestInitChainCommitsGenesisBlock(t *testing.T) {
	a, s := newTestApp(t)

	require.EqualValues(t, 0, s.LatestVersion())
	cb, err := s.LatestSnapshot().CompactBlock(0)
	require.NoError(t, err)
	require.NotNil(t, cb)
	require.Len(t, cb.StatePayloads, 2)
	assert.True(t, cb.StatePayloads[0].(*types.NotePayload).Source.Genesis)
	require.NotNil(t, cb.ChainParameters)
	assert.Equal(t, testChainID, cb.ChainParameters.ChainID)
	require.NotNil(t, cb.FmdParameters)
	assert.Nil(t, cb.EpochRoot)

	updates := a.ValidatorUpdates()
	require.Len(t, updates, 2)
	assert.EqualValues(t, 10, updates[0].Power)

	err = a.InitChain(context.Background(), &abci.RequestInitChain{ChainID: testChainID}, testAppState())
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestDeliverTxStagesPayloads(t *testing.T) {
	a, s := newTestApp(t)

	pair, err := types.NewTradingPair("gm", "gn")
	require.NoError(t, err)
	errs := runBlock(t, a, s,
		encodeTx(t, &types.Output{Commitment: types.Commitment{1}}),
		encodeTx(t, &types.Spend{Nullifier: types.Nullifier{2}}),
		encodeTx(t, &types.Swap{TradingPair: pair, Delta1: 7, Commitment: types.Commitment{3}}),
	)
	for _, err := range errs {
		require.NoError(t, err)
	}

	cb, err := s.LatestSnapshot().CompactBlock(1)
	require.NoError(t, err)
	require.Equal(t, []types.Commitment{{1}, {3}}, cb.Commitments())
	require.Equal(t, []types.Nullifier{{2}}, cb.Nullifiers)
	require.Len(t, cb.SwapOutputs, 1)
	assert.Equal(t, types.BatchSwapOutputData{
		TradingPair: pair, Height: 1, Delta1: 7, Lambda2: 7,
	}, cb.SwapOutputs[0])

	prev, err := state.BlockRoot(s.LatestSnapshot(), 0)
	require.NoError(t, err)
	assert.Equal(t, blockRoot(prev, cb.Commitments()), cb.BlockRoot)
}

func TestDeliverTxRejectsDoubleSpend(t *testing.T) {
	a, s := newTestApp(t)
	spend := encodeTx(t, &types.Spend{Nullifier: types.Nullifier{9}})

	errs := runBlock(t, a, s, spend, spend)
	require.NoError(t, errs[0])
	require.ErrorIs(t, errs[1], ErrNullifierSpent)

	errs = runBlock(t, a, s, spend)
	require.ErrorIs(t, errs[0], ErrNullifierSpent)

	// a rejected transaction stages nothing
	errs = runBlock(t, a, s, encodeTx(t,
		&types.Output{Commitment: types.Commitment{5}},
		&types.Spend{Nullifier: types.Nullifier{9}},
	))
	require.Error(t, errs[0])
	cb, err := s.LatestSnapshot().CompactBlock(3)
	require.NoError(t, err)
	require.Empty(t, cb.StatePayloads)
}

func TestDeliverTxStatelessFailures(t *testing.T) {
	a, s := newTestApp(t)

	wrongChain, err := types.EncodeTransaction(&types.Transaction{
		ChainID: "other",
		Actions: []types.Action{&types.Output{Commitment: types.Commitment{1}}},
	})
	require.NoError(t, err)
	expired, err := types.EncodeTransaction(&types.Transaction{
		ChainID: testChainID,
		Actions: []types.Action{&types.Output{Commitment: types.Commitment{1}}},
	})
	require.NoError(t, err)

	errs := runBlock(t, a, s, []byte("not json"), wrongChain, expired)
	require.Error(t, errs[0])
	require.ErrorIs(t, errs[1], state.ErrChainIDMismatch)
	require.NoError(t, errs[2], "zero expiry never expires")

	runBlock(t, a, s)
	late, err := types.EncodeTransaction(&types.Transaction{
		ChainID:      testChainID,
		ExpiryHeight: 2,
		Actions:      []types.Action{&types.Output{Commitment: types.Commitment{1}}},
	})
	require.NoError(t, err)
	errs = runBlock(t, a, s, late)
	require.ErrorContains(t, errs[0], "expired")
}

func TestDeliverTxRejectsAmountOverflow(t *testing.T) {
	a, s := newTestApp(t)

	pair, err := types.NewTradingPair("gm", "gn")
	require.NoError(t, err)
	errs := runBlock(t, a, s,
		encodeTx(t, &types.Delegate{Validator: "val-a", Amount: math.MaxInt64}),
		encodeTx(t, &types.Delegate{Validator: "val-b", Amount: math.MaxInt64 - 5}),
		encodeTx(t, &types.Delegate{Validator: "val-b", Amount: 1}),
		encodeTx(t, &types.Swap{TradingPair: pair, Delta1: math.MaxUint64, Commitment: types.Commitment{1}}),
		encodeTx(t, &types.Swap{TradingPair: pair, Delta1: 1, Commitment: types.Commitment{2}}),
		encodeTx(t,
			&types.Swap{TradingPair: pair, Delta2: math.MaxUint64, Commitment: types.Commitment{3}},
			&types.Swap{TradingPair: pair, Delta2: 1, Commitment: types.Commitment{4}},
		),
	)
	require.ErrorIs(t, errs[0], ErrAmountOverflow)
	require.NoError(t, errs[1])
	require.ErrorIs(t, errs[2], ErrAmountOverflow)
	require.NoError(t, errs[3])
	require.ErrorIs(t, errs[4], ErrAmountOverflow)
	require.ErrorIs(t, errs[5], ErrAmountOverflow)

	valA, err := state.Validator(s.LatestSnapshot(), "val-a")
	require.NoError(t, err)
	assert.EqualValues(t, 10, valA.VotingPower)
	valB, err := state.Validator(s.LatestSnapshot(), "val-b")
	require.NoError(t, err)
	assert.EqualValues(t, int64(math.MaxInt64), valB.VotingPower)

	cb, err := s.LatestSnapshot().CompactBlock(1)
	require.NoError(t, err)
	require.Len(t, cb.SwapOutputs, 1)
	assert.Equal(t, uint64(math.MaxUint64), cb.SwapOutputs[0].Delta1)
	assert.Zero(t, cb.SwapOutputs[0].Delta2)
	assert.Equal(t, []types.Commitment{{1}}, cb.Commitments())
}

func TestDeliverTxFailureMidTransactionStagesNothing(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	_, err := a.BeginBlock(ctx, &abci.RequestBeginBlock{Header: abci.Header{
		ChainID: testChainID,
		Height:  1,
		Time:    time.Unix(1, 0).UTC(),
	}})
	require.NoError(t, err)
	// proposals submitted at height 1 end at 3; an unreadable index fails the
	// submission after the earlier actions were applied
	a.block.delta.Put("governance/voting_ends/00000000000000000003", []byte("{"))
	writes := a.block.delta.Len()

	_, err = a.DeliverTx(ctx, encodeTx(t,
		&types.Output{Commitment: types.Commitment{1}},
		&types.Spend{Nullifier: types.Nullifier{2}},
		&types.Delegate{Validator: "val-a", Amount: 1},
		&types.ProposalSubmit{Title: "unreachable"},
	))
	require.ErrorContains(t, err, "decoding")

	assert.Empty(t, a.block.payloads)
	assert.Empty(t, a.block.nullifiers)
	assert.Empty(t, a.block.powerDeltas)
	assert.False(t, a.block.proposalStarted)
	spent, err := state.IsNullifierSpent(a.block.delta, types.Nullifier{2})
	require.NoError(t, err)
	assert.False(t, spent)
	assert.Equal(t, writes, a.block.delta.Len())

	_, err = a.EndBlock(ctx, &abci.RequestEndBlock{Height: 1})
	require.NoError(t, err)
	_, err = a.Commit(ctx)
	require.NoError(t, err)
}

func TestDelegationChangesValidatorUpdates(t *testing.T) {
	a, s := newTestApp(t)

	errs := runBlock(t, a, s,
		encodeTx(t, &types.Delegate{Validator: "val-b", Amount: 3}),
		encodeTx(t, &types.Undelegate{Validator: "val-a", Amount: 11}),
		encodeTx(t, &types.Delegate{Validator: "nobody", Amount: 1}),
	)
	require.NoError(t, errs[0])
	require.Error(t, errs[1])
	require.ErrorIs(t, errs[2], state.ErrUnknownValidator)

	updates := a.ValidatorUpdates()
	require.EqualValues(t, 10, updates[0].Power)
	require.EqualValues(t, 8, updates[1].Power)

	v, err := state.Validator(s.LatestSnapshot(), "val-b")
	require.NoError(t, err)
	require.EqualValues(t, 8, v.VotingPower)
}

func TestEpochRootAtEpochEnd(t *testing.T) {
	a, s := newTestApp(t)

	// epoch duration is 3: heights 0, 1 and 2 form epoch 0
	runBlock(t, a, s)
	runBlock(t, a, s)

	snap := s.LatestSnapshot()
	cb1, err := snap.CompactBlock(1)
	require.NoError(t, err)
	require.Nil(t, cb1.EpochRoot)
	require.Nil(t, cb1.ChainParameters)

	cb2, err := snap.CompactBlock(2)
	require.NoError(t, err)
	require.NotNil(t, cb2.EpochRoot)
	require.NotNil(t, cb2.ChainParameters)

	var roots []types.Root
	for h := uint64(0); h <= 2; h++ {
		r, err := state.BlockRoot(snap, h)
		require.NoError(t, err)
		roots = append(roots, r)
	}
	require.Equal(t, hashRoots(roots), *cb2.EpochRoot)
}

func TestProposalVotingPeriod(t *testing.T) {
	a, s := newTestApp(t)

	runBlock(t, a, s, encodeTx(t, &types.ProposalSubmit{Title: "raise limits"}))
	cb, err := s.LatestSnapshot().CompactBlock(1)
	require.NoError(t, err)
	require.True(t, cb.ProposalStarted)

	// voting ends at 1 + 2
	runBlock(t, a, s)
	open, err := state.IsProposalUnfinished(s.LatestSnapshot(), 0)
	require.NoError(t, err)
	require.True(t, open)

	runBlock(t, a, s)
	open, err = state.IsProposalUnfinished(s.LatestSnapshot(), 0)
	require.NoError(t, err)
	require.False(t, open)
}

func TestBeginBlockChecks(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	_, err := a.BeginBlock(ctx, &abci.RequestBeginBlock{Header: abci.Header{ChainID: "other", Height: 1}})
	require.ErrorIs(t, err, state.ErrChainIDMismatch)

	_, err = a.BeginBlock(ctx, &abci.RequestBeginBlock{Header: abci.Header{ChainID: testChainID, Height: 5}})
	require.Error(t, err)

	_, err = a.DeliverTx(ctx, []byte("{}"))
	require.ErrorIs(t, err, ErrNoBlockInProgress)
	_, err = a.Commit(ctx)
	require.ErrorIs(t, err, ErrNoBlockInProgress)
}

func TestNewResumesValidators(t *testing.T) {
	_, s := newTestApp(t)

	resumed, err := New(s, log.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, resumed.ValidatorUpdates(), 2)
}
