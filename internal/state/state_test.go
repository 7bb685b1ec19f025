package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/compactchain/compactd/internal/store"
	"github.com/compactchain/compactd/libs/log"
	"github.com/compactchain/compactd/types"
)

func newDelta(t *testing.T) (*store.Store, *store.StateDelta) {
	t.Helper()
	s, err := store.NewStore(dbm.NewMemDB(), log.NewNopLogger())
	require.NoError(t, err)
	return s, store.NewStateDelta(s.LatestSnapshot())
}

func testValidator(name string, power int64, state types.ValidatorState) types.Validator {
	key := make([]byte, 32)
	copy(key, name)
	return types.Validator{
		IdentityKey:  "id-" + name,
		ConsensusKey: key,
		Name:         name,
		VotingPower:  power,
		State:        state,
	}
}

func TestChainParameters(t *testing.T) {
	_, delta := newDelta(t)

	_, err := ChainParameters(delta)
	require.ErrorIs(t, err, ErrNotFound)

	require.Error(t, PutChainParameters(delta, types.ChainParameters{}))
	require.NoError(t, PutChainParameters(delta, types.DefaultChainParameters("test-chain")))

	p, err := ChainParameters(delta)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultEpochDuration, p.EpochDuration)

	require.NoError(t, CheckChainID(delta, "test-chain"))
	err = CheckChainID(delta, "other-chain")
	require.ErrorIs(t, err, ErrChainIDMismatch)

	epoch, err := EpochByHeight(delta, types.DefaultEpochDuration+1)
	require.NoError(t, err)
	assert.Equal(t, types.Epoch{Index: 1, StartHeight: types.DefaultEpochDuration}, epoch)
}

func TestBlockHeightAndTimestamp(t *testing.T) {
	_, delta := newDelta(t)

	_, err := BlockHeight(delta)
	require.ErrorIs(t, err, ErrNotFound)

	PutBlockHeight(delta, 42)
	h, err := BlockHeight(delta)
	require.NoError(t, err)
	assert.EqualValues(t, 42, h)

	now := time.Date(2022, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, PutBlockTimestamp(delta, now))
	got, err := BlockTimestamp(delta)
	require.NoError(t, err)
	assert.True(t, now.Equal(got))
}

func TestValidatorInfos(t *testing.T) {
	_, delta := newDelta(t)

	vals := []types.Validator{
		testValidator("a", 10, types.ValidatorStateActive),
		testValidator("b", 5, types.ValidatorStateInactive),
		testValidator("c", 7, types.ValidatorStateJailed),
	}
	require.NoError(t, PutValidators(delta, vals))

	active, err := ValidatorInfos(delta, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "id-a", active[0].Validator.IdentityKey)
	assert.EqualValues(t, 10, active[0].Status.VotingPower)

	all, err := ValidatorInfos(delta, true)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.EqualValues(t, 0, all[1].Status.VotingPower)

	v, err := Validator(delta, "id-c")
	require.NoError(t, err)
	assert.Equal(t, types.ValidatorStateJailed, v.State)

	_, err = Validator(delta, "id-z")
	require.ErrorIs(t, err, ErrUnknownValidator)
}

func TestNullifiersSurviveCommit(t *testing.T) {
	s, delta := newDelta(t)

	var nf types.Nullifier
	nf[0] = 1

	spent, err := IsNullifierSpent(delta, nf)
	require.NoError(t, err)
	require.False(t, spent)

	SpendNullifier(delta, nf, 0)
	delta.PutCompactBlock(&types.CompactBlock{Height: 0})
	_, err = s.Commit(delta)
	require.NoError(t, err)

	spent, err = IsNullifierSpent(s.LatestSnapshot(), nf)
	require.NoError(t, err)
	require.True(t, spent)
}

func TestBlockAndEpochRoots(t *testing.T) {
	_, delta := newDelta(t)

	root, err := LastBlockRoot(delta)
	require.NoError(t, err)
	require.Equal(t, types.Root{}, root)

	want := types.Root{1, 2, 3}
	require.NoError(t, PutBlockRoot(delta, 3, want))

	root, err = LastBlockRoot(delta)
	require.NoError(t, err)
	require.Equal(t, want, root)
	root, err = BlockRoot(delta, 3)
	require.NoError(t, err)
	require.Equal(t, want, root)

	_, err = BlockRoot(delta, 4)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, PutEpochRoot(delta, 0, want))
	root, err = EpochRoot(delta, 0)
	require.NoError(t, err)
	require.Equal(t, want, root)
}

func TestProposalLifecycle(t *testing.T) {
	_, delta := newDelta(t)

	id0, err := SubmitProposal(delta, Proposal{Title: "first"}, 10, 20)
	require.NoError(t, err)
	id1, err := SubmitProposal(delta, Proposal{Title: "second"}, 11, 20)
	require.NoError(t, err)
	require.EqualValues(t, 0, id0)
	require.EqualValues(t, 1, id1)

	next, err := NextProposalID(delta)
	require.NoError(t, err)
	require.EqualValues(t, 2, next)

	p, err := GetProposal(delta, id1)
	require.NoError(t, err)
	require.Equal(t, Proposal{ID: 1, Title: "second"}, p)

	ending, err := ProposalsEndingAt(delta, 20)
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1}, ending)

	end, err := ProposalVotingEnd(delta, id0)
	require.NoError(t, err)
	require.EqualValues(t, 20, end)

	open, err := IsProposalUnfinished(delta, id0)
	require.NoError(t, err)
	require.True(t, open)

	FinishProposal(delta, id0)
	open, err = IsProposalUnfinished(delta, id0)
	require.NoError(t, err)
	require.False(t, open)

	st, err := GetProposalState(delta, id0)
	require.NoError(t, err)
	require.Equal(t, ProposalStateFinished, st)
	st, err = GetProposalState(delta, id1)
	require.NoError(t, err)
	require.Equal(t, ProposalStateVoting, st)
}
