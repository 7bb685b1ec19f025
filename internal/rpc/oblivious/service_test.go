package oblivious

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/compactchain/compactd/internal/store"
	"github.com/compactchain/compactd/libs/log"
	"github.com/compactchain/compactd/types"
	"github.com/compactchain/compactd/version"
)

func TestChainParameters(t *testing.T) {
	env := newTestEnv(t, dbm.NewMemDB(), 1)
	ctx := context.Background()

	params, err := env.svc.ChainParameters(ctx, &ChainParametersRequest{ChainID: testChainID})
	require.NoError(t, err)
	assert.EqualValues(t, 4, params.EpochDuration)

	_, err = env.svc.ChainParameters(ctx, &ChainParametersRequest{ChainID: "nope"})
	require.ErrorIs(t, err, ErrChainIDMismatch)
}

func TestEpochByHeight(t *testing.T) {
	env := newTestEnv(t, dbm.NewMemDB(), 1)

	epoch, err := env.svc.EpochByHeight(context.Background(), &EpochByHeightRequest{Height: 9})
	require.NoError(t, err)
	assert.Equal(t, types.Epoch{Index: 2, StartHeight: 8}, *epoch)
}

func TestValidatorInfo(t *testing.T) {
	env := newTestEnv(t, dbm.NewMemDB(), 1)
	ctx := context.Background()

	infos, err := env.svc.ValidatorInfo(ctx, &ValidatorInfoRequest{ChainID: testChainID})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "active", infos[0].Validator.IdentityKey)

	infos, err = env.svc.ValidatorInfo(ctx, &ValidatorInfoRequest{ChainID: testChainID, ShowInactive: true})
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, types.ValidatorStateJailed, infos[1].Status.State)
	assert.Zero(t, infos[1].Status.VotingPower)

	_, err = env.svc.ValidatorInfo(ctx, &ValidatorInfoRequest{ChainID: "nope"})
	require.ErrorIs(t, err, ErrChainIDMismatch)
}

func TestInfo(t *testing.T) {
	env := newTestEnv(t, dbm.NewMemDB(), 3)

	info, err := env.svc.Info(context.Background(), &InfoRequest{Version: "test"})
	require.NoError(t, err)
	assert.Equal(t, version.Version, info.Version)
	assert.Equal(t, version.AppProtocol, info.AppVersion)
	assert.EqualValues(t, 3, info.LastBlockHeight)

	appHash, err := env.store.LatestSnapshot().AppHash()
	require.NoError(t, err)
	assert.Equal(t, appHash, info.LastBlockAppHash)
}

func TestQueriesBeforeGenesis(t *testing.T) {
	s, err := store.NewStore(dbm.NewMemDB(), log.NewNopLogger())
	require.NoError(t, err)
	svc := NewService(s, log.NewNopLogger(), nil)
	ctx := context.Background()

	_, err = svc.CompactBlockRange(ctx, &CompactBlockRangeRequest{ChainID: testChainID})
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = svc.ChainParameters(ctx, &ChainParametersRequest{ChainID: testChainID})
	require.ErrorIs(t, err, ErrUnavailable)

	info, err := svc.Info(ctx, &InfoRequest{})
	require.NoError(t, err)
	assert.Zero(t, info.LastBlockHeight)
	assert.Empty(t, info.LastBlockAppHash)
}
