package oblivious

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/go-kit/kit/metrics/generic"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/compactchain/compactd/internal/libs/watch"
	"github.com/compactchain/compactd/internal/state"
	"github.com/compactchain/compactd/internal/store"
	"github.com/compactchain/compactd/libs/log"
	"github.com/compactchain/compactd/types"
)

const testChainID = "test-chain"

type testEnv struct {
	store   *store.Store
	storage *countingStorage
	gauge   *generic.Gauge
	served  *generic.Counter
	svc     *Service
}

// countingStorage counts the reads the service makes.
type countingStorage struct {
	*store.Store
	snapshots  int32
	subscribes int32
}

func (c *countingStorage) LatestSnapshot() *store.Snapshot {
	atomic.AddInt32(&c.snapshots, 1)
	return c.Store.LatestSnapshot()
}

func (c *countingStorage) Subscribe() *watch.Receiver[*store.Snapshot] {
	atomic.AddInt32(&c.subscribes, 1)
	return c.Store.Subscribe()
}

// failingDB fails forward iteration once armed.
type failingDB struct {
	dbm.DB
	armed int32
}

func (db *failingDB) Iterator(start, end []byte) (dbm.Iterator, error) {
	if atomic.LoadInt32(&db.armed) == 1 {
		return nil, errors.New("disk on fire")
	}
	return db.DB.Iterator(start, end)
}

func newTestEnv(t *testing.T, db dbm.DB, height uint64) *testEnv {
	t.Helper()
	s, err := store.NewStore(db, log.NewNopLogger())
	require.NoError(t, err)

	genesis := store.NewStateDelta(s.LatestSnapshot())
	require.NoError(t, state.PutChainParameters(genesis, types.ChainParameters{
		ChainID:              testChainID,
		EpochDuration:        4,
		ProposalVotingBlocks: 10,
	}))
	key := make([]byte, 32)
	require.NoError(t, state.PutValidators(genesis, []types.Validator{
		{IdentityKey: "active", ConsensusKey: key, VotingPower: 3, State: types.ValidatorStateActive},
		{IdentityKey: "jailed", ConsensusKey: key, VotingPower: 2, State: types.ValidatorStateJailed},
	}))
	genesis.PutCompactBlock(&types.CompactBlock{Height: 0})
	_, err = s.Commit(genesis)
	require.NoError(t, err)

	env := &testEnv{
		store:   s,
		storage: &countingStorage{Store: s},
		gauge:   generic.NewGauge("active_connections"),
		served:  generic.NewCounter("served"),
	}
	for env.store.LatestVersion() < height {
		env.commit(t)
	}
	env.svc = NewService(env.storage, log.NewNopLogger(), &Metrics{
		ActiveConnections: env.gauge,
		BlocksServed:      env.served,
	})
	return env
}

func (env *testEnv) commit(t *testing.T) {
	t.Helper()
	delta := store.NewStateDelta(env.store.LatestSnapshot())
	height := env.store.LatestVersion() + 1
	delta.PutCompactBlock(&types.CompactBlock{
		Height:     height,
		Nullifiers: []types.Nullifier{{byte(height)}},
	})
	_, err := env.store.Commit(delta)
	require.NoError(t, err)
}

func heightsUntilClosed(t *testing.T, blocks <-chan BlockResult) []uint64 {
	t.Helper()
	var heights []uint64
	timeout := time.After(5 * time.Second)
	for {
		select {
		case res, ok := <-blocks:
			if !ok {
				return heights
			}
			require.NoError(t, res.Err)
			heights = append(heights, res.Block.Height)
		case <-timeout:
			t.Fatalf("stream did not end, got %v", heights)
		}
	}
}

func nextHeight(t *testing.T, blocks <-chan BlockResult) uint64 {
	t.Helper()
	select {
	case res, ok := <-blocks:
		require.True(t, ok, "stream closed")
		require.NoError(t, res.Err)
		return res.Block.Height
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a block")
	}
	return 0
}

func heightRange(from, to uint64) []uint64 {
	var out []uint64
	for h := from; h <= to; h++ {
		out = append(out, h)
	}
	return out
}

func requireGaugeRestored(t *testing.T, gauge *generic.Gauge) {
	t.Helper()
	require.Eventually(t, func() bool { return gauge.Value() == 0 }, 5*time.Second, 10*time.Millisecond,
		"active connections gauge is %v", gauge.Value())
}

func TestCompactBlockRangeCatchUp(t *testing.T) {
	defer leaktest.Check(t)()
	env := newTestEnv(t, dbm.NewMemDB(), 10)

	blocks, err := env.svc.CompactBlockRange(context.Background(), &CompactBlockRangeRequest{
		ChainID:     testChainID,
		StartHeight: 5,
	})
	require.NoError(t, err)

	if diff := cmp.Diff(heightRange(5, 10), heightsUntilClosed(t, blocks)); diff != "" {
		t.Fatalf("unexpected heights (-want +got):\n%s", diff)
	}
	require.EqualValues(t, 6, env.served.Value())
	requireGaugeRestored(t, env.gauge)
}

func TestCompactBlockRangeClampsEndHeight(t *testing.T) {
	defer leaktest.Check(t)()
	env := newTestEnv(t, dbm.NewMemDB(), 10)

	testCases := []struct {
		start, end uint64
		want       []uint64
	}{
		{start: 0, end: 3, want: heightRange(0, 3)},
		{start: 8, end: 50, want: heightRange(8, 10)},
		{start: 7, end: 7, want: []uint64{7}},
		{start: 11, end: 0, want: nil},
		{start: 6, end: 2, want: nil},
	}
	for _, tc := range testCases {
		blocks, err := env.svc.CompactBlockRange(context.Background(), &CompactBlockRangeRequest{
			ChainID:     testChainID,
			StartHeight: tc.start,
			EndHeight:   tc.end,
		})
		require.NoError(t, err)
		if diff := cmp.Diff(tc.want, heightsUntilClosed(t, blocks)); diff != "" {
			t.Errorf("start %d end %d: unexpected heights (-want +got):\n%s", tc.start, tc.end, diff)
		}
	}
	requireGaugeRestored(t, env.gauge)
}

func TestCompactBlockRangeKeepAlive(t *testing.T) {
	defer leaktest.Check(t)()
	env := newTestEnv(t, dbm.NewMemDB(), 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blocks, err := env.svc.CompactBlockRange(ctx, &CompactBlockRangeRequest{
		ChainID:     testChainID,
		StartHeight: 5,
		KeepAlive:   true,
	})
	require.NoError(t, err)

	var got []uint64
	for i := 0; i < 6; i++ {
		got = append(got, nextHeight(t, blocks))
	}
	require.Equal(t, heightRange(5, 10), got)

	env.commit(t)
	env.commit(t)
	require.EqualValues(t, 11, nextHeight(t, blocks))
	require.EqualValues(t, 12, nextHeight(t, blocks))

	// a burst of commits between reads is delivered without gaps
	for i := 0; i < 5; i++ {
		env.commit(t)
	}
	for h := uint64(13); h <= 17; h++ {
		require.Equal(t, h, nextHeight(t, blocks))
	}

	cancel()
	requireGaugeRestored(t, env.gauge)
}

func TestCompactBlockRangeBridgesBlocksCommittedDuringCatchUp(t *testing.T) {
	defer leaktest.Check(t)()
	env := newTestEnv(t, dbm.NewMemDB(), 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blocks, err := env.svc.CompactBlockRange(ctx, &CompactBlockRangeRequest{
		ChainID:     testChainID,
		StartHeight: 0,
		EndHeight:   4,
		KeepAlive:   true,
	})
	require.NoError(t, err)

	// commits land while the worker is still catching up
	env.commit(t)
	env.commit(t)

	var got []uint64
	for i := 0; i < 13; i++ {
		got = append(got, nextHeight(t, blocks))
	}
	if diff := cmp.Diff(heightRange(0, 12), got); diff != "" {
		t.Fatalf("unexpected heights (-want +got):\n%s", diff)
	}

	env.commit(t)
	require.EqualValues(t, 13, nextHeight(t, blocks))
}

func TestCompactBlockRangeRejectsChainIDMismatch(t *testing.T) {
	defer leaktest.Check(t)()
	env := newTestEnv(t, dbm.NewMemDB(), 10)

	blocks, err := env.svc.CompactBlockRange(context.Background(), &CompactBlockRangeRequest{
		ChainID:   "other-chain",
		KeepAlive: true,
	})
	require.ErrorIs(t, err, ErrChainIDMismatch)
	require.Nil(t, blocks)

	// only the chain id gate read the store: no range read, no subscription
	require.EqualValues(t, 1, atomic.LoadInt32(&env.storage.snapshots))
	require.EqualValues(t, 0, atomic.LoadInt32(&env.storage.subscribes))
	require.Zero(t, env.gauge.Value())
	require.Zero(t, env.served.Value())
}

func TestCompactBlockRangeStalledSubscriber(t *testing.T) {
	defer leaktest.Check(t)()
	env := newTestEnv(t, dbm.NewMemDB(), 30)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stalled, err := env.svc.CompactBlockRange(ctx, &CompactBlockRangeRequest{
		ChainID:   testChainID,
		KeepAlive: true,
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(stalled) == blockBufferSize },
		5*time.Second, 10*time.Millisecond)

	// the stalled worker blocks with a full buffer
	time.Sleep(50 * time.Millisecond)
	require.Len(t, stalled, blockBufferSize)

	// commits and other subscribers keep going
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			env.commit(t)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("commits blocked behind a stalled subscriber")
	}

	other, err := env.svc.CompactBlockRange(ctx, &CompactBlockRangeRequest{
		ChainID:     testChainID,
		StartHeight: 20,
	})
	require.NoError(t, err)
	require.Equal(t, heightRange(20, 35), heightsUntilClosed(t, other))

	require.EqualValues(t, 1, env.gauge.Value())
	cancel()
	requireGaugeRestored(t, env.gauge)
}

func TestCompactBlockRangeGaugeRestoredOnEveryExit(t *testing.T) {
	t.Run("client disconnect", func(t *testing.T) {
		defer leaktest.Check(t)()
		env := newTestEnv(t, dbm.NewMemDB(), 30)
		ctx, cancel := context.WithCancel(context.Background())

		blocks, err := env.svc.CompactBlockRange(ctx, &CompactBlockRangeRequest{ChainID: testChainID})
		require.NoError(t, err)
		require.EqualValues(t, 0, nextHeight(t, blocks))

		cancel()
		requireGaugeRestored(t, env.gauge)
	})

	t.Run("storage error", func(t *testing.T) {
		defer leaktest.Check(t)()
		db := &failingDB{DB: dbm.NewMemDB()}
		env := newTestEnv(t, db, 5)
		atomic.StoreInt32(&db.armed, 1)

		blocks, err := env.svc.CompactBlockRange(context.Background(), &CompactBlockRangeRequest{ChainID: testChainID})
		require.NoError(t, err)

		res, ok := <-blocks
		require.True(t, ok)
		require.ErrorIs(t, res.Err, ErrStreamAborted)
		_, ok = <-blocks
		require.False(t, ok)
		requireGaugeRestored(t, env.gauge)
	})

	t.Run("store closed while live", func(t *testing.T) {
		defer leaktest.Check(t)()
		env := newTestEnv(t, dbm.NewMemDB(), 2)

		blocks, err := env.svc.CompactBlockRange(context.Background(), &CompactBlockRangeRequest{
			ChainID:   testChainID,
			KeepAlive: true,
		})
		require.NoError(t, err)
		for h := uint64(0); h <= 2; h++ {
			require.Equal(t, h, nextHeight(t, blocks))
		}

		require.NoError(t, env.store.Close())
		require.Empty(t, heightsUntilClosed(t, blocks))
		requireGaugeRestored(t, env.gauge)
	})
}

func TestConnectionGuardReleasesOnce(t *testing.T) {
	gauge := generic.NewGauge("active_connections")
	guard := acquireConnection(gauge)
	require.EqualValues(t, 1, gauge.Value())

	guard.Release()
	guard.Release()
	require.EqualValues(t, 0, gauge.Value())
}
