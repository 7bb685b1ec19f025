// Package app implements the deterministic application state machine driven
// by the consensus driver.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	abci "github.com/compactchain/compactd/abci/types"
	"github.com/compactchain/compactd/internal/state"
	"github.com/compactchain/compactd/internal/store"
	"github.com/compactchain/compactd/libs/log"
	"github.com/compactchain/compactd/types"
)

// Event types emitted by the application.
const (
	EventTypeBlockBegin       = "block_begin"
	EventTypeSpend            = "action_spend"
	EventTypeOutput           = "action_output"
	EventTypeSwap             = "action_swap"
	EventTypeProposalSubmit   = "proposal_submit"
	EventTypeProposalFinished = "proposal_finished"
	EventTypeDelegate         = "action_delegate"
	EventTypeUndelegate       = "action_undelegate"
)

var (
	// ErrAlreadyInitialized is returned by InitChain on a store that already
	// holds committed state.
	ErrAlreadyInitialized = errors.New("application state already initialized")
	// ErrNoBlockInProgress is returned by block phases called outside of
	// BeginBlock ... Commit.
	ErrNoBlockInProgress = errors.New("no block in progress")
)

// App is the application state machine. It is not safe for concurrent use:
// every method is called from the consensus driver's single goroutine.
type App struct {
	store  *store.Store
	logger log.Logger

	// validators is the validator set as of the last EndBlock or InitChain.
	validators []types.Validator

	block *blockBuilder
}

var _ abci.Application = (*App)(nil)

// New returns an App over s. A store that already holds state resumes from
// its latest version.
func New(s *store.Store, logger log.Logger) (*App, error) {
	app := &App{
		store:  s,
		logger: logger.With("module", "app"),
	}
	if snap := s.LatestSnapshot(); snap.IsInitialized() {
		vals, err := state.Validators(snap)
		if err != nil {
			return nil, fmt.Errorf("loading validators: %w", err)
		}
		app.validators = vals
	}
	return app, nil
}

// InitChain applies genesis and commits it as version 0.
func (app *App) InitChain(ctx context.Context, req *abci.RequestInitChain, appState *types.AppState) error {
	snap := app.store.LatestSnapshot()
	if snap.IsInitialized() {
		return fmt.Errorf("%w at version %d", ErrAlreadyInitialized, snap.Version())
	}
	if req.ChainID != "" && req.ChainID != appState.ChainParams.ChainID {
		return fmt.Errorf("%w: genesis %q, app state %q",
			state.ErrChainIDMismatch, req.ChainID, appState.ChainParams.ChainID)
	}

	delta := store.NewStateDelta(snap)
	params := appState.ChainParams
	if err := state.PutChainParameters(delta, params); err != nil {
		return err
	}
	fmd := appState.FmdParameters
	fmd.AsOfBlockHeight = 0
	if err := state.PutFmdParameters(delta, fmd); err != nil {
		return err
	}

	vals := make([]types.Validator, len(appState.Validators))
	copy(vals, appState.Validators)
	if err := state.PutValidators(delta, vals); err != nil {
		return err
	}
	state.PutBlockHeight(delta, 0)
	if err := state.PutBlockTimestamp(delta, req.Time); err != nil {
		return err
	}

	b := newBlockBuilder(0, delta, params)
	b.paramsChanged = true
	for _, a := range appState.Allocations {
		b.payloads = append(b.payloads, &types.NotePayload{
			Source:        types.PayloadSource{Genesis: true},
			Commitment:    a.Commitment,
			EphemeralKey:  a.EphemeralKey,
			EncryptedNote: a.EncryptedNote,
		})
	}
	b.epochEnd = types.IsEpochEnd(0, params.EpochDuration)

	if _, err := app.commitBlock(b); err != nil {
		return err
	}
	app.validators = vals

	app.logger.Info("applied genesis",
		"chain_id", params.ChainID,
		"validators", len(vals),
		"allocations", len(appState.Allocations))
	return nil
}

// BeginBlock starts the block at the height following the latest version.
func (app *App) BeginBlock(ctx context.Context, req *abci.RequestBeginBlock) ([]abci.Event, error) {
	if app.block != nil {
		return nil, fmt.Errorf("block %d still in progress", app.block.height)
	}
	snap := app.store.LatestSnapshot()
	if !snap.IsInitialized() {
		return nil, errors.New("begin block before genesis")
	}
	if err := state.CheckChainID(snap, req.Header.ChainID); err != nil {
		return nil, err
	}
	if req.Header.Height <= 0 || uint64(req.Header.Height) != snap.Version()+1 {
		return nil, fmt.Errorf("unexpected block height %d, latest committed %d", req.Header.Height, snap.Version())
	}
	height := uint64(req.Header.Height)

	params, err := state.ChainParameters(snap)
	if err != nil {
		return nil, err
	}
	delta := store.NewStateDelta(snap)
	state.PutBlockHeight(delta, height)
	if err := state.PutBlockTimestamp(delta, req.Header.Time); err != nil {
		return nil, err
	}

	app.block = newBlockBuilder(height, delta, params)
	app.logger.Debug("begin block", "height", height)
	return []abci.Event{
		abci.NewEvent(EventTypeBlockBegin, "height", fmt.Sprint(height)),
	}, nil
}

// DeliverTx checks and applies one transaction. A rejected transaction
// leaves the block untouched.
func (app *App) DeliverTx(ctx context.Context, txBytes []byte) ([]abci.Event, error) {
	b := app.block
	if b == nil {
		return nil, ErrNoBlockInProgress
	}

	tx, err := types.DecodeTransaction(txBytes)
	if err != nil {
		return nil, err
	}
	if tx.ChainID != b.params.ChainID {
		return nil, fmt.Errorf("%w: transaction for %q", state.ErrChainIDMismatch, tx.ChainID)
	}
	if tx.ExpiryHeight != 0 && b.height > tx.ExpiryHeight {
		return nil, fmt.Errorf("transaction expired at height %d, current height %d", tx.ExpiryHeight, b.height)
	}

	if err := app.checkTx(b, tx); err != nil {
		return nil, err
	}
	return app.applyTx(b, types.Tx(txBytes), tx)
}

// EndBlock finalizes the block in progress.
func (app *App) EndBlock(ctx context.Context, req *abci.RequestEndBlock) ([]abci.Event, error) {
	b := app.block
	if b == nil {
		return nil, ErrNoBlockInProgress
	}
	if req.Height != int64(b.height) {
		return nil, fmt.Errorf("end block for height %d, block in progress is %d", req.Height, b.height)
	}

	if len(b.powerDeltas) > 0 {
		vals, err := state.Validators(b.delta)
		if err != nil {
			return nil, err
		}
		for i := range vals {
			if d, ok := b.powerDeltas[vals[i].IdentityKey]; ok {
				vals[i].VotingPower += d
			}
		}
		if err := state.PutValidators(b.delta, vals); err != nil {
			return nil, err
		}
		app.validators = vals
	}

	b.clearSwaps()

	var events []abci.Event
	ending, err := state.ProposalsEndingAt(b.delta, b.height)
	if err != nil {
		return nil, err
	}
	for _, id := range ending {
		open, err := state.IsProposalUnfinished(b.delta, id)
		if err != nil {
			return nil, err
		}
		if !open {
			continue
		}
		state.FinishProposal(b.delta, id)
		events = append(events, abci.NewEvent(EventTypeProposalFinished, "proposal_id", fmt.Sprint(id)))
	}

	b.epochEnd = types.IsEpochEnd(b.height, b.params.EpochDuration)
	return events, nil
}

// Commit writes the compact block and the state of the block in progress
// and returns the application hash.
func (app *App) Commit(ctx context.Context) ([]byte, error) {
	b := app.block
	if b == nil {
		return nil, ErrNoBlockInProgress
	}
	appHash, err := app.commitBlock(b)
	if err != nil {
		return nil, err
	}
	app.block = nil
	return appHash, nil
}

// ValidatorUpdates returns every validator with its consensus power.
// Validators that are not active report zero power.
func (app *App) ValidatorUpdates() []abci.ValidatorUpdate {
	updates := make([]abci.ValidatorUpdate, 0, len(app.validators))
	for _, v := range app.validators {
		updates = append(updates, abci.ValidatorUpdate{
			PubKey: v.ConsensusKey,
			Power:  v.ConsensusPower(),
		})
	}
	return updates
}

func (app *App) commitBlock(b *blockBuilder) ([]byte, error) {
	cb, err := b.finalize()
	if err != nil {
		return nil, err
	}
	b.delta.PutCompactBlock(cb)

	appHash, err := app.store.Commit(b.delta)
	if err != nil {
		return nil, fmt.Errorf("committing height %d: %w", b.height, err)
	}
	app.logger.Info("committed block",
		"height", b.height,
		"payloads", len(cb.StatePayloads),
		"nullifiers", len(cb.Nullifiers),
		"app_hash", fmt.Sprintf("%X", appHash))
	return appHash, nil
}

func sortSwapOutputs(outs []types.BatchSwapOutputData) {
	sort.Slice(outs, func(i, j int) bool {
		return outs[i].TradingPair.Less(outs[j].TradingPair)
	})
}
