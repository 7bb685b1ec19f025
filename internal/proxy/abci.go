// Package proxy connects the consensus driver to a Tendermint node over the
// ABCI socket protocol.
package proxy

import (
	"context"
	"fmt"

	abcitypes "github.com/tendermint/tendermint/abci/types"

	abci "github.com/compactchain/compactd/abci/types"
	"github.com/compactchain/compactd/internal/state"
	"github.com/compactchain/compactd/internal/store"
	"github.com/compactchain/compactd/libs/log"
	"github.com/compactchain/compactd/types"
	"github.com/compactchain/compactd/version"
)

// Submitter enqueues consensus requests, see consensus.Driver.
type Submitter interface {
	Submit(ctx context.Context, req abci.Request) (abci.Response, error)
}

// Storage is the read-only view of the store used by the info and mempool
// connections.
type Storage interface {
	LatestSnapshot() *store.Snapshot
}

// Application implements the Tendermint ABCI application. Consensus
// connection calls are forwarded to the driver; Info and CheckTx are served
// from the latest snapshot.
type Application struct {
	abcitypes.BaseApplication

	driver  Submitter
	storage Storage
	logger  log.Logger
}

var _ abcitypes.Application = (*Application)(nil)

// NewApplication returns an ABCI application forwarding to driver.
func NewApplication(driver Submitter, storage Storage, logger log.Logger) *Application {
	return &Application{
		driver:  driver,
		storage: storage,
		logger:  logger.With("module", "abci"),
	}
}

// Info reports the last committed height and app hash. Tendermint replays
// blocks above that height on startup.
func (a *Application) Info(req abcitypes.RequestInfo) abcitypes.ResponseInfo {
	resp := abcitypes.ResponseInfo{
		Data:       "compactd",
		Version:    version.Version,
		AppVersion: version.AppProtocol,
	}
	snap := a.storage.LatestSnapshot()
	if !snap.IsInitialized() {
		return resp
	}
	appHash, err := snap.AppHash()
	if err != nil {
		a.logger.Error("failed to read app hash", "err", err)
		return resp
	}
	resp.LastBlockHeight = int64(snap.Version())
	resp.LastBlockAppHash = appHash
	a.logger.Info("abci info", "tendermint_version", req.Version, "height", resp.LastBlockHeight)
	return resp
}

// CheckTx performs the stateless checks of a transaction and verifies its
// chain id. Stateful checks happen in DeliverTx.
func (a *Application) CheckTx(req abcitypes.RequestCheckTx) abcitypes.ResponseCheckTx {
	tx, err := types.DecodeTransaction(req.Tx)
	if err != nil {
		return abcitypes.ResponseCheckTx{Code: abci.CodeTypeRejected, Log: err.Error()}
	}
	if err := state.CheckChainID(a.storage.LatestSnapshot(), tx.ChainID); err != nil {
		return abcitypes.ResponseCheckTx{Code: abci.CodeTypeRejected, Log: err.Error()}
	}
	return abcitypes.ResponseCheckTx{Code: abcitypes.CodeTypeOK}
}

func (a *Application) InitChain(req abcitypes.RequestInitChain) abcitypes.ResponseInitChain {
	resp := a.submit(&abci.RequestInitChain{
		Time:          req.Time,
		ChainID:       req.ChainId,
		AppStateBytes: req.AppStateBytes,
		InitialHeight: req.InitialHeight,
	}).(*abci.ResponseInitChain)
	return abcitypes.ResponseInitChain{
		Validators: toValidatorUpdates(resp.Validators),
		AppHash:    resp.AppHash,
	}
}

func (a *Application) BeginBlock(req abcitypes.RequestBeginBlock) abcitypes.ResponseBeginBlock {
	resp := a.submit(&abci.RequestBeginBlock{
		Hash: req.Hash,
		Header: abci.Header{
			ChainID:         req.Header.ChainID,
			Height:          req.Header.Height,
			Time:            req.Header.Time,
			ProposerAddress: req.Header.ProposerAddress,
		},
	}).(*abci.ResponseBeginBlock)
	return abcitypes.ResponseBeginBlock{Events: toEvents(resp.Events)}
}

func (a *Application) DeliverTx(req abcitypes.RequestDeliverTx) abcitypes.ResponseDeliverTx {
	resp := a.submit(&abci.RequestDeliverTx{Tx: req.Tx}).(*abci.ResponseDeliverTx)
	return abcitypes.ResponseDeliverTx{
		Code:   resp.Code,
		Log:    resp.Log,
		Events: toEvents(resp.Events),
	}
}

func (a *Application) EndBlock(req abcitypes.RequestEndBlock) abcitypes.ResponseEndBlock {
	resp := a.submit(&abci.RequestEndBlock{Height: req.Height}).(*abci.ResponseEndBlock)
	return abcitypes.ResponseEndBlock{
		ValidatorUpdates: toValidatorUpdates(resp.ValidatorUpdates),
		Events:           toEvents(resp.Events),
	}
}

func (a *Application) Commit() abcitypes.ResponseCommit {
	resp := a.submit(&abci.RequestCommit{}).(*abci.ResponseCommit)
	return abcitypes.ResponseCommit{Data: resp.Data, RetainHeight: resp.RetainHeight}
}

// submit forwards req to the driver. The ABCI interface cannot report
// errors on the consensus connection, and a failed block phase leaves the
// application unusable, so errors panic and the socket server drops the
// connection.
func (a *Application) submit(req abci.Request) abci.Response {
	resp, err := a.driver.Submit(context.Background(), req)
	if err != nil {
		a.logger.Error("consensus request failed", "phase", req.Phase().String(), "err", err)
		panic(fmt.Sprintf("%s: %v", req.Phase(), err))
	}
	return resp
}

func toEvents(events []abci.Event) []abcitypes.Event {
	if len(events) == 0 {
		return nil
	}
	out := make([]abcitypes.Event, len(events))
	for i, ev := range events {
		attrs := make([]abcitypes.EventAttribute, len(ev.Attributes))
		for j, attr := range ev.Attributes {
			attrs[j] = abcitypes.EventAttribute{
				Key:   []byte(attr.Key),
				Value: []byte(attr.Value),
				Index: attr.Index,
			}
		}
		out[i] = abcitypes.Event{Type: ev.Type, Attributes: attrs}
	}
	return out
}

func toValidatorUpdates(updates []abci.ValidatorUpdate) []abcitypes.ValidatorUpdate {
	out := make([]abcitypes.ValidatorUpdate, len(updates))
	for i, u := range updates {
		out[i] = abcitypes.Ed25519ValidatorUpdate(u.PubKey, u.Power)
	}
	return out
}
