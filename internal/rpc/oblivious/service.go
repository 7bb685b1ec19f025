// Package oblivious serves the queries light clients make without revealing
// anything about the notes they own: compact block streams, chain
// parameters, epochs and the validator set.
package oblivious

import (
	"context"
	"errors"
	"fmt"

	"github.com/compactchain/compactd/internal/libs/watch"
	"github.com/compactchain/compactd/internal/state"
	"github.com/compactchain/compactd/internal/store"
	"github.com/compactchain/compactd/libs/log"
	"github.com/compactchain/compactd/types"
	"github.com/compactchain/compactd/version"
)

var (
	// ErrChainIDMismatch rejects requests made for another chain.
	ErrChainIDMismatch = state.ErrChainIDMismatch
	// ErrUnavailable wraps failures to read the state a request needs.
	ErrUnavailable = errors.New("state unavailable")
	// ErrStreamAborted wraps storage failures after a stream has started.
	ErrStreamAborted = errors.New("compact block stream aborted")
)

// Storage is the part of the state store the service reads from.
type Storage interface {
	LatestSnapshot() *store.Snapshot
	Subscribe() *watch.Receiver[*store.Snapshot]
}

// Service implements the oblivious query surface. It only ever reads the
// store.
type Service struct {
	storage Storage
	logger  log.Logger
	metrics *Metrics
}

// NewService returns a Service reading from storage.
func NewService(storage Storage, logger log.Logger, metrics *Metrics) *Service {
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Service{
		storage: storage,
		logger:  logger.With("module", "oblivious"),
		metrics: metrics,
	}
}

type ChainParametersRequest struct {
	ChainID string `json:"chain_id"`
}

type EpochByHeightRequest struct {
	Height uint64 `json:"height"`
}

type ValidatorInfoRequest struct {
	ChainID      string `json:"chain_id"`
	ShowInactive bool   `json:"show_inactive"`
}

type InfoRequest struct {
	// Version is the software version of the client.
	Version string `json:"version"`
}

type InfoResponse struct {
	Version          string `json:"version"`
	AppVersion       uint64 `json:"app_version"`
	LastBlockHeight  uint64 `json:"last_block_height"`
	LastBlockAppHash []byte `json:"last_block_app_hash"`
}

// checkChainID validates chainID against snap. A mismatch is reported with
// ErrChainIDMismatch, a failure to read the chain id with ErrUnavailable.
func checkChainID(snap *store.Snapshot, chainID string) error {
	err := state.CheckChainID(snap, chainID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, state.ErrChainIDMismatch):
		return fmt.Errorf("failed to validate chain id: %w", err)
	default:
		return fmt.Errorf("%w: reading chain id: %v", ErrUnavailable, err)
	}
}

// ChainParameters returns the current chain parameters.
func (s *Service) ChainParameters(ctx context.Context, req *ChainParametersRequest) (*types.ChainParameters, error) {
	snap := s.storage.LatestSnapshot()
	if err := checkChainID(snap, req.ChainID); err != nil {
		return nil, err
	}
	params, err := state.ChainParameters(snap)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &params, nil
}

// EpochByHeight returns the epoch containing the requested height.
func (s *Service) EpochByHeight(ctx context.Context, req *EpochByHeightRequest) (*types.Epoch, error) {
	epoch, err := state.EpochByHeight(s.storage.LatestSnapshot(), req.Height)
	if err != nil {
		return nil, fmt.Errorf("%w: could not get epoch for height %d: %v", ErrUnavailable, req.Height, err)
	}
	return &epoch, nil
}

// ValidatorInfo returns the validator set. Validators that are not active
// are only included when ShowInactive is set.
func (s *Service) ValidatorInfo(ctx context.Context, req *ValidatorInfoRequest) ([]types.ValidatorInfo, error) {
	snap := s.storage.LatestSnapshot()
	if err := checkChainID(snap, req.ChainID); err != nil {
		return nil, err
	}
	infos, err := state.ValidatorInfos(snap, req.ShowInactive)
	if err != nil {
		return nil, fmt.Errorf("%w: listing validators: %v", ErrUnavailable, err)
	}
	return infos, nil
}

// Info returns the software version and the last committed block.
func (s *Service) Info(ctx context.Context, req *InfoRequest) (*InfoResponse, error) {
	snap := s.storage.LatestSnapshot()
	resp := &InfoResponse{
		Version:    version.Version,
		AppVersion: version.AppProtocol,
	}
	if !snap.IsInitialized() {
		return resp, nil
	}
	appHash, err := snap.AppHash()
	if err != nil {
		return nil, fmt.Errorf("%w: reading app hash: %v", ErrUnavailable, err)
	}
	resp.LastBlockHeight = snap.Version()
	resp.LastBlockAppHash = appHash
	s.logger.Debug("info", "client_version", req.Version, "height", resp.LastBlockHeight)
	return resp, nil
}
