package types

import (
	"errors"
	"fmt"
)

const (
	// DefaultEpochDuration is the number of blocks in an epoch.
	DefaultEpochDuration uint64 = 719
	// DefaultProposalVotingBlocks is how long a governance proposal stays open.
	DefaultProposalVotingBlocks uint64 = 17280
	// MaxFmdPrecisionBits bounds the fuzzy message detection precision.
	MaxFmdPrecisionBits uint32 = 24
)

// ChainParameters are the chain-wide parameters, snapshotted into compact
// blocks whenever they may have changed.
type ChainParameters struct {
	ChainID              string `json:"chain_id"`
	EpochDuration        uint64 `json:"epoch_duration"`
	ProposalVotingBlocks uint64 `json:"proposal_voting_blocks"`
}

// DefaultChainParameters returns the parameters used when genesis omits them.
func DefaultChainParameters(chainID string) ChainParameters {
	return ChainParameters{
		ChainID:              chainID,
		EpochDuration:        DefaultEpochDuration,
		ProposalVotingBlocks: DefaultProposalVotingBlocks,
	}
}

// ValidateBasic performs stateless validation.
func (p ChainParameters) ValidateBasic() error {
	if p.ChainID == "" {
		return errors.New("chain id must not be empty")
	}
	if p.EpochDuration == 0 {
		return errors.New("epoch duration must be positive")
	}
	if p.ProposalVotingBlocks == 0 {
		return errors.New("proposal voting blocks must be positive")
	}
	return nil
}

// FmdParameters are the fuzzy message detection parameters clients use to
// build detection keys.
type FmdParameters struct {
	PrecisionBits   uint32 `json:"precision_bits"`
	AsOfBlockHeight uint64 `json:"as_of_block_height"`
}

// ValidateBasic performs stateless validation.
func (p FmdParameters) ValidateBasic() error {
	if p.PrecisionBits > MaxFmdPrecisionBits {
		return fmt.Errorf("fmd precision bits %d exceeds maximum %d", p.PrecisionBits, MaxFmdPrecisionBits)
	}
	return nil
}

// Epoch is a contiguous range of EpochDuration blocks.
type Epoch struct {
	Index       uint64 `json:"index"`
	StartHeight uint64 `json:"start_height"`
}

// EpochByHeight returns the epoch containing height for the given duration.
// Genesis (height 0) belongs to epoch 0.
func EpochByHeight(height, duration uint64) Epoch {
	if duration == 0 {
		return Epoch{}
	}
	index := height / duration
	return Epoch{Index: index, StartHeight: index * duration}
}

// IsEpochEnd reports whether height is the last block of its epoch.
func IsEpochEnd(height, duration uint64) bool {
	return duration != 0 && (height+1)%duration == 0
}
