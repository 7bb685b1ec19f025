package coregrpc

import (
	"github.com/compactchain/compactd/internal/rpc/oblivious"
	"github.com/compactchain/compactd/types"
)

// Request messages are shared with the service implementation.
type (
	ChainParametersRequest   = oblivious.ChainParametersRequest
	EpochByHeightRequest     = oblivious.EpochByHeightRequest
	ValidatorInfoRequest     = oblivious.ValidatorInfoRequest
	InfoRequest              = oblivious.InfoRequest
	InfoResponse             = oblivious.InfoResponse
	CompactBlockRangeRequest = oblivious.CompactBlockRangeRequest
)

type ChainParametersResponse struct {
	ChainParameters *types.ChainParameters `json:"chain_parameters"`
}

type EpochByHeightResponse struct {
	Epoch *types.Epoch `json:"epoch"`
}

type ValidatorInfoResponse struct {
	ValidatorInfo *types.ValidatorInfo `json:"validator_info"`
}

type CompactBlockRangeResponse struct {
	CompactBlock *types.CompactBlock `json:"compact_block"`
}
