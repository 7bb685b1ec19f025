package state

import "fmt"

// Keys of the application state. Every component owns a path prefix.
const (
	keyChainParams     = "chain_params"
	keyFmdParams       = "shielded_pool/fmd_parameters"
	keyBlockHeight     = "block_height"
	keyBlockTimestamp  = "block_timestamp"
	keyValidators      = "staking/validators"
	keyLastBlockRoot   = "shielded_pool/last_block_root"
	keyNextProposalID  = "governance/next_proposal_id"
	prefixNullifier    = "shielded_pool/spent_nullifiers/"
	prefixBlockRoot    = "shielded_pool/block_root/"
	prefixEpochRoot    = "shielded_pool/epoch_root/"
	prefixVotingEnds   = "governance/voting_ends/"
	prefixUnfinished   = "governance/unfinished_proposals/"
	prefixProposalData = "governance/proposal/"
)

func spentNullifierKey(nf fmt.Stringer) string {
	return prefixNullifier + nf.String()
}

func blockRootKey(height uint64) string {
	return fmt.Sprintf("%s%020d", prefixBlockRoot, height)
}

func epochRootKey(index uint64) string {
	return fmt.Sprintf("%s%020d", prefixEpochRoot, index)
}

func proposalDataKey(id uint64) string {
	return fmt.Sprintf("%s%020d/data", prefixProposalData, id)
}

func proposalStateKey(id uint64) string {
	return fmt.Sprintf("%s%020d/state", prefixProposalData, id)
}

func proposalVotingStartKey(id uint64) string {
	return fmt.Sprintf("%s%020d/voting_start", prefixProposalData, id)
}

func proposalVotingEndKey(id uint64) string {
	return fmt.Sprintf("%s%020d/voting_end", prefixProposalData, id)
}

func unfinishedProposalKey(id uint64) string {
	return fmt.Sprintf("%s%020d", prefixUnfinished, id)
}

// votingEndsKey indexes the proposals whose voting period ends at height.
func votingEndsKey(height uint64) string {
	return fmt.Sprintf("%s%020d", prefixVotingEnds, height)
}
