package state

import (
	"fmt"

	"github.com/compactchain/compactd/internal/store"
)

// ProposalState is the lifecycle state of a governance proposal.
type ProposalState string

const (
	ProposalStateVoting   ProposalState = "voting"
	ProposalStateFinished ProposalState = "finished"
)

// Proposal is the content of a governance proposal.
type Proposal struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// NextProposalID returns the id the next submitted proposal will receive.
func NextProposalID(r store.StateRead) (uint64, error) {
	id, _, err := getUint64(r, keyNextProposalID)
	return id, err
}

// SubmitProposal assigns the next proposal id to p, stores it and opens its
// voting period [votingStart, votingEnd].
func SubmitProposal(w store.StateWrite, p Proposal, votingStart, votingEnd uint64) (uint64, error) {
	id, err := NextProposalID(w)
	if err != nil {
		return 0, err
	}
	p.ID = id

	if err := putJSON(w, proposalDataKey(id), p); err != nil {
		return 0, err
	}
	w.Put(proposalStateKey(id), []byte(ProposalStateVoting))
	putUint64(w, proposalVotingStartKey(id), votingStart)
	putUint64(w, proposalVotingEndKey(id), votingEnd)
	w.Put(unfinishedProposalKey(id), []byte{})

	ending, err := ProposalsEndingAt(w, votingEnd)
	if err != nil {
		return 0, err
	}
	if err := putJSON(w, votingEndsKey(votingEnd), append(ending, id)); err != nil {
		return 0, err
	}

	putUint64(w, keyNextProposalID, id+1)
	return id, nil
}

// GetProposal returns the proposal with id.
func GetProposal(r store.StateRead, id uint64) (Proposal, error) {
	var p Proposal
	ok, err := getJSON(r, proposalDataKey(id), &p)
	if err != nil {
		return p, err
	}
	if !ok {
		return p, fmt.Errorf("proposal %d: %w", id, ErrNotFound)
	}
	return p, nil
}

// GetProposalState returns the lifecycle state of proposal id.
func GetProposalState(r store.StateRead, id uint64) (ProposalState, error) {
	bz, err := r.Get(proposalStateKey(id))
	if err != nil {
		return "", err
	}
	if bz == nil {
		return "", fmt.Errorf("proposal %d state: %w", id, ErrNotFound)
	}
	return ProposalState(bz), nil
}

// ProposalVotingEnd returns the last height of the voting period of id.
func ProposalVotingEnd(r store.StateRead, id uint64) (uint64, error) {
	end, ok, err := getUint64(r, proposalVotingEndKey(id))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("proposal %d voting end: %w", id, ErrNotFound)
	}
	return end, nil
}

// IsProposalUnfinished reports whether id is still open.
func IsProposalUnfinished(r store.StateRead, id uint64) (bool, error) {
	bz, err := r.Get(unfinishedProposalKey(id))
	if err != nil {
		return false, err
	}
	return bz != nil, nil
}

// ProposalsEndingAt returns the ids of proposals whose voting period ends at
// height, in submission order.
func ProposalsEndingAt(r store.StateRead, height uint64) ([]uint64, error) {
	var ids []uint64
	if _, err := getJSON(r, votingEndsKey(height), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// FinishProposal closes the voting period of id.
func FinishProposal(w store.StateWrite, id uint64) {
	w.Put(proposalStateKey(id), []byte(ProposalStateFinished))
	w.Delete(unfinishedProposalKey(id))
}
