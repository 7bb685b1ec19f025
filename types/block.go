package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CompactBlock is the privacy-preserving summary of one committed height that
// light clients scan to find their notes. It is produced once per height at
// Commit and never modified afterwards.
type CompactBlock struct {
	Height uint64 `json:"height"`
	// StatePayloads are in the order their commitments were appended to the
	// state commitment tree.
	StatePayloads []StatePayload `json:"state_payloads,omitempty"`
	Nullifiers    []Nullifier    `json:"nullifiers,omitempty"`
	BlockRoot     Root           `json:"block_root"`
	// EpochRoot is only set on the last block of an epoch.
	EpochRoot       *Root                 `json:"epoch_root,omitempty"`
	ProposalStarted bool                  `json:"proposal_started,omitempty"`
	FmdParameters   *FmdParameters        `json:"fmd_parameters,omitempty"`
	SwapOutputs     []BatchSwapOutputData `json:"swap_outputs,omitempty"`
	ChainParameters *ChainParameters      `json:"chain_parameters,omitempty"`
}

// Commitments returns the commitment of every state payload in order.
func (cb *CompactBlock) Commitments() []Commitment {
	out := make([]Commitment, 0, len(cb.StatePayloads))
	for _, p := range cb.StatePayloads {
		out = append(out, p.StateCommitment())
	}
	return out
}

func (cb *CompactBlock) MarshalJSON() ([]byte, error) {
	type alias CompactBlock
	payloads := make([]statePayloadJSON, 0, len(cb.StatePayloads))
	for _, p := range cb.StatePayloads {
		pj, err := wrapStatePayload(p)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, pj)
	}
	return json.Marshal(struct {
		*alias
		StatePayloads []statePayloadJSON `json:"state_payloads,omitempty"`
	}{
		alias:         (*alias)(cb),
		StatePayloads: payloads,
	})
}

func (cb *CompactBlock) UnmarshalJSON(bz []byte) error {
	type alias CompactBlock
	aux := struct {
		*alias
		StatePayloads []statePayloadJSON `json:"state_payloads,omitempty"`
	}{alias: (*alias)(cb)}
	if err := json.Unmarshal(bz, &aux); err != nil {
		return err
	}

	cb.StatePayloads = nil
	for i, pj := range aux.StatePayloads {
		p, err := pj.unwrap()
		if err != nil {
			return fmt.Errorf("state payload %d: %w", i, err)
		}
		cb.StatePayloads = append(cb.StatePayloads, p)
	}
	return nil
}

// StatePayload is one entry of a compact block's state payload list. It is a
// closed set: *RolledUp, *NotePayload and *SwapPayload.
type StatePayload interface {
	isStatePayload()

	// StateCommitment returns the commitment inserted into the state
	// commitment tree for this payload.
	StateCommitment() Commitment
}

// RolledUp is a payload the node has pruned down to its bare commitment.
type RolledUp struct {
	Commitment Commitment `json:"commitment"`
}

// PayloadSource identifies what produced a note or swap payload.
type PayloadSource struct {
	// Transaction is the hash of the producing transaction, empty for
	// genesis allocations and protocol-minted notes.
	Transaction string `json:"transaction,omitempty"`
	Genesis     bool   `json:"genesis,omitempty"`
}

// NotePayload carries everything a client needs to trial-decrypt a note.
type NotePayload struct {
	Source        PayloadSource `json:"source"`
	Commitment    Commitment    `json:"note_commitment"`
	EphemeralKey  []byte        `json:"ephemeral_key"`
	EncryptedNote []byte        `json:"encrypted_note"`
}

// SwapPayload carries an encrypted swap for trial-decryption.
type SwapPayload struct {
	Source        PayloadSource `json:"source"`
	Commitment    Commitment    `json:"commitment"`
	EncryptedSwap []byte        `json:"encrypted_swap"`
}

func (*RolledUp) isStatePayload()    {}
func (*NotePayload) isStatePayload() {}
func (*SwapPayload) isStatePayload() {}

func (p *RolledUp) StateCommitment() Commitment    { return p.Commitment }
func (p *NotePayload) StateCommitment() Commitment { return p.Commitment }
func (p *SwapPayload) StateCommitment() Commitment { return p.Commitment }

var errEmptyPayload = errors.New("payload has no variant set")

type statePayloadJSON struct {
	RolledUp *RolledUp    `json:"rolled_up,omitempty"`
	Note     *NotePayload `json:"note,omitempty"`
	Swap     *SwapPayload `json:"swap,omitempty"`
}

func wrapStatePayload(p StatePayload) (statePayloadJSON, error) {
	switch p := p.(type) {
	case *RolledUp:
		return statePayloadJSON{RolledUp: p}, nil
	case *NotePayload:
		return statePayloadJSON{Note: p}, nil
	case *SwapPayload:
		return statePayloadJSON{Swap: p}, nil
	default:
		return statePayloadJSON{}, fmt.Errorf("unknown state payload type %T", p)
	}
}

func (pj statePayloadJSON) unwrap() (StatePayload, error) {
	var (
		out StatePayload
		n   int
	)
	if pj.RolledUp != nil {
		out, n = pj.RolledUp, n+1
	}
	if pj.Note != nil {
		out, n = pj.Note, n+1
	}
	if pj.Swap != nil {
		out, n = pj.Swap, n+1
	}
	switch n {
	case 0:
		return nil, errEmptyPayload
	case 1:
		return out, nil
	default:
		return nil, fmt.Errorf("payload has %d variants set", n)
	}
}

// TradingPair is an unordered pair of assets, kept in canonical order
// (Asset1 < Asset2).
type TradingPair struct {
	Asset1 string `json:"asset_1"`
	Asset2 string `json:"asset_2"`
}

// NewTradingPair returns the canonical pair for a and b.
func NewTradingPair(a, b string) (TradingPair, error) {
	switch {
	case a == "" || b == "":
		return TradingPair{}, errors.New("trading pair asset must not be empty")
	case a == b:
		return TradingPair{}, fmt.Errorf("trading pair assets must differ, got %q twice", a)
	case a > b:
		a, b = b, a
	}
	return TradingPair{Asset1: a, Asset2: b}, nil
}

// Less orders pairs lexicographically.
func (tp TradingPair) Less(other TradingPair) bool {
	if tp.Asset1 != other.Asset1 {
		return tp.Asset1 < other.Asset1
	}
	return tp.Asset2 < other.Asset2
}

func (tp TradingPair) String() string { return tp.Asset1 + ":" + tp.Asset2 }

// BatchSwapOutputData is the clearing result of every swap on one trading
// pair in one block.
type BatchSwapOutputData struct {
	TradingPair TradingPair `json:"trading_pair"`
	Height      uint64      `json:"height"`
	// Delta1 and Delta2 are the total inputs of asset 1 and asset 2.
	Delta1 uint64 `json:"delta_1"`
	Delta2 uint64 `json:"delta_2"`
	// Lambda1 and Lambda2 are the total outputs of asset 1 and asset 2.
	Lambda1 uint64 `json:"lambda_1"`
	Lambda2 uint64 `json:"lambda_2"`
}
