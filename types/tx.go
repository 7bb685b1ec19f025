package types

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// MaxTxBytes bounds the size of a single encoded transaction.
const MaxTxBytes = 1 << 20

// Tx is a raw transaction as delivered by the consensus engine.
type Tx []byte

// Hash returns the blake2b-256 hash of the raw transaction.
func (tx Tx) Hash() []byte {
	h := blake2b.Sum256(tx)
	return h[:]
}

// String returns the hex encoded hash of the transaction.
func (tx Tx) String() string { return hex.EncodeToString(tx.Hash()) }

// Transaction is a decoded transaction.
type Transaction struct {
	ChainID string `json:"chain_id"`
	// ExpiryHeight is the last height the transaction may be included at;
	// zero means no expiry.
	ExpiryHeight uint64   `json:"expiry_height,omitempty"`
	Actions      []Action `json:"actions"`
}

// Action is one effect of a transaction. It is a closed set: *Output,
// *Spend, *Swap, *ProposalSubmit, *Delegate and *Undelegate.
type Action interface {
	isAction()
	ValidateBasic() error
}

// Output creates a new shielded note.
type Output struct {
	Commitment    Commitment `json:"note_commitment"`
	EphemeralKey  []byte     `json:"ephemeral_key"`
	EncryptedNote []byte     `json:"encrypted_note"`
}

// Spend consumes a shielded note by revealing its nullifier.
type Spend struct {
	Nullifier Nullifier `json:"nullifier"`
}

// Swap submits a swap into the block's batch for a trading pair.
type Swap struct {
	TradingPair   TradingPair `json:"trading_pair"`
	Delta1        uint64      `json:"delta_1"`
	Delta2        uint64      `json:"delta_2"`
	Commitment    Commitment  `json:"commitment"`
	EncryptedSwap []byte      `json:"encrypted_swap"`
}

// ProposalSubmit opens a governance proposal.
type ProposalSubmit struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Delegate adds voting power to a validator.
type Delegate struct {
	Validator string `json:"validator"`
	Amount    int64  `json:"amount"`
}

// Undelegate removes voting power from a validator.
type Undelegate struct {
	Validator string `json:"validator"`
	Amount    int64  `json:"amount"`
}

func (*Output) isAction()         {}
func (*Spend) isAction()          {}
func (*Swap) isAction()           {}
func (*ProposalSubmit) isAction() {}
func (*Delegate) isAction()       {}
func (*Undelegate) isAction()     {}

func (a *Output) ValidateBasic() error {
	if a.Commitment.IsZero() {
		return errors.New("output: empty note commitment")
	}
	return nil
}

func (a *Spend) ValidateBasic() error {
	if a.Nullifier.IsZero() {
		return errors.New("spend: empty nullifier")
	}
	return nil
}

func (a *Swap) ValidateBasic() error {
	canonical, err := NewTradingPair(a.TradingPair.Asset1, a.TradingPair.Asset2)
	if err != nil {
		return fmt.Errorf("swap: %w", err)
	}
	if canonical != a.TradingPair {
		return fmt.Errorf("swap: trading pair %s is not in canonical order", a.TradingPair)
	}
	if a.Delta1 == 0 && a.Delta2 == 0 {
		return errors.New("swap: both input amounts are zero")
	}
	if a.Commitment.IsZero() {
		return errors.New("swap: empty commitment")
	}
	return nil
}

func (a *ProposalSubmit) ValidateBasic() error {
	if a.Title == "" {
		return errors.New("proposal: empty title")
	}
	return nil
}

func (a *Delegate) ValidateBasic() error {
	if a.Validator == "" {
		return errors.New("delegate: empty validator")
	}
	if a.Amount <= 0 {
		return fmt.Errorf("delegate: amount must be positive, got %d", a.Amount)
	}
	return nil
}

func (a *Undelegate) ValidateBasic() error {
	if a.Validator == "" {
		return errors.New("undelegate: empty validator")
	}
	if a.Amount <= 0 {
		return fmt.Errorf("undelegate: amount must be positive, got %d", a.Amount)
	}
	return nil
}

type actionJSON struct {
	Output         *Output         `json:"output,omitempty"`
	Spend          *Spend          `json:"spend,omitempty"`
	Swap           *Swap           `json:"swap,omitempty"`
	ProposalSubmit *ProposalSubmit `json:"proposal_submit,omitempty"`
	Delegate       *Delegate       `json:"delegate,omitempty"`
	Undelegate     *Undelegate     `json:"undelegate,omitempty"`
}

func wrapAction(a Action) (actionJSON, error) {
	switch a := a.(type) {
	case *Output:
		return actionJSON{Output: a}, nil
	case *Spend:
		return actionJSON{Spend: a}, nil
	case *Swap:
		return actionJSON{Swap: a}, nil
	case *ProposalSubmit:
		return actionJSON{ProposalSubmit: a}, nil
	case *Delegate:
		return actionJSON{Delegate: a}, nil
	case *Undelegate:
		return actionJSON{Undelegate: a}, nil
	default:
		return actionJSON{}, fmt.Errorf("unknown action type %T", a)
	}
}

func (aj actionJSON) unwrap() (Action, error) {
	var set []Action
	if aj.Output != nil {
		set = append(set, aj.Output)
	}
	if aj.Spend != nil {
		set = append(set, aj.Spend)
	}
	if aj.Swap != nil {
		set = append(set, aj.Swap)
	}
	if aj.ProposalSubmit != nil {
		set = append(set, aj.ProposalSubmit)
	}
	if aj.Delegate != nil {
		set = append(set, aj.Delegate)
	}
	if aj.Undelegate != nil {
		set = append(set, aj.Undelegate)
	}
	if len(set) != 1 {
		return nil, fmt.Errorf("action must have exactly one variant set, got %d", len(set))
	}
	return set[0], nil
}

func (tx *Transaction) MarshalJSON() ([]byte, error) {
	type alias Transaction
	actions := make([]actionJSON, 0, len(tx.Actions))
	for _, a := range tx.Actions {
		aj, err := wrapAction(a)
		if err != nil {
			return nil, err
		}
		actions = append(actions, aj)
	}
	return json.Marshal(struct {
		*alias
		Actions []actionJSON `json:"actions"`
	}{
		alias:   (*alias)(tx),
		Actions: actions,
	})
}

func (tx *Transaction) UnmarshalJSON(bz []byte) error {
	type alias Transaction
	aux := struct {
		*alias
		Actions []actionJSON `json:"actions"`
	}{alias: (*alias)(tx)}
	if err := json.Unmarshal(bz, &aux); err != nil {
		return err
	}

	tx.Actions = nil
	for i, aj := range aux.Actions {
		a, err := aj.unwrap()
		if err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		tx.Actions = append(tx.Actions, a)
	}
	return nil
}

// ValidateBasic performs stateless validation of the transaction.
func (tx *Transaction) ValidateBasic() error {
	if tx.ChainID == "" {
		return errors.New("transaction has no chain id")
	}
	if len(tx.Actions) == 0 {
		return errors.New("transaction has no actions")
	}
	for i, a := range tx.Actions {
		if err := a.ValidateBasic(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

// DecodeTransaction decodes raw transaction bytes and performs stateless
// validation.
func DecodeTransaction(bz []byte) (*Transaction, error) {
	if len(bz) == 0 {
		return nil, errors.New("empty transaction")
	}
	if len(bz) > MaxTxBytes {
		return nil, fmt.Errorf("transaction is %d bytes, exceeds maximum of %d", len(bz), MaxTxBytes)
	}

	var tx Transaction
	if err := json.Unmarshal(bz, &tx); err != nil {
		return nil, fmt.Errorf("decoding transaction: %w", err)
	}
	if err := tx.ValidateBasic(); err != nil {
		return nil, err
	}
	return &tx, nil
}

// EncodeTransaction is the inverse of DecodeTransaction.
func EncodeTransaction(tx *Transaction) (Tx, error) {
	return json.Marshal(tx)
}
