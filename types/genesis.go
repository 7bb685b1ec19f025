package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// AppState is the application portion of the genesis document.
type AppState struct {
	ChainParams   ChainParameters `json:"chain_params"`
	FmdParameters FmdParameters   `json:"fmd_parameters"`
	Validators    []Validator     `json:"validators"`
	Allocations   []Allocation    `json:"allocations,omitempty"`
}

// Allocation is a note created at genesis.
type Allocation struct {
	Commitment    Commitment `json:"note_commitment"`
	EphemeralKey  []byte     `json:"ephemeral_key"`
	EncryptedNote []byte     `json:"encrypted_note"`
}

// AppStateFromJSON parses and validates genesis application state.
func AppStateFromJSON(bz []byte) (*AppState, error) {
	var as AppState
	if err := json.Unmarshal(bz, &as); err != nil {
		return nil, fmt.Errorf("parsing genesis app state: %w", err)
	}
	if err := as.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid genesis app state: %w", err)
	}
	return &as, nil
}

// ValidateBasic performs stateless validation.
func (as *AppState) ValidateBasic() error {
	if err := as.ChainParams.ValidateBasic(); err != nil {
		return err
	}
	if err := as.FmdParameters.ValidateBasic(); err != nil {
		return err
	}
	if len(as.Validators) == 0 {
		return errors.New("genesis must contain at least one validator")
	}

	seen := make(map[string]bool, len(as.Validators))
	for _, v := range as.Validators {
		if err := v.ValidateBasic(); err != nil {
			return err
		}
		if seen[v.IdentityKey] {
			return fmt.Errorf("duplicate genesis validator %s", v.IdentityKey)
		}
		seen[v.IdentityKey] = true
	}

	for i, a := range as.Allocations {
		if a.Commitment.IsZero() {
			return fmt.Errorf("allocation %d has an empty note commitment", i)
		}
	}
	return nil
}
