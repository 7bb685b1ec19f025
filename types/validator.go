package types

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
)

// ValidatorState is the lifecycle state of a validator.
type ValidatorState int

const (
	ValidatorStateInactive ValidatorState = iota
	ValidatorStateActive
	ValidatorStateJailed
	ValidatorStateTombstoned
	ValidatorStateDisabled
)

var validatorStateNames = map[ValidatorState]string{
	ValidatorStateInactive:   "inactive",
	ValidatorStateActive:     "active",
	ValidatorStateJailed:     "jailed",
	ValidatorStateTombstoned: "tombstoned",
	ValidatorStateDisabled:   "disabled",
}

func (s ValidatorState) String() string {
	if name, ok := validatorStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ValidatorState(%d)", int(s))
}

func (s ValidatorState) MarshalText() ([]byte, error) {
	name, ok := validatorStateNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown validator state %d", int(s))
	}
	return []byte(name), nil
}

func (s *ValidatorState) UnmarshalText(text []byte) error {
	for state, name := range validatorStateNames {
		if strings.EqualFold(name, string(text)) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown validator state %q", text)
}

// Validator is a consensus participant as tracked by the application.
type Validator struct {
	IdentityKey  string         `json:"identity_key"`
	ConsensusKey []byte         `json:"consensus_key"`
	Name         string         `json:"name,omitempty"`
	VotingPower  int64          `json:"voting_power"`
	State        ValidatorState `json:"state"`
}

// ValidateBasic performs stateless validation.
func (v Validator) ValidateBasic() error {
	if v.IdentityKey == "" {
		return errors.New("validator identity key must not be empty")
	}
	if len(v.ConsensusKey) != ed25519.PublicKeySize {
		return fmt.Errorf("validator %s: consensus key must be %d bytes, got %d",
			v.IdentityKey, ed25519.PublicKeySize, len(v.ConsensusKey))
	}
	if v.VotingPower < 0 {
		return fmt.Errorf("validator %s: negative voting power %d", v.IdentityKey, v.VotingPower)
	}
	return nil
}

// ConsensusPower is the power reported to the consensus engine. Only active
// validators carry power.
func (v Validator) ConsensusPower() int64 {
	if v.State != ValidatorStateActive {
		return 0
	}
	return v.VotingPower
}

// ValidatorInfo is the public view of a validator served to clients.
type ValidatorInfo struct {
	Validator Validator       `json:"validator"`
	Status    ValidatorStatus `json:"status"`
}

// ValidatorStatus summarizes the validator's current standing.
type ValidatorStatus struct {
	State       ValidatorState `json:"state"`
	VotingPower int64          `json:"voting_power"`
}
