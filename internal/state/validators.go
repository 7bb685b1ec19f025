package state

import (
	"fmt"

	"github.com/compactchain/compactd/internal/store"
	"github.com/compactchain/compactd/types"
)

// Validators returns the validator set in genesis order.
func Validators(r store.StateRead) ([]types.Validator, error) {
	var vals []types.Validator
	ok, err := getJSON(r, keyValidators, &vals)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("validators: %w", ErrNotFound)
	}
	return vals, nil
}

// PutValidators replaces the validator set.
func PutValidators(w store.StateWrite, vals []types.Validator) error {
	for _, v := range vals {
		if err := v.ValidateBasic(); err != nil {
			return err
		}
	}
	return putJSON(w, keyValidators, vals)
}

// Validator returns the validator with the given identity key.
func Validator(r store.StateRead, identityKey string) (types.Validator, error) {
	vals, err := Validators(r)
	if err != nil {
		return types.Validator{}, err
	}
	for _, v := range vals {
		if v.IdentityKey == identityKey {
			return v, nil
		}
	}
	return types.Validator{}, fmt.Errorf("%w: %s", ErrUnknownValidator, identityKey)
}

// ValidatorInfos returns the public view of the validator set. Validators
// that are not active are omitted unless showInactive is set.
func ValidatorInfos(r store.StateRead, showInactive bool) ([]types.ValidatorInfo, error) {
	vals, err := Validators(r)
	if err != nil {
		return nil, err
	}
	infos := make([]types.ValidatorInfo, 0, len(vals))
	for _, v := range vals {
		if v.State != types.ValidatorStateActive && !showInactive {
			continue
		}
		infos = append(infos, types.ValidatorInfo{
			Validator: v,
			Status: types.ValidatorStatus{
				State:       v.State,
				VotingPower: v.ConsensusPower(),
			},
		})
	}
	return infos, nil
}
