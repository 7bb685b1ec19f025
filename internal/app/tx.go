package app

import (
	"errors"
	"fmt"
	"math"

	abci "github.com/compactchain/compactd/abci/types"
	"github.com/compactchain/compactd/internal/state"
	"github.com/compactchain/compactd/internal/store"
	"github.com/compactchain/compactd/types"
)

var (
	// ErrNullifierSpent is returned for spends of an already revealed nullifier.
	ErrNullifierSpent = errors.New("nullifier already spent")
	// ErrAmountOverflow is returned when an action would push a voting power
	// or a swap batch total out of range.
	ErrAmountOverflow = errors.New("amount overflow")
)

// checkTx performs the stateful checks of tx against the block in progress
// without modifying it.
func (app *App) checkTx(b *blockBuilder, tx *types.Transaction) error {
	spent := make(map[types.Nullifier]bool)
	power := make(map[string]int64)
	swapped := make(map[types.TradingPair][2]uint64)

	for i, action := range tx.Actions {
		switch a := action.(type) {
		case *types.Spend:
			if spent[a.Nullifier] {
				return fmt.Errorf("action %d: %w: %s", i, ErrNullifierSpent, a.Nullifier)
			}
			ok, err := state.IsNullifierSpent(b.delta, a.Nullifier)
			if err != nil {
				return err
			}
			if ok {
				return fmt.Errorf("action %d: %w: %s", i, ErrNullifierSpent, a.Nullifier)
			}
			spent[a.Nullifier] = true

		case *types.Swap:
			sum, ok := swapped[a.TradingPair]
			if batch, inBlock := b.swaps[a.TradingPair]; !ok && inBlock {
				sum = [2]uint64{batch.Delta1, batch.Delta2}
			}
			if sum[0] > math.MaxUint64-a.Delta1 || sum[1] > math.MaxUint64-a.Delta2 {
				return fmt.Errorf("action %d: %w: swap batch for %s", i, ErrAmountOverflow, a.TradingPair)
			}
			swapped[a.TradingPair] = [2]uint64{sum[0] + a.Delta1, sum[1] + a.Delta2}

		case *types.Delegate:
			v, err := state.Validator(b.delta, a.Validator)
			if err != nil {
				return fmt.Errorf("action %d: %w", i, err)
			}
			if powerAfter(v, b, power) > math.MaxInt64-a.Amount {
				return fmt.Errorf("action %d: %w: delegating %d to %s", i, ErrAmountOverflow, a.Amount, a.Validator)
			}
			power[a.Validator] += a.Amount

		case *types.Undelegate:
			v, err := state.Validator(b.delta, a.Validator)
			if err != nil {
				return fmt.Errorf("action %d: %w", i, err)
			}
			if powerAfter(v, b, power) < a.Amount {
				return fmt.Errorf("action %d: undelegating %d exceeds voting power of %s",
					i, a.Amount, a.Validator)
			}
			power[a.Validator] -= a.Amount
		}
	}
	return nil
}

// powerAfter is the voting power of v once the block so far and the checked
// part of the current transaction apply. Every step of the sum was range
// checked before it was accepted.
func powerAfter(v types.Validator, b *blockBuilder, pending map[string]int64) int64 {
	return v.VotingPower + b.powerDeltas[v.IdentityKey] + pending[v.IdentityKey]
}

// txEffects are the effects of one transaction, kept apart from the block
// until every action has been applied.
type txEffects struct {
	writes      *store.Layer
	payloads    []types.StatePayload
	nullifiers  []types.Nullifier
	swaps       []*types.Swap
	powerDeltas map[string]int64
	proposal    bool
	events      []abci.Event
}

// applyTx stages the effects of a checked transaction into the block. On
// error the block is left as it was.
func (app *App) applyTx(b *blockBuilder, raw types.Tx, tx *types.Transaction) ([]abci.Event, error) {
	source := types.PayloadSource{Transaction: raw.String()}
	fx := &txEffects{
		writes:      store.NewLayer(b.delta),
		powerDeltas: make(map[string]int64),
		events:      make([]abci.Event, 0, len(tx.Actions)),
	}

	for _, action := range tx.Actions {
		switch a := action.(type) {
		case *types.Output:
			fx.payloads = append(fx.payloads, &types.NotePayload{
				Source:        source,
				Commitment:    a.Commitment,
				EphemeralKey:  a.EphemeralKey,
				EncryptedNote: a.EncryptedNote,
			})
			fx.events = append(fx.events, abci.NewEvent(EventTypeOutput, "note_commitment", a.Commitment.String()))

		case *types.Spend:
			state.SpendNullifier(fx.writes, a.Nullifier, b.height)
			fx.nullifiers = append(fx.nullifiers, a.Nullifier)
			fx.events = append(fx.events, abci.NewEvent(EventTypeSpend, "nullifier", a.Nullifier.String()))

		case *types.Swap:
			fx.swaps = append(fx.swaps, a)
			fx.payloads = append(fx.payloads, &types.SwapPayload{
				Source:        source,
				Commitment:    a.Commitment,
				EncryptedSwap: a.EncryptedSwap,
			})
			fx.events = append(fx.events, abci.NewEvent(EventTypeSwap,
				"trading_pair", a.TradingPair.String(),
				"commitment", a.Commitment.String()))

		case *types.ProposalSubmit:
			id, err := state.SubmitProposal(fx.writes, state.Proposal{
				Title:       a.Title,
				Description: a.Description,
			}, b.height, b.height+b.params.ProposalVotingBlocks)
			if err != nil {
				return nil, err
			}
			fx.proposal = true
			fx.events = append(fx.events, abci.NewEvent(EventTypeProposalSubmit, "proposal_id", fmt.Sprint(id)))

		case *types.Delegate:
			fx.powerDeltas[a.Validator] += a.Amount
			fx.events = append(fx.events, abci.NewEvent(EventTypeDelegate,
				"validator", a.Validator, "amount", fmt.Sprint(a.Amount)))

		case *types.Undelegate:
			fx.powerDeltas[a.Validator] -= a.Amount
			fx.events = append(fx.events, abci.NewEvent(EventTypeUndelegate,
				"validator", a.Validator, "amount", fmt.Sprint(a.Amount)))

		default:
			return nil, fmt.Errorf("unhandled action type %T", a)
		}
	}

	b.merge(fx)
	return fx.events, nil
}

// merge adds the effects of a fully applied transaction to the block.
func (b *blockBuilder) merge(fx *txEffects) {
	fx.writes.Apply()
	b.payloads = append(b.payloads, fx.payloads...)
	b.nullifiers = append(b.nullifiers, fx.nullifiers...)
	for _, s := range fx.swaps {
		batch, ok := b.swaps[s.TradingPair]
		if !ok {
			batch = &types.BatchSwapOutputData{TradingPair: s.TradingPair}
			b.swaps[s.TradingPair] = batch
		}
		batch.Delta1 += s.Delta1
		batch.Delta2 += s.Delta2
	}
	for v, d := range fx.powerDeltas {
		b.powerDeltas[v] += d
	}
	if fx.proposal {
		b.proposalStarted = true
	}
}
