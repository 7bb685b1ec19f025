package types

import (
	"context"

	"github.com/compactchain/compactd/types"
)

//go:generate mockery --case underscore --name Application

// Application is the deterministic state machine driven by the consensus
// driver. Calls are never concurrent; every method is invoked from the
// driver's single worker goroutine in block order.
type Application interface {
	// InitChain applies the genesis state. It is called exactly once.
	InitChain(ctx context.Context, req *RequestInitChain, appState *types.AppState) error
	// BeginBlock starts a new height and returns the block-start events.
	BeginBlock(ctx context.Context, req *RequestBeginBlock) ([]Event, error)
	// DeliverTx applies one transaction. An error rejects only that
	// transaction.
	DeliverTx(ctx context.Context, tx []byte) ([]Event, error)
	// EndBlock finalizes the height.
	EndBlock(ctx context.Context, req *RequestEndBlock) ([]Event, error)
	// Commit persists the height and returns the resulting application hash.
	Commit(ctx context.Context) ([]byte, error)
	// ValidatorUpdates returns the complete validator set with current
	// consensus power.
	ValidatorUpdates() []ValidatorUpdate
}
