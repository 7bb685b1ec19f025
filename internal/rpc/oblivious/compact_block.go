package oblivious

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-kit/kit/metrics"
	"github.com/google/uuid"

	"github.com/compactchain/compactd/internal/libs/watch"
	"github.com/compactchain/compactd/internal/store"
	"github.com/compactchain/compactd/libs/log"
	"github.com/compactchain/compactd/types"
)

// blockBufferSize is the number of compact blocks buffered per stream before
// the worker blocks on the client.
const blockBufferSize = 10

type CompactBlockRangeRequest struct {
	ChainID     string `json:"chain_id"`
	StartHeight uint64 `json:"start_height"`
	// EndHeight zero means the current height.
	EndHeight uint64 `json:"end_height"`
	KeepAlive bool   `json:"keep_alive"`
}

// BlockResult is one item of a compact block stream. A result with Err set
// is always the last one.
type BlockResult struct {
	Block *types.CompactBlock
	Err   error
}

// CompactBlockRange validates req, resolves its end height and starts a
// worker streaming the requested blocks in height order. The returned
// channel is closed when the stream ends. Cancelling ctx terminates the
// worker.
//
// Without KeepAlive the stream ends after EndHeight. With KeepAlive it
// continues with every block committed afterwards, without gaps.
func (s *Service) CompactBlockRange(ctx context.Context, req *CompactBlockRangeRequest) (<-chan BlockResult, error) {
	end, err := s.resolveEndHeight(req)
	if err != nil {
		return nil, err
	}

	w := &streamWorker{
		logger: s.logger.With(
			"subscription", uuid.New().String(),
			"start_height", req.StartHeight,
			"end_height", end,
			"keep_alive", req.KeepAlive,
		),
		storage:   s.storage,
		metrics:   s.metrics,
		rx:        s.storage.Subscribe(),
		start:     req.StartHeight,
		end:       end,
		keepAlive: req.KeepAlive,
		out:       make(chan BlockResult, blockBufferSize),
	}
	go w.run(ctx)
	return w.out, nil
}

// resolveEndHeight checks the chain id and clamps the requested end height
// to the current height. The snapshot it reads is not retained.
func (s *Service) resolveEndHeight(req *CompactBlockRangeRequest) (uint64, error) {
	snap := s.storage.LatestSnapshot()
	if err := checkChainID(snap, req.ChainID); err != nil {
		return 0, err
	}
	current := snap.Version()
	if req.EndHeight == 0 || req.EndHeight > current {
		return current, nil
	}
	return req.EndHeight, nil
}

// connectionGuard holds one unit of the active connections gauge until
// Release.
type connectionGuard struct {
	gauge metrics.Gauge
	once  sync.Once
}

func acquireConnection(gauge metrics.Gauge) *connectionGuard {
	gauge.Add(1)
	return &connectionGuard{gauge: gauge}
}

// Release gives the unit back. Only the first call has an effect.
func (g *connectionGuard) Release() {
	g.once.Do(func() { g.gauge.Add(-1) })
}

type streamWorker struct {
	logger  log.Logger
	storage Storage
	metrics *Metrics
	rx      *watch.Receiver[*store.Snapshot]

	start     uint64
	end       uint64
	keepAlive bool

	out chan BlockResult
}

func (w *streamWorker) run(ctx context.Context) {
	guard := acquireConnection(w.metrics.ActiveConnections)
	defer close(w.out)
	defer guard.Release()

	err := w.stream(ctx)
	switch {
	case err == nil:
		w.logger.Debug("compact block stream finished")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		w.logger.Debug("client closed compact block stream")
	case errors.Is(err, watch.ErrClosed):
		w.logger.Debug("store closed, ending compact block stream")
	default:
		w.logger.Error("compact block stream failed", "err", err)
		_ = w.sendResult(ctx, BlockResult{Err: fmt.Errorf("%w: %v", ErrStreamAborted, err)})
	}
}

func (w *streamWorker) stream(ctx context.Context) error {
	next, err := w.catchUp(ctx)
	if err != nil || !w.keepAlive {
		return err
	}

	// bridge the blocks committed while catching up
	snap := w.rx.BorrowAndUpdate()
	w.logger.Debug("caught up, continuing to stream blocks", "current_height", snap.Version())
	next, err = w.sendRange(ctx, snap, next)
	if err != nil {
		return err
	}
	return w.live(ctx, next)
}

// catchUp streams the blocks from the start height up to the end height and
// returns the first height the live phases must send.
func (w *streamWorker) catchUp(ctx context.Context) (uint64, error) {
	next := w.start
	blocks := w.storage.LatestSnapshot().StreamCompactBlocks(w.start)
	for {
		cb, err := blocks.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return next, fmt.Errorf("streaming compact blocks: %w", err)
		}
		if cb.Height > w.end {
			break
		}
		if err := w.send(ctx, cb); err != nil {
			return next, err
		}
		next = cb.Height + 1
	}
	if w.end+1 > next {
		next = w.end + 1
	}
	return next, nil
}

// live waits for new versions and streams every height not yet sent.
func (w *streamWorker) live(ctx context.Context, next uint64) error {
	for {
		if err := w.rx.Changed(ctx); err != nil {
			return err
		}
		var err error
		next, err = w.sendRange(ctx, w.rx.Borrow(), next)
		if err != nil {
			return err
		}
	}
}

// sendRange sends the blocks from next up to the version of snap and returns
// the height following the last one sent. Every height in the range must be
// present in snap.
func (w *streamWorker) sendRange(ctx context.Context, snap *store.Snapshot, next uint64) (uint64, error) {
	if !snap.IsInitialized() {
		return next, nil
	}
	for ; next <= snap.Version(); next++ {
		cb, err := snap.CompactBlock(next)
		if err != nil {
			return next, fmt.Errorf("reading compact block %d: %w", next, err)
		}
		if cb == nil {
			panic(fmt.Sprintf("compact block %d missing from snapshot at version %d", next, snap.Version()))
		}
		if err := w.send(ctx, cb); err != nil {
			return next, err
		}
	}
	return next, nil
}

// send blocks until cb is buffered or ctx is done.
func (w *streamWorker) send(ctx context.Context, cb *types.CompactBlock) error {
	if err := w.sendResult(ctx, BlockResult{Block: cb}); err != nil {
		return err
	}
	w.metrics.BlocksServed.Add(1)
	return nil
}

func (w *streamWorker) sendResult(ctx context.Context, res BlockResult) error {
	select {
	case w.out <- res:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
