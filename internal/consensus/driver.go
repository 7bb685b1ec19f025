// Package consensus serializes consensus-engine requests into the
// application state machine.
package consensus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	abci "github.com/compactchain/compactd/abci/types"
	"github.com/compactchain/compactd/internal/store"
	"github.com/compactchain/compactd/libs/log"
	"github.com/compactchain/compactd/libs/service"
	"github.com/compactchain/compactd/types"
)

var (
	// ErrHalted is returned by Submit once the driver has hit a fatal error.
	ErrHalted = errors.New("consensus driver halted")
	// ErrStopped is returned by Submit once the driver has been stopped.
	ErrStopped = errors.New("consensus driver stopped")
	// ErrAlreadyInitialized is the fatal error of a second InitChain.
	ErrAlreadyInitialized = errors.New("init chain on an initialized store")
)

// PlaceholderAppHash is returned by InitChain. The first meaningful hash is
// the one returned by the first Commit.
var PlaceholderAppHash = bytes.Repeat([]byte{0xFF}, 32)

// VersionReader reports the latest committed store version.
type VersionReader interface {
	LatestVersion() uint64
}

// FatalHandler is invoked with the error that halted the driver.
type FatalHandler func(error)

// Message is a request travelling through the driver queue together with
// the channel its response is delivered on.
type Message struct {
	Request abci.Request

	resp   chan abci.Response
	ctx    context.Context
	logger log.Logger
}

// Driver applies consensus requests to the application one at a time, in
// submission order, from a single goroutine.
type Driver struct {
	service.BaseService
	logger log.Logger

	app     abci.Application
	store   VersionReader
	metrics *Metrics
	fatal   FatalHandler

	queue    chan *Message
	halted   chan struct{}
	haltOnce sync.Once
}

// DriverOption sets an optional parameter on the Driver.
type DriverOption func(*Driver)

// WithMetrics sets the driver metrics.
func WithMetrics(m *Metrics) DriverOption {
	return func(d *Driver) { d.metrics = m }
}

// WithFatalHandler replaces the default fatal handler, which panics.
func WithFatalHandler(h FatalHandler) DriverOption {
	return func(d *Driver) { d.fatal = h }
}

// NewDriver returns a driver feeding app. queueSize bounds the number of
// requests waiting behind the one being handled.
func NewDriver(logger log.Logger, app abci.Application, st VersionReader, queueSize int, opts ...DriverOption) *Driver {
	if queueSize < 0 {
		queueSize = 0
	}
	d := &Driver{
		logger:  logger,
		app:     app,
		store:   st,
		metrics: NopMetrics(),
		queue:   make(chan *Message, queueSize),
		halted:  make(chan struct{}),
	}
	d.fatal = defaultFatal
	for _, opt := range opts {
		opt(d)
	}
	d.BaseService = *service.NewBaseService(logger, "ConsensusDriver", d)
	return d
}

// OnStart implements service.Service.
func (d *Driver) OnStart(ctx context.Context) error {
	go d.run(ctx)
	return nil
}

// OnStop implements service.Service.
func (d *Driver) OnStop() {}

// Halted returns a channel closed once the driver hits a fatal error.
func (d *Driver) Halted() <-chan struct{} { return d.halted }

// Submit enqueues req and blocks until its response is ready. Once the
// request is enqueued it is always handled; cancelling ctx only abandons the
// wait for queue capacity.
func (d *Driver) Submit(ctx context.Context, req abci.Request) (abci.Response, error) {
	if req == nil {
		return nil, errors.New("nil consensus request")
	}
	msg := &Message{
		Request: req,
		resp:    make(chan abci.Response, 1),
		ctx:     ctx,
		logger:  d.logger.With("phase", req.Phase().String()),
	}

	select {
	case <-d.halted:
		return nil, ErrHalted
	case <-d.Quit():
		return nil, ErrStopped
	default:
	}

	select {
	case d.queue <- msg:
	case <-d.halted:
		return nil, ErrHalted
	case <-d.Quit():
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-msg.resp:
		return resp, nil
	case <-d.halted:
		return nil, ErrHalted
	case <-d.Quit():
		return nil, ErrStopped
	}
}

func (d *Driver) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.Quit():
			return
		case msg := <-d.queue:
			resp, err := d.handle(msg)
			if err != nil {
				d.halt(fmt.Errorf("%s: %w", msg.Request.Phase(), err))
				return
			}
			msg.resp <- resp
		}
	}
}

// halt stops the driver for good. Waiting and future submitters are
// released with ErrHalted before the fatal handler runs.
func (d *Driver) halt(err error) {
	d.haltOnce.Do(func() { close(d.halted) })
	d.logger.Error("consensus driver halted", "err", err)
	d.fatal(err)
}

func defaultFatal(err error) {
	panic(fmt.Sprintf("fatal consensus error: %v", err))
}

// handle applies one request. A returned error is fatal.
func (d *Driver) handle(msg *Message) (abci.Response, error) {
	phase := msg.Request.Phase()
	defer func(start time.Time) {
		d.metrics.MethodTiming.With("method", phase.String()).Observe(time.Since(start).Seconds())
	}(time.Now())

	switch req := msg.Request.(type) {
	case *abci.RequestInitChain:
		return d.initChain(msg.ctx, req)

	case *abci.RequestBeginBlock:
		events, err := d.app.BeginBlock(msg.ctx, req)
		if err != nil {
			return nil, err
		}
		return &abci.ResponseBeginBlock{Events: events}, nil

	case *abci.RequestDeliverTx:
		events, err := d.app.DeliverTx(msg.ctx, req.Tx)
		if err != nil {
			msg.logger.Debug("rejected transaction", "tx", types.Tx(req.Tx).String(), "err", err)
			return &abci.ResponseDeliverTx{
				Code: abci.CodeTypeRejected,
				Log:  err.Error(),
			}, nil
		}
		return &abci.ResponseDeliverTx{Code: abci.CodeTypeOK, Events: events}, nil

	case *abci.RequestEndBlock:
		events, err := d.app.EndBlock(msg.ctx, req)
		if err != nil {
			return nil, err
		}
		// after EndBlock, so power changes of this block are included
		return &abci.ResponseEndBlock{
			ValidatorUpdates: d.app.ValidatorUpdates(),
			Events:           events,
		}, nil

	case *abci.RequestCommit:
		appHash, err := d.app.Commit(msg.ctx)
		if err != nil {
			return nil, err
		}
		msg.logger.Debug("committed", "app_hash", fmt.Sprintf("%X", appHash))
		return &abci.ResponseCommit{Data: appHash}, nil

	default:
		return nil, fmt.Errorf("unknown consensus request %T", req)
	}
}

func (d *Driver) initChain(ctx context.Context, req *abci.RequestInitChain) (abci.Response, error) {
	if v := d.store.LatestVersion(); v != store.UninitializedVersion {
		return nil, fmt.Errorf("%w: store at version %d", ErrAlreadyInitialized, v)
	}
	appState, err := types.AppStateFromJSON(req.AppStateBytes)
	if err != nil {
		return nil, err
	}
	if err := d.app.InitChain(ctx, req, appState); err != nil {
		return nil, err
	}
	return &abci.ResponseInitChain{
		Validators: d.app.ValidatorUpdates(),
		AppHash:    PlaceholderAppHash,
	}, nil
}
