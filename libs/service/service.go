// Package service provides the start/stop lifecycle shared by the long
// running components of a node.
package service

import (
	"context"
	"errors"
	"sync"

	"github.com/compactchain/compactd/libs/log"
)

var (
	// ErrAlreadyStarted is returned by Start on a service that was started
	// before, whether or not it is still running.
	ErrAlreadyStarted = errors.New("already started")
	// ErrAlreadyStopped is returned by Stop on a stopped service.
	ErrAlreadyStopped = errors.New("already stopped")
	// ErrNotStarted is returned by Stop on a service that was never started.
	ErrNotStarted = errors.New("not started")
)

// Service can be started once, stopped once and waited on.
type Service interface {
	// Start runs the service until Stop is called or ctx is done.
	Start(context.Context) error
	Stop() error
	IsRunning() bool
	String() string
	// Wait blocks until the service is stopped.
	Wait()
}

// Implementation is the component a BaseService drives.
type Implementation interface {
	Service

	// OnStart is called once by Start. Work it spawns must end when ctx is
	// done.
	OnStart(context.Context) error
	// OnStop is called once, on Stop or when the start context is done.
	OnStop()
}

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// BaseService implements the Service bookkeeping for an Implementation that
// embeds it:
//
//	type Worker struct {
//		service.BaseService
//	}
//
//	func NewWorker(logger log.Logger) *Worker {
//		w := &Worker{}
//		w.BaseService = *service.NewBaseService(logger, "Worker", w)
//		return w
//	}
type BaseService struct {
	logger log.Logger
	name   string
	impl   Implementation

	mtx   sync.Mutex
	state state
	quit  chan struct{}
}

// NewBaseService returns a BaseService driving impl.
func NewBaseService(logger log.Logger, name string, impl Implementation) *BaseService {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &BaseService{
		logger: logger,
		name:   name,
		impl:   impl,
		quit:   make(chan struct{}),
	}
}

// Start calls OnStart and stops the service once ctx is done. When OnStart
// fails the service stays idle and may be started again.
func (bs *BaseService) Start(ctx context.Context) error {
	bs.mtx.Lock()
	if bs.state != stateIdle {
		bs.mtx.Unlock()
		return ErrAlreadyStarted
	}
	bs.logger.Info("starting service", "service", bs.name)
	if err := bs.impl.OnStart(ctx); err != nil {
		bs.mtx.Unlock()
		return err
	}
	bs.state = stateRunning
	bs.mtx.Unlock()

	go func() {
		select {
		case <-bs.quit:
		case <-ctx.Done():
			if err := bs.Stop(); err != nil && !errors.Is(err, ErrAlreadyStopped) {
				bs.logger.Error("failed to stop service", "service", bs.name, "err", err)
			}
		}
	}()
	return nil
}

// Stop calls OnStop and releases Wait.
func (bs *BaseService) Stop() error {
	bs.mtx.Lock()
	defer bs.mtx.Unlock()
	switch bs.state {
	case stateIdle:
		bs.logger.Error("not stopping service; not started yet", "service", bs.name)
		return ErrNotStarted
	case stateStopped:
		return ErrAlreadyStopped
	}
	bs.logger.Info("stopping service", "service", bs.name)
	bs.impl.OnStop()
	bs.state = stateStopped
	close(bs.quit)
	return nil
}

// IsRunning reports whether the service was started and not yet stopped.
func (bs *BaseService) IsRunning() bool {
	bs.mtx.Lock()
	defer bs.mtx.Unlock()
	return bs.state == stateRunning
}

// Quit returns a channel closed when the service stops.
func (bs *BaseService) Quit() <-chan struct{} { return bs.quit }

// Wait blocks until the service is stopped.
func (bs *BaseService) Wait() { <-bs.quit }

func (bs *BaseService) String() string { return bs.name }
