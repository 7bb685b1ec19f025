// Package node wires the state store, application, consensus driver and the
// network servers of a compactd node.
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	tmservice "github.com/tendermint/tendermint/libs/service"
	dbm "github.com/tendermint/tm-db"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/compactchain/compactd/config"
	"github.com/compactchain/compactd/internal/app"
	"github.com/compactchain/compactd/internal/consensus"
	"github.com/compactchain/compactd/internal/proxy"
	"github.com/compactchain/compactd/internal/rpc/oblivious"
	"github.com/compactchain/compactd/internal/store"
	"github.com/compactchain/compactd/libs/log"
	coregrpc "github.com/compactchain/compactd/rpc/grpc"
)

// Node is a compactd full node.
type Node struct {
	config *config.Config
	logger log.Logger

	store      *store.Store
	driver     *consensus.Driver
	abciServer tmservice.Service
	grpcServer *grpc.Server

	fatalErr chan error
}

// New builds a node from cfg. Nothing is started until Run.
func New(cfg *config.Config, logger log.Logger) (*Node, error) {
	db, err := cfg.OpenStateDB()
	if err != nil {
		return nil, fmt.Errorf("failed to open state db: %w", err)
	}
	n, err := newNode(cfg, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return n, nil
}

func newNode(cfg *config.Config, db dbm.DB, logger log.Logger) (*Node, error) {
	st, err := store.NewStore(db, logger)
	if err != nil {
		return nil, err
	}
	application, err := app.New(st, logger)
	if err != nil {
		return nil, err
	}

	consensusMetrics, obliviousMetrics := consensus.NopMetrics(), oblivious.NopMetrics()
	if cfg.Instrumentation.Prometheus {
		consensusMetrics = consensus.PrometheusMetrics(cfg.Instrumentation.Namespace)
		obliviousMetrics = oblivious.PrometheusMetrics(cfg.Instrumentation.Namespace)
	}

	n := &Node{
		config:   cfg,
		logger:   logger,
		store:    st,
		fatalErr: make(chan error, 1),
	}
	n.driver = consensus.NewDriver(
		logger.With("module", "consensus"),
		application,
		st,
		cfg.Consensus.QueueSize,
		consensus.WithMetrics(consensusMetrics),
		consensus.WithFatalHandler(n.onFatal),
	)

	abciApp := proxy.NewApplication(n.driver, st, logger)
	n.abciServer, err = proxy.NewServer(cfg.ABCI.ListenAddress, cfg.ABCI.Transport, abciApp, logger)
	if err != nil {
		return nil, err
	}

	svc := oblivious.NewService(st, logger, obliviousMetrics)
	n.grpcServer = coregrpc.NewServer(svc, logger.With("module", "grpc"), coregrpc.Config{
		MaxOpenConnections: cfg.GRPC.MaxOpenConnections,
		Metrics:            cfg.Instrumentation.Prometheus,
	})
	return n, nil
}

// onFatal shuts the node down with err. The driver has already halted.
func (n *Node) onFatal(err error) {
	select {
	case n.fatalErr <- err:
	default:
	}
}

// Store returns the state store of the node.
func (n *Node) Store() *store.Store { return n.store }

// Run starts the node and blocks until ctx is canceled or a component
// fails. A fatal consensus error is returned as is.
func (n *Node) Run(ctx context.Context) error {
	defer n.close()

	g, gctx := errgroup.WithContext(ctx)
	if err := n.driver.Start(gctx); err != nil {
		return err
	}
	if err := n.abciServer.Start(); err != nil {
		return fmt.Errorf("failed to start abci server: %w", err)
	}
	n.logger.Info("abci server started", "address", n.config.ABCI.ListenAddress, "transport", n.config.ABCI.Transport)

	ln, err := coregrpc.Listen(n.config.GRPC.ListenAddress)
	if err != nil {
		_ = n.abciServer.Stop()
		return err
	}

	g.Go(func() error {
		n.logger.Info("gRPC server starting", "address", ln.Addr().String())
		err := coregrpc.Serve(n.grpcServer, ln, coregrpc.Config{MaxOpenConnections: n.config.GRPC.MaxOpenConnections})
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			n.logger.Error("gRPC server stopped with error", "err", err)
			return err
		}
		n.logger.Info("gRPC server stopped")
		return nil
	})
	if n.config.Instrumentation.Prometheus {
		g.Go(func() error { return n.servePrometheus(gctx) })
	}
	g.Go(func() error {
		select {
		case err := <-n.fatalErr:
			return err
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		// Stop, not GracefulStop: keep-alive streams never finish on their own.
		n.grpcServer.Stop()
		if err := n.abciServer.Stop(); err != nil {
			n.logger.Error("failed to stop abci server", "err", err)
		}
		return nil
	})

	return g.Wait()
}

func (n *Node) servePrometheus(ctx context.Context) error {
	addr := n.config.Instrumentation.PrometheusListenAddr
	srv := &http.Server{
		Addr:              addr,
		Handler:           metricsHandler(n.config.Instrumentation),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	n.logger.Info("prometheus server starting", "address", addr)
	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		n.logger.Error("prometheus server stopped with error", "err", err)
		return err
	}
	return nil
}

func (n *Node) close() {
	if n.driver.IsRunning() {
		if err := n.driver.Stop(); err != nil {
			n.logger.Error("failed to stop consensus driver", "err", err)
		}
	}
	// closes the db as well
	if err := n.store.Close(); err != nil {
		n.logger.Error("failed to close store", "err", err)
	}
}

// metricsHandler serves the default Prometheus registry under /metrics.
func metricsHandler(cfg *config.InstrumentationConfig) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer, promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{MaxRequestsInFlight: cfg.MaxOpenConnections},
		),
	))
	return mux
}
