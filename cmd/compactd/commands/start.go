package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/compactchain/compactd/config"
	"github.com/compactchain/compactd/libs/log"
	"github.com/compactchain/compactd/node"
)

// AddNodeFlags exposes some common configuration options on the command-line.
func AddNodeFlags(cmd *cobra.Command, conf *config.Config) {
	// db flags
	cmd.Flags().String("db_backend", conf.DBBackend, "database backend: goleveldb | cleveldb | boltdb | rocksdb | badgerdb | memdb")
	cmd.Flags().String("db_dir", conf.DBPath, "database directory")

	// abci flags
	cmd.Flags().String("abci.laddr", conf.ABCI.ListenAddress, "ABCI listen address")
	cmd.Flags().String("abci.transport", conf.ABCI.Transport, "ABCI transport (socket | grpc)")

	// grpc flags
	cmd.Flags().String("grpc.laddr", conf.GRPC.ListenAddress, "light client gRPC listen address")
	cmd.Flags().Int("grpc.max_open_connections", conf.GRPC.MaxOpenConnections, "maximum number of gRPC connections (0 = unlimited)")

	// consensus flags
	cmd.Flags().Int("consensus.queue_size", conf.Consensus.QueueSize, "consensus requests that may wait behind the one being applied")

	// instrumentation flags
	cmd.Flags().Bool("instrumentation.prometheus", conf.Instrumentation.Prometheus, "serve Prometheus metrics")
	cmd.Flags().String("instrumentation.prometheus_listen_addr", conf.Instrumentation.PrometheusListenAddr, "Prometheus listen address")
	cmd.Flags().Int("instrumentation.max_open_connections", conf.Instrumentation.MaxOpenConnections,
		"maximum number of simultaneous /metrics requests (0 = unlimited)")
}

// MakeStartCommand returns the command running a node until it is
// interrupted or a fatal consensus error occurs.
func MakeStartCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"node", "run"},
		Short:   "Run the compactd node",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			n, err := node.New(conf, logger)
			if err != nil {
				return err
			}
			logger.Info("starting node", "height", heightString(n.Store().LatestVersion()))
			if err := n.Run(ctx); err != nil {
				logger.Error("node stopped with error", "err", err)
				return err
			}
			logger.Info("node stopped")
			return nil
		},
	}
	AddNodeFlags(cmd, conf)
	return cmd
}
