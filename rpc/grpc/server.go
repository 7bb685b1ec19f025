package coregrpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"golang.org/x/net/netutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/compactchain/compactd/internal/rpc/oblivious"
	"github.com/compactchain/compactd/libs/log"
)

// Config is a gRPC server configuration.
type Config struct {
	// MaxOpenConnections limits the number of accepted connections. Zero
	// means no limit.
	MaxOpenConnections int
	// Metrics enables the grpc_prometheus interceptors.
	Metrics bool
}

// NewServer returns a gRPC server exposing svc. Handler panics are turned
// into Internal errors.
func NewServer(svc *oblivious.Service, logger log.Logger, cfg Config) *grpc.Server {
	recoveryOpts := []grpc_recovery.Option{
		grpc_recovery.WithRecoveryHandler(func(p interface{}) error {
			logger.Error("panic in grpc handler", "panic", p)
			return status.Errorf(codes.Internal, "internal error")
		}),
	}
	unary := []grpc.UnaryServerInterceptor{grpc_recovery.UnaryServerInterceptor(recoveryOpts...)}
	stream := []grpc.StreamServerInterceptor{grpc_recovery.StreamServerInterceptor(recoveryOpts...)}
	if cfg.Metrics {
		unary = append([]grpc.UnaryServerInterceptor{grpc_prometheus.UnaryServerInterceptor}, unary...)
		stream = append([]grpc.StreamServerInterceptor{grpc_prometheus.StreamServerInterceptor}, stream...)
	}

	srv := grpc.NewServer(
		grpc_middleware.WithUnaryServerChain(unary...),
		grpc_middleware.WithStreamServerChain(stream...),
	)
	RegisterObliviousQueryServer(srv, &obliviousQueryServer{svc: svc, logger: logger})
	if cfg.Metrics {
		grpc_prometheus.Register(srv)
	}
	return srv
}

// Serve accepts connections on ln until srv is stopped.
// NOTE: This function blocks - you may want to call it in a go-routine.
func Serve(srv *grpc.Server, ln net.Listener, cfg Config) error {
	if cfg.MaxOpenConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxOpenConnections)
	}
	return srv.Serve(ln)
}

// Listen opens a listener for a "proto://address" string. The protocol
// defaults to tcp.
func Listen(listenAddr string) (net.Listener, error) {
	proto, addr := ProtocolAndAddress(listenAddr)
	ln, err := net.Listen(proto, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %v: %w", listenAddr, err)
	}
	return ln, nil
}

// ProtocolAndAddress splits an address into the protocol and address
// components. For instance, "tcp://127.0.0.1:8080" will be split into "tcp"
// and "127.0.0.1:8080". If the address has no protocol prefix, the default is
// "tcp".
func ProtocolAndAddress(listenAddr string) (string, string) {
	protocol, address := "tcp", listenAddr
	parts := strings.SplitN(address, "://", 2)
	if len(parts) == 2 {
		protocol, address = parts[0], parts[1]
	}
	return protocol, address
}

// obliviousQueryServer adapts oblivious.Service to the gRPC service.
type obliviousQueryServer struct {
	svc    *oblivious.Service
	logger log.Logger
}

var _ ObliviousQueryServer = (*obliviousQueryServer)(nil)

func (s *obliviousQueryServer) ChainParameters(ctx context.Context, req *ChainParametersRequest) (*ChainParametersResponse, error) {
	params, err := s.svc.ChainParameters(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ChainParametersResponse{ChainParameters: params}, nil
}

func (s *obliviousQueryServer) EpochByHeight(ctx context.Context, req *EpochByHeightRequest) (*EpochByHeightResponse, error) {
	epoch, err := s.svc.EpochByHeight(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return &EpochByHeightResponse{Epoch: epoch}, nil
}

func (s *obliviousQueryServer) Info(ctx context.Context, req *InfoRequest) (*InfoResponse, error) {
	resp, err := s.svc.Info(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

func (s *obliviousQueryServer) ValidatorInfo(req *ValidatorInfoRequest, stream ObliviousQueryValidatorInfoServer) error {
	infos, err := s.svc.ValidatorInfo(stream.Context(), req)
	if err != nil {
		return toStatus(err)
	}
	for i := range infos {
		if err := stream.Send(&ValidatorInfoResponse{ValidatorInfo: &infos[i]}); err != nil {
			return err
		}
	}
	return nil
}

func (s *obliviousQueryServer) CompactBlockRange(req *CompactBlockRangeRequest, stream ObliviousQueryCompactBlockRangeServer) error {
	// The worker stops once ctx is cancelled, whichever side ends first.
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	results, err := s.svc.CompactBlockRange(ctx, req)
	if err != nil {
		return toStatus(err)
	}
	for res := range results {
		if res.Err != nil {
			return toStatus(res.Err)
		}
		if err := stream.Send(&CompactBlockRangeResponse{CompactBlock: res.Block}); err != nil {
			s.logger.Debug("failed to send compact block", "height", res.Block.Height, "err", err)
			return err
		}
	}
	return ctx.Err()
}

// toStatus maps service errors to gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, oblivious.ErrChainIDMismatch):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, oblivious.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, oblivious.ErrStreamAborted):
		return status.Error(codes.Internal, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Unknown, err.Error())
	}
}
