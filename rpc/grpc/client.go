package coregrpc

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	grpc_retry "github.com/grpc-ecosystem/go-grpc-middleware/retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// ObliviousQueryClient is the client API of the oblivious query service.
type ObliviousQueryClient interface {
	ChainParameters(ctx context.Context, in *ChainParametersRequest, opts ...grpc.CallOption) (*ChainParametersResponse, error)
	EpochByHeight(ctx context.Context, in *EpochByHeightRequest, opts ...grpc.CallOption) (*EpochByHeightResponse, error)
	Info(ctx context.Context, in *InfoRequest, opts ...grpc.CallOption) (*InfoResponse, error)
	CompactBlockRange(ctx context.Context, in *CompactBlockRangeRequest, opts ...grpc.CallOption) (CompactBlockRangeClient, error)
	ValidatorInfo(ctx context.Context, in *ValidatorInfoRequest, opts ...grpc.CallOption) (ValidatorInfoClient, error)
}

type CompactBlockRangeClient interface {
	Recv() (*CompactBlockRangeResponse, error)
	grpc.ClientStream
}

type ValidatorInfoClient interface {
	Recv() (*ValidatorInfoResponse, error)
	grpc.ClientStream
}

// ConstructDialOptions returns the options used to dial a compactd gRPC
// server: keepalive pings, exponential retries of unary calls on
// Unavailable, and the JSON codec.
func ConstructDialOptions() []grpc.DialOption {
	retryOpts := []grpc_retry.CallOption{
		grpc_retry.WithBackoff(grpc_retry.BackoffExponential(100 * time.Millisecond)),
		grpc_retry.WithCodes(codes.Unavailable),
	}
	return []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    10 * time.Second,
			Timeout: 2 * time.Second,
		}),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(10<<20),
			grpc.CallContentSubtype(CodecName),
			grpc_retry.WithMax(5),
		),
		grpc.WithUnaryInterceptor(grpc_retry.UnaryClientInterceptor(retryOpts...)),
	}
}

// Dial connects to the server at protoAddr ("tcp://host:port" or
// "unix:///path").
func Dial(ctx context.Context, protoAddr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	proto, addr := ProtocolAndAddress(protoAddr)
	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, proto, addr)
	}
	opts = append(ConstructDialOptions(), append(opts, grpc.WithContextDialer(dialer))...)
	return grpc.DialContext(ctx, addr, opts...)
}

type obliviousQueryClient struct {
	cc grpc.ClientConnInterface
}

// NewObliviousQueryClient returns a client using cc. The connection must use
// the JSON codec, see ConstructDialOptions.
func NewObliviousQueryClient(cc grpc.ClientConnInterface) ObliviousQueryClient {
	return &obliviousQueryClient{cc}
}

func (c *obliviousQueryClient) ChainParameters(ctx context.Context, in *ChainParametersRequest, opts ...grpc.CallOption) (*ChainParametersResponse, error) {
	out := new(ChainParametersResponse)
	if err := c.cc.Invoke(ctx, methodChainParameters, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *obliviousQueryClient) EpochByHeight(ctx context.Context, in *EpochByHeightRequest, opts ...grpc.CallOption) (*EpochByHeightResponse, error) {
	out := new(EpochByHeightResponse)
	if err := c.cc.Invoke(ctx, methodEpochByHeight, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *obliviousQueryClient) Info(ctx context.Context, in *InfoRequest, opts ...grpc.CallOption) (*InfoResponse, error) {
	out := new(InfoResponse)
	if err := c.cc.Invoke(ctx, methodInfo, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *obliviousQueryClient) CompactBlockRange(ctx context.Context, in *CompactBlockRangeRequest, opts ...grpc.CallOption) (CompactBlockRangeClient, error) {
	stream, err := c.cc.NewStream(ctx, &obliviousQueryServiceDesc.Streams[0], methodCompactBlockRange, opts...)
	if err != nil {
		return nil, err
	}
	x := &compactBlockRangeClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type compactBlockRangeClient struct {
	grpc.ClientStream
}

func (x *compactBlockRangeClient) Recv() (*CompactBlockRangeResponse, error) {
	m := new(CompactBlockRangeResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *obliviousQueryClient) ValidatorInfo(ctx context.Context, in *ValidatorInfoRequest, opts ...grpc.CallOption) (ValidatorInfoClient, error) {
	stream, err := c.cc.NewStream(ctx, &obliviousQueryServiceDesc.Streams[1], methodValidatorInfo, opts...)
	if err != nil {
		return nil, err
	}
	x := &validatorInfoClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type validatorInfoClient struct {
	grpc.ClientStream
}

func (x *validatorInfoClient) Recv() (*ValidatorInfoResponse, error) {
	m := new(ValidatorInfoResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// CollectValidatorInfo drains a ValidatorInfo stream.
func CollectValidatorInfo(stream ValidatorInfoClient) ([]*ValidatorInfoResponse, error) {
	var out []*ValidatorInfoResponse
	for {
		m, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
}
