package coregrpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified name of the oblivious query service.
const ServiceName = "compactd.client.v1.ObliviousQueryService"

const (
	methodChainParameters   = "/" + ServiceName + "/ChainParameters"
	methodEpochByHeight     = "/" + ServiceName + "/EpochByHeight"
	methodInfo              = "/" + ServiceName + "/Info"
	methodCompactBlockRange = "/" + ServiceName + "/CompactBlockRange"
	methodValidatorInfo     = "/" + ServiceName + "/ValidatorInfo"
)

// ObliviousQueryServer is the server API of the oblivious query service.
type ObliviousQueryServer interface {
	ChainParameters(context.Context, *ChainParametersRequest) (*ChainParametersResponse, error)
	EpochByHeight(context.Context, *EpochByHeightRequest) (*EpochByHeightResponse, error)
	Info(context.Context, *InfoRequest) (*InfoResponse, error)
	CompactBlockRange(*CompactBlockRangeRequest, ObliviousQueryCompactBlockRangeServer) error
	ValidatorInfo(*ValidatorInfoRequest, ObliviousQueryValidatorInfoServer) error
}

type ObliviousQueryCompactBlockRangeServer interface {
	Send(*CompactBlockRangeResponse) error
	grpc.ServerStream
}

type ObliviousQueryValidatorInfoServer interface {
	Send(*ValidatorInfoResponse) error
	grpc.ServerStream
}

// RegisterObliviousQueryServer registers srv on s.
func RegisterObliviousQueryServer(s *grpc.Server, srv ObliviousQueryServer) {
	s.RegisterService(&obliviousQueryServiceDesc, srv)
}

var obliviousQueryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ObliviousQueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ChainParameters", Handler: chainParametersHandler},
		{MethodName: "EpochByHeight", Handler: epochByHeightHandler},
		{MethodName: "Info", Handler: infoHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "CompactBlockRange", Handler: compactBlockRangeHandler, ServerStreams: true},
		{StreamName: "ValidatorInfo", Handler: validatorInfoHandler, ServerStreams: true},
	},
	Metadata: "compactd/client/v1/oblivious.proto",
}

func chainParametersHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ChainParametersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ObliviousQueryServer).ChainParameters(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodChainParameters}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ObliviousQueryServer).ChainParameters(ctx, req.(*ChainParametersRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func epochByHeightHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(EpochByHeightRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ObliviousQueryServer).EpochByHeight(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodEpochByHeight}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ObliviousQueryServer).EpochByHeight(ctx, req.(*EpochByHeightRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func infoHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(InfoRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ObliviousQueryServer).Info(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodInfo}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ObliviousQueryServer).Info(ctx, req.(*InfoRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func compactBlockRangeHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(CompactBlockRangeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ObliviousQueryServer).CompactBlockRange(in, &compactBlockRangeServer{stream})
}

type compactBlockRangeServer struct {
	grpc.ServerStream
}

func (x *compactBlockRangeServer) Send(m *CompactBlockRangeResponse) error {
	return x.ServerStream.SendMsg(m)
}

func validatorInfoHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(ValidatorInfoRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ObliviousQueryServer).ValidatorInfo(in, &validatorInfoServer{stream})
}

type validatorInfoServer struct {
	grpc.ServerStream
}

func (x *validatorInfoServer) Send(m *ValidatorInfoResponse) error {
	return x.ServerStream.SendMsg(m)
}
