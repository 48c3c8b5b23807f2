// Package grpcstore serves and consumes contracts over gRPC.
//
// The service uses protobuf well-known wrapper types so it needs no codegen:
//
//	service ContractStore {
//	  rpc Fetch(google.protobuf.BytesValue) returns (google.protobuf.BytesValue);
//	}
//
// The request carries the 32-byte contract identifier, the response the canonical
// contract encoding. Unknown contracts answer NotFound.
package grpcstore

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "docbatch.contractstore.v1.ContractStore"

	// fetchMethod is the full method name of Fetch.
	fetchMethod = "/" + ServiceName + "/Fetch"
)

// ContractStoreServer is the server API of the service.
type ContractStoreServer interface {
	Fetch(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

// RegisterContractStoreServer registers the service on a gRPC server.
func RegisterContractStoreServer(s grpc.ServiceRegistrar, srv ContractStoreServer) {
	s.RegisterService(&serviceDesc, srv)
}

func fetchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ContractStoreServer).Fetch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fetchMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ContractStoreServer).Fetch(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// serviceDesc is the grpc.ServiceDesc of the ContractStore service.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ContractStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Fetch", Handler: fetchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "contractstore.proto",
}
