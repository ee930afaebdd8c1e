package registry

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "recordkeep.registry.v1.RecordRegistry"

// RegistryServer is the server API for the RecordRegistry service. Every
// message is a google.protobuf.Struct.
type RegistryServer interface {
	CreateRecord(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateRecord(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TransferOwnership(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TotalRecordCount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FetchTaxonomy(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FetchOperator(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FetchGenesisBlock(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FetchMetric(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FetchNotes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FetchMetadata(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FetchFullRecord(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckAccessPermission(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyProtocolAuthority(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyRecordOwnership(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRecords(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRecordEvents(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(RegistryServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// ServiceDesc describes RecordRegistry for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		methodDesc("CreateRecord", RegistryServer.CreateRecord),
		methodDesc("UpdateRecord", RegistryServer.UpdateRecord),
		methodDesc("TransferOwnership", RegistryServer.TransferOwnership),
		methodDesc("TotalRecordCount", RegistryServer.TotalRecordCount),
		methodDesc("FetchTaxonomy", RegistryServer.FetchTaxonomy),
		methodDesc("FetchOperator", RegistryServer.FetchOperator),
		methodDesc("FetchGenesisBlock", RegistryServer.FetchGenesisBlock),
		methodDesc("FetchMetric", RegistryServer.FetchMetric),
		methodDesc("FetchNotes", RegistryServer.FetchNotes),
		methodDesc("FetchMetadata", RegistryServer.FetchMetadata),
		methodDesc("FetchFullRecord", RegistryServer.FetchFullRecord),
		methodDesc("CheckAccessPermission", RegistryServer.CheckAccessPermission),
		methodDesc("VerifyProtocolAuthority", RegistryServer.VerifyProtocolAuthority),
		methodDesc("VerifyRecordOwnership", RegistryServer.VerifyRecordOwnership),
		methodDesc("ListRecords", RegistryServer.ListRecords),
		methodDesc("ListRecordEvents", RegistryServer.ListRecordEvents),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "recordkeep/registry/v1/registry.proto",
}

// RegisterRegistryServer registers srv with s.
func RegisterRegistryServer(s grpc.ServiceRegistrar, srv RegistryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func methodDesc(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(RegistryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(RegistryServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
