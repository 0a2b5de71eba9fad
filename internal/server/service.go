package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "versealign.v1.Alignment"

// AlignmentServer is the server API for the Alignment service.
type AlignmentServer interface {
	ListCorpora(context.Context, *ListCorporaRequest) (*ListCorporaResponse, error)
	Search(context.Context, *SearchRequest) (*SearchResponse, error)
	FetchVerses(context.Context, *FetchVersesRequest) (*FetchVersesResponse, error)
	FetchWindow(context.Context, *FetchWindowRequest) (*WindowResponse, error)
	LookupReference(context.Context, *LookupReferenceRequest) (*WindowResponse, error)
	Resolve(context.Context, *ResolveRequest) (*ResolveResponse, error)
	LookupMedia(context.Context, *LookupMediaRequest) (*LookupMediaResponse, error)
}

// UnimplementedAlignmentServer returns Unimplemented for every method.
type UnimplementedAlignmentServer struct{}

func (UnimplementedAlignmentServer) ListCorpora(context.Context, *ListCorporaRequest) (*ListCorporaResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListCorpora not implemented")
}
func (UnimplementedAlignmentServer) Search(context.Context, *SearchRequest) (*SearchResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Search not implemented")
}
func (UnimplementedAlignmentServer) FetchVerses(context.Context, *FetchVersesRequest) (*FetchVersesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method FetchVerses not implemented")
}
func (UnimplementedAlignmentServer) FetchWindow(context.Context, *FetchWindowRequest) (*WindowResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method FetchWindow not implemented")
}
func (UnimplementedAlignmentServer) LookupReference(context.Context, *LookupReferenceRequest) (*WindowResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method LookupReference not implemented")
}
func (UnimplementedAlignmentServer) Resolve(context.Context, *ResolveRequest) (*ResolveResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Resolve not implemented")
}
func (UnimplementedAlignmentServer) LookupMedia(context.Context, *LookupMediaRequest) (*LookupMediaResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method LookupMedia not implemented")
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unary adapts a typed server method to a grpc method handler.
func unary[Req, Resp any](name string, call func(AlignmentServer, context.Context, *Req) (*Resp, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AlignmentServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(AlignmentServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AlignmentServiceDesc describes the Alignment service for grpc.Server.
var AlignmentServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AlignmentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListCorpora", Handler: unary("ListCorpora", AlignmentServer.ListCorpora)},
		{MethodName: "Search", Handler: unary("Search", AlignmentServer.Search)},
		{MethodName: "FetchVerses", Handler: unary("FetchVerses", AlignmentServer.FetchVerses)},
		{MethodName: "FetchWindow", Handler: unary("FetchWindow", AlignmentServer.FetchWindow)},
		{MethodName: "LookupReference", Handler: unary("LookupReference", AlignmentServer.LookupReference)},
		{MethodName: "Resolve", Handler: unary("Resolve", AlignmentServer.Resolve)},
		{MethodName: "LookupMedia", Handler: unary("LookupMedia", AlignmentServer.LookupMedia)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "versealign/v1/alignment",
}

// RegisterAlignmentServer registers srv on s.
func RegisterAlignmentServer(s grpc.ServiceRegistrar, srv AlignmentServer) {
	s.RegisterService(&AlignmentServiceDesc, srv)
}
