package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// MaxMessageSize bounds request and response sizes.
const MaxMessageSize = 64 * 1024 * 1024

// NewGRPCServer builds a grpc.Server serving srv plus the standard health
// service. The returned health server reports SERVING for the Alignment
// service once registered.
func NewGRPCServer(srv *Server, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append([]grpc.ServerOption{
		grpc.MaxRecvMsgSize(MaxMessageSize),
		grpc.MaxSendMsgSize(MaxMessageSize),
		grpc.ChainUnaryInterceptor(GrpcMetricsInterceptor(srv.metrics, srv.log)),
	}, opts...)

	gs := grpc.NewServer(opts...)
	RegisterAlignmentServer(gs, srv)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return gs, hs
}
