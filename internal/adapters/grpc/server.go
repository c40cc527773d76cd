package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/application"
)

const ServiceName = "viralforge.gateway.v1.GatewayLifecycleService"

type GatewayLifecycleService interface {
	GetInstance(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

type LifecycleServer struct {
	service *application.Service
}

func NewLifecycleServer(service *application.Service) *LifecycleServer {
	return &LifecycleServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc GatewayLifecycleService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*GatewayLifecycleService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "GetInstance",
				Handler:    getInstanceHandler(svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "mesh/contracts/proto/gateway/v1/gateway_lifecycle.proto",
	}, svc)
}

func (s *LifecycleServer) GetInstance(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	view := s.service.Instance()
	fields := map[string]any{
		"instance_id": view.InstanceID,
		"service_id":  view.ServiceID,
		"profile":     view.Profile,
		"state":       view.State,
		"ready":       view.Ready,
		"arg_count":   view.ArgCount,
		"started_at":  view.StartedAt.Unix(),
	}
	if view.ReadyAt != nil {
		fields["ready_at"] = view.ReadyAt.Unix()
	}
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func getInstanceHandler(svc GatewayLifecycleService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &emptypb.Empty{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.GetInstance(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/GetInstance",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*emptypb.Empty)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.GetInstance(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
