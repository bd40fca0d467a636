package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"partsledger/internal/models"
	"partsledger/internal/services"
)

const dashboardServiceName = "partsledger.v1.Dashboard"

// DashboardServer is the read-only gRPC view of the ledger. Payloads use
// protobuf well-known types with the same field names as the JSON API.
type DashboardServer interface {
	GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListLowStock(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	ListOngoing(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
}

// DashboardGRPCServer answers DashboardServer calls from the services.
type DashboardGRPCServer struct {
	dashboard *services.DashboardService
	catalog   *services.CatalogService
	invoices  *services.InvoiceService
}

func NewDashboardGRPCServer(dashboard *services.DashboardService, catalog *services.CatalogService, invoices *services.InvoiceService) *DashboardGRPCServer {
	return &DashboardGRPCServer{dashboard: dashboard, catalog: catalog, invoices: invoices}
}

// RegisterDashboardServer attaches srv to s.
func RegisterDashboardServer(s grpc.ServiceRegistrar, srv DashboardServer) {
	s.RegisterService(&dashboardServiceDesc, srv)
}

func (s *DashboardGRPCServer) GetStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	stats, err := s.dashboard.Stats(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	var m map[string]interface{}
	if err := roundTrip(stats, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *DashboardGRPCServer) ListLowStock(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	items, err := s.catalog.GetLowStock(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return toListValue(items)
}

func (s *DashboardGRPCServer) ListOngoing(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	invoices, err := s.invoices.ListOngoing(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return toListValue(invoices)
}

func toListValue[T models.Item | models.Invoice](rows []T) (*structpb.ListValue, error) {
	list := make([]interface{}, 0, len(rows))
	if err := roundTrip(rows, &list); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewList(list)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// roundTrip converts v to its generic JSON form so decimals stay strings.
func roundTrip(v, dest interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode: %w", err)
	}
	return json.Unmarshal(data, dest)
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, services.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, services.ErrInvalidState), errors.Is(err, services.ErrInsufficientStock):
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func dashboardHandler(method string, call func(DashboardServer, context.Context, *emptypb.Empty) (interface{}, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(emptypb.Empty)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DashboardServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + dashboardServiceName + "/" + method,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(DashboardServer), ctx, req.(*emptypb.Empty))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var dashboardServiceDesc = grpc.ServiceDesc{
	ServiceName: dashboardServiceName,
	HandlerType: (*DashboardServer)(nil),
	Methods: []grpc.MethodDesc{
		dashboardHandler("GetStats", func(s DashboardServer, ctx context.Context, in *emptypb.Empty) (interface{}, error) {
			return s.GetStats(ctx, in)
		}),
		dashboardHandler("ListLowStock", func(s DashboardServer, ctx context.Context, in *emptypb.Empty) (interface{}, error) {
			return s.ListLowStock(ctx, in)
		}),
		dashboardHandler("ListOngoing", func(s DashboardServer, ctx context.Context, in *emptypb.Empty) (interface{}, error) {
			return s.ListOngoing(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "partsledger/v1/dashboard.proto",
}

// DashboardClient calls a remote DashboardServer.
type DashboardClient struct {
	cc grpc.ClientConnInterface
}

func NewDashboardClient(cc grpc.ClientConnInterface) *DashboardClient {
	return &DashboardClient{cc: cc}
}

func (c *DashboardClient) GetStats(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+dashboardServiceName+"/GetStats", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DashboardClient) ListLowStock(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, "/"+dashboardServiceName+"/ListLowStock", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DashboardClient) ListOngoing(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, "/"+dashboardServiceName+"/ListOngoing", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
