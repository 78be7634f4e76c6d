package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "engagement.v1.Dashboard"

// Method names of the Dashboard service.
const (
	MethodGetDashboard      = "GetDashboard"
	MethodRefresh           = "Refresh"
	MethodSearchEngagements = "SearchEngagements"
	MethodToggleSelection   = "ToggleSelection"
	MethodGetReport         = "GetReport"
	MethodCommitReport      = "CommitReport"
)

// DashboardServer is the server API for the Dashboard service. Requests and
// responses are generic structs whose fields are documented per method.
type DashboardServer interface {
	// GetDashboard returns views, summary, state and health.
	GetDashboard(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Refresh fetches a new snapshot.
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// SearchEngagements filters by {query}, optionally paged by {page, page_size}.
	SearchEngagements(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ToggleSelection flips {id} in the highlight selection.
	ToggleSelection(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GetReport returns the recommendation report.
	GetReport(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// CommitReport writes the report to {notebook_path} or the default path.
	CommitReport(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type dashboardCall func(DashboardServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call dashboardCall) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DashboardServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DashboardServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// DashboardServiceDesc describes the Dashboard service for grpc.Server.
var DashboardServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DashboardServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodGetDashboard, Handler: unaryHandler(MethodGetDashboard, DashboardServer.GetDashboard)},
		{MethodName: MethodRefresh, Handler: unaryHandler(MethodRefresh, DashboardServer.Refresh)},
		{MethodName: MethodSearchEngagements, Handler: unaryHandler(MethodSearchEngagements, DashboardServer.SearchEngagements)},
		{MethodName: MethodToggleSelection, Handler: unaryHandler(MethodToggleSelection, DashboardServer.ToggleSelection)},
		{MethodName: MethodGetReport, Handler: unaryHandler(MethodGetReport, DashboardServer.GetReport)},
		{MethodName: MethodCommitReport, Handler: unaryHandler(MethodCommitReport, DashboardServer.CommitReport)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "engagement/v1/dashboard.proto",
}

// RegisterDashboardServer registers srv on s.
func RegisterDashboardServer(s grpc.ServiceRegistrar, srv DashboardServer) {
	s.RegisterService(&DashboardServiceDesc, srv)
}

// Client calls the Dashboard service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with req. A nil req sends an empty struct.
func (c *Client) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
