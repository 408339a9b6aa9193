package server

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// AnalysisServiceName is the fully qualified gRPC service name.
const AnalysisServiceName = "taskgraph.v1.AnalysisService"

const healthMethod = "/" + AnalysisServiceName + "/Health"

// AnalysisServer is the server API of the analysis service. Requests and
// responses are google.protobuf.Struct documents carrying the same JSON
// shapes as the HTTP API; requests take a "project" field.
type AnalysisServer interface {
	Report(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CriticalPath(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Workload(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Recommendations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Optimizations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckEdge(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Health(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Compile-time check that TaskGraphServer implements AnalysisServer.
var _ AnalysisServer = (*TaskGraphServer)(nil)

// AnalysisServiceDesc describes the analysis service for grpc.Server.
var AnalysisServiceDesc = grpc.ServiceDesc{
	ServiceName: AnalysisServiceName,
	HandlerType: (*AnalysisServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Report", AnalysisServer.Report),
		unaryMethod("CriticalPath", AnalysisServer.CriticalPath),
		unaryMethod("Workload", AnalysisServer.Workload),
		unaryMethod("Recommendations", AnalysisServer.Recommendations),
		unaryMethod("Optimizations", AnalysisServer.Optimizations),
		unaryMethod("CheckEdge", AnalysisServer.CheckEdge),
		unaryMethod("Health", AnalysisServer.Health),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "taskgraph/v1/analysis.proto",
}

func unaryMethod(name string, call func(AnalysisServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	fullMethod := "/" + AnalysisServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AnalysisServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AnalysisServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// NewGRPCServer creates a gRPC server with standard interceptors, registers
// the AnalysisService and reflection, and returns the server ready to serve.
func NewGRPCServer(s *TaskGraphServer, authToken string, logger *slog.Logger) *grpc.Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
			AuthInterceptor(authToken),
		),
	)

	srv.RegisterService(&AnalysisServiceDesc, s)
	reflection.Register(srv)

	return srv
}

func (s *TaskGraphServer) Report(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return respond(s.report(ctx, stringField(req, "project")))
}

func (s *TaskGraphServer) CriticalPath(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return respond(s.criticalPath(ctx, stringField(req, "project")))
}

func (s *TaskGraphServer) Workload(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return respond(s.workload(ctx, stringField(req, "project")))
}

func (s *TaskGraphServer) Recommendations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return respond(s.recommendations(ctx, stringField(req, "project")))
}

func (s *TaskGraphServer) Optimizations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return respond(s.optimizations(ctx, stringField(req, "project")))
}

// CheckEdge answers would_create_cycle for the edge named by the request's
// prerequisite_id, dependent_id and optional kind.
func (s *TaskGraphServer) CheckEdge(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in addDependencyInput
	if err := fromStruct(req, &in); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return respond(s.checkEdge(ctx, in))
}

func (s *TaskGraphServer) Health(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"status": "ok"})
}

// respond converts a service result into a Struct response or a status
// error.
func respond[T any](v T, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return out, nil
}

// toStatus maps a service error onto a gRPC status.
func toStatus(err error) error {
	switch classify(err) {
	case kindInput:
		return status.Error(codes.InvalidArgument, err.Error())
	case kindNotFound:
		return status.Error(codes.NotFound, "not found")
	case kindCycle, kindReference:
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Errorf(codes.Internal, "%v", err)
}
