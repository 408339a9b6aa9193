package server

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// dialTestServer serves srv over an in-memory listener and returns a client
// connection to it.
func dialTestServer(t *testing.T, srv *TaskGraphServer, token string) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := NewGRPCServer(srv, token, discardLogger())
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func invoke(ctx context.Context, conn *grpc.ClientConn, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	err = conn.Invoke(ctx, "/"+AnalysisServiceName+"/"+method, in, out)
	return out, err
}

func TestGRPC_CriticalPath(t *testing.T) {
	srv, ms, _ := newTestServer()
	seedScenario(ms)
	conn := dialTestServer(t, srv, "")

	out, err := invoke(t.Context(), conn, "CriticalPath", map[string]any{})
	if err != nil {
		t.Fatalf("CriticalPath: %v", err)
	}
	if got := out.GetFields()["path_length"].GetNumberValue(); got != 12 {
		t.Errorf("path_length = %g, want 12", got)
	}
	path := out.GetFields()["critical_path"].GetListValue().GetValues()
	if len(path) != 3 || path[0].GetStringValue() != "A" || path[2].GetStringValue() != "D" {
		t.Errorf("critical_path = %v", path)
	}
}

func TestGRPC_Report(t *testing.T) {
	srv, ms, _ := newTestServer()
	seedScenario(ms)
	conn := dialTestServer(t, srv, "")

	out, err := invoke(t.Context(), conn, "Report", map[string]any{"project": ""})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !out.GetFields()["acyclic"].GetBoolValue() {
		t.Error("expected an acyclic report")
	}
	if got := out.GetFields()["task_count"].GetNumberValue(); got != 4 {
		t.Errorf("task_count = %g, want 4", got)
	}
}

func TestGRPC_WorkloadAndAssignments(t *testing.T) {
	srv, ms, _ := newTestServer()
	seedScenario(ms)
	conn := dialTestServer(t, srv, "")

	for _, method := range []string{"Workload", "Recommendations", "Optimizations"} {
		if _, err := invoke(t.Context(), conn, method, map[string]any{}); err != nil {
			t.Errorf("%s: %v", method, err)
		}
	}
}

func TestGRPC_CheckEdge(t *testing.T) {
	srv, ms, _ := newTestServer()
	seedScenario(ms)
	conn := dialTestServer(t, srv, "")

	out, err := invoke(t.Context(), conn, "CheckEdge", map[string]any{"prerequisite_id": "D", "dependent_id": "A"})
	if err != nil {
		t.Fatalf("CheckEdge: %v", err)
	}
	if !out.GetFields()["would_create_cycle"].GetBoolValue() {
		t.Error("D -> A closes a cycle")
	}

	_, err = invoke(t.Context(), conn, "CheckEdge", map[string]any{"prerequisite_id": "D", "dependent_id": "nope"})
	if status.Code(err) != codes.FailedPrecondition {
		t.Errorf("unknown task: expected FailedPrecondition, got %v", err)
	}

	_, err = invoke(t.Context(), conn, "CheckEdge", map[string]any{"prerequisite_id": "D"})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("missing dependent: expected InvalidArgument, got %v", err)
	}
}

func TestGRPC_CyclicGraph(t *testing.T) {
	srv, ms, _ := newTestServer()
	seedScenario(ms)
	_, _ = ms.AddDependency(t.Context(), newEdge("D", "A"))
	conn := dialTestServer(t, srv, "")

	_, err := invoke(t.Context(), conn, "CriticalPath", map[string]any{})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}
}

func TestGRPC_Auth(t *testing.T) {
	srv, _, _ := newTestServer()
	conn := dialTestServer(t, srv, "secret")

	if _, err := invoke(t.Context(), conn, "Health", map[string]any{}); err != nil {
		t.Fatalf("Health should be exempt: %v", err)
	}
	if _, err := invoke(t.Context(), conn, "Report", map[string]any{}); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}

	ctx := metadata.AppendToOutgoingContext(t.Context(), "authorization", "Bearer secret")
	if _, err := invoke(ctx, conn, "Report", map[string]any{}); err != nil {
		t.Fatalf("authorized Report: %v", err)
	}
}
