package client

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/taskgraph/internal/assign"
	"github.com/alfredjeanlab/taskgraph/internal/cpm"
	"github.com/alfredjeanlab/taskgraph/internal/engine"
)

const analysisService = "/taskgraph.v1.AnalysisService/"

// GRPCClient implements AnalysisClient using the gRPC transport. Messages
// are google.protobuf.Struct documents with the same shape as the HTTP API.
type GRPCClient struct {
	conn  *grpc.ClientConn
	token string
}

var _ AnalysisClient = (*GRPCClient)(nil)

// NewGRPCClient connects to the given gRPC address and returns a client.
// When token is non-empty it is sent as a Bearer token on every call.
func NewGRPCClient(addr, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn, token: token}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) Report(ctx context.Context, project string) (*engine.Report, error) {
	var out engine.Report
	if err := c.invoke(ctx, "Report", map[string]any{"project": project}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GRPCClient) CriticalPath(ctx context.Context, project string) (*cpm.Result, error) {
	var out cpm.Result
	if err := c.invoke(ctx, "CriticalPath", map[string]any{"project": project}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GRPCClient) Workload(ctx context.Context, project string) (*WorkloadResponse, error) {
	var out WorkloadResponse
	if err := c.invoke(ctx, "Workload", map[string]any{"project": project}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GRPCClient) Recommendations(ctx context.Context, project string) (*RecommendationsResponse, error) {
	var out RecommendationsResponse
	if err := c.invoke(ctx, "Recommendations", map[string]any{"project": project}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GRPCClient) Optimizations(ctx context.Context, project string) (*assign.Plan, error) {
	var out assign.Plan
	if err := c.invoke(ctx, "Optimizations", map[string]any{"project": project}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GRPCClient) CheckDependency(ctx context.Context, req *DependencyRequest) (*CheckResponse, error) {
	in := map[string]any{
		"prerequisite_id": req.PrerequisiteID,
		"dependent_id":    req.DependentID,
	}
	if req.Kind != "" {
		in["kind"] = req.Kind
	}
	var out CheckResponse
	if err := c.invoke(ctx, "CheckEdge", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.invoke(ctx, "Health", map[string]any{}, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// invoke calls method with req encoded as a Struct and decodes the Struct
// response into out through its JSON form.
func (c *GRPCClient) invoke(ctx context.Context, method string, req map[string]any, out any) error {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, analysisService+method, in, resp); err != nil {
		return err
	}
	data, err := resp.MarshalJSON()
	if err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
