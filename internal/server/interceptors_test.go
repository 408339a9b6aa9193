package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const reportMethod = "/" + AnalysisServiceName + "/Report"

// stubHandler is a no-op gRPC handler used in interceptor tests.
func stubHandler(_ context.Context, _ any) (any, error) {
	return "ok", nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheckBearer(t *testing.T) {
	tests := []struct {
		header string
		want   error
	}{
		{"", errMissingAuth},
		{"Basic secret", errInvalidScheme},
		{"Bearer wrong", errInvalidToken},
		{"Bearer secret", nil},
	}
	for _, tt := range tests {
		if got := checkBearer(tt.header, "secret"); got != tt.want {
			t.Errorf("checkBearer(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func TestAuthInterceptor(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		method string
		md     metadata.MD
		want   codes.Code
	}{
		{"Disabled", "", reportMethod, nil, codes.OK},
		{"HealthExempt", "secret", healthMethod, nil, codes.OK},
		{"MissingMetadata", "secret", reportMethod, nil, codes.Unauthenticated},
		{"MissingAuthHeader", "secret", reportMethod, metadata.Pairs("other", "value"), codes.Unauthenticated},
		{"WrongToken", "secret", reportMethod, metadata.Pairs("authorization", "Bearer wrong"), codes.Unauthenticated},
		{"InvalidScheme", "secret", reportMethod, metadata.Pairs("authorization", "Basic secret"), codes.Unauthenticated},
		{"CorrectToken", "secret", reportMethod, metadata.Pairs("authorization", "Bearer secret"), codes.OK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tt.md)
			}
			resp, err := AuthInterceptor(tt.token)(ctx, nil, &grpc.UnaryServerInfo{FullMethod: tt.method}, stubHandler)
			if got := status.Code(err); got != tt.want {
				t.Fatalf("expected %v, got %v (%v)", tt.want, got, err)
			}
			if tt.want == codes.OK && resp != "ok" {
				t.Fatalf("expected 'ok', got %v", resp)
			}
		})
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	panicking := func(context.Context, any) (any, error) { panic("boom") }
	_, err := RecoveryInterceptor(discardLogger())(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: reportMethod}, panicking)
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", status.Code(err))
	}
}

func TestLoggingInterceptor(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	failing := func(context.Context, any) (any, error) { return nil, status.Error(codes.NotFound, "gone") }

	_, err := LoggingInterceptor(logger)(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: reportMethod}, failing)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("error should pass through, got %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, reportMethod) || !strings.Contains(out, "code=NotFound") {
		t.Errorf("log line missing method or code: %s", out)
	}
}

// --- HTTP middleware tests ---

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		path   string
		header string
		want   int
	}{
		{"NoHeader", "secret", "/v1/tasks", "", http.StatusUnauthorized},
		{"WrongToken", "secret", "/v1/tasks", "Bearer wrong", http.StatusUnauthorized},
		{"InvalidScheme", "secret", "/v1/tasks", "Basic secret", http.StatusUnauthorized},
		{"CorrectToken", "secret", "/v1/tasks", "Bearer secret", http.StatusOK},
		{"HealthExempt", "secret", "/v1/health", "", http.StatusOK},
		{"Disabled", "", "/v1/tasks", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			AuthMiddleware(tt.token, okHandler()).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d; body: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(discardLogger(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/report", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := LoggingMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/levels", nil))
	if out := buf.String(); !strings.Contains(out, "status=418") || !strings.Contains(out, "path=/v1/levels") {
		t.Errorf("unexpected log line: %s", out)
	}

	// Health checks log at debug level, below the handler's default.
	buf.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if buf.Len() != 0 {
		t.Errorf("health check should not log at info: %s", buf.String())
	}
}
