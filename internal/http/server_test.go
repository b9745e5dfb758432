package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/adamcfield/github-mcp-proxy/internal/tools"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	registry := tools.NewRegistry(logger)

	err := registry.Register(tools.Descriptor{
		Name:        "echo",
		Description: "Echo the supplied text",
		Schema:      tools.Schema{"text": {Type: tools.TypeString, Required: true}},
	}, func(_ context.Context, args tools.Args) (tools.Envelope, error) {
		return tools.Text(args.String("text")), nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	return NewServer("127.0.0.1:0", registry, logger)
}

func postRPC(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthDocumentNamesEndpoints(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var got struct {
		Status    string            `json:"status"`
		Endpoints map[string]string `json:"endpoints"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != "ok" {
		t.Fatalf("unexpected status: %q", got.Status)
	}
	for _, key := range []string{"mcp", "sse", "metrics"} {
		if got.Endpoints[key] == "" {
			t.Fatalf("endpoint %q missing from health document", key)
		}
	}
}

func TestUnknownPathReturnsJSON404(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("404 body must be JSON, got %q", rr.Header().Get("Content-Type"))
	}
}

func TestInitialize(t *testing.T) {
	s := newTestServer(t)

	rr := postRPC(t, s, "/mcp", `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	var resp jsonRPCResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	result, _ := resp.Result.(map[string]any)
	if result["protocolVersion"] != "2024-11-05" {
		t.Fatalf("unexpected protocol version: %v", result["protocolVersion"])
	}
}

func TestToolsListIncludesRegisteredTools(t *testing.T) {
	s := newTestServer(t)

	rr := postRPC(t, s, "/mcp", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	if !strings.Contains(rr.Body.String(), `"echo"`) {
		t.Fatalf("tools/list missing registered tool: %s", rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"inputSchema"`) {
		t.Fatalf("tools/list missing input schemas: %s", rr.Body.String())
	}
}

func TestMCPAndSSERouteToTheSameDispatcher(t *testing.T) {
	s := newTestServer(t)
	call := `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hi"}}}`

	a := postRPC(t, s, "/mcp", call)
	b := postRPC(t, s, "/sse", call)

	if a.Code != http.StatusOK || b.Code != http.StatusOK {
		t.Fatalf("unexpected status codes: %d / %d", a.Code, b.Code)
	}
	if a.Body.String() != b.Body.String() {
		t.Fatalf("paths diverged:\n/mcp: %s\n/sse: %s", a.Body.String(), b.Body.String())
	}
	if !strings.Contains(a.Body.String(), `"hi"`) {
		t.Fatalf("tool result missing: %s", a.Body.String())
	}
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	s := newTestServer(t)

	rr := postRPC(t, s, "/mcp", `{"jsonrpc":"2.0","id":4,"method":"resources/list"}`)
	var resp jsonRPCResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Fatalf("expected -32601, got %+v", resp.Error)
	}
}

func TestMalformedJSONReturnsParseError(t *testing.T) {
	s := newTestServer(t)

	rr := postRPC(t, s, "/mcp", `{not json`)
	var resp jsonRPCResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != -32700 {
		t.Fatalf("expected -32700, got %+v", resp.Error)
	}
}

func TestToolCallInvalidArgumentsStaysInEnvelope(t *testing.T) {
	s := newTestServer(t)

	rr := postRPC(t, s, "/mcp", `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"echo","arguments":{}}}`)
	var resp struct {
		Result tools.Envelope `json:"result"`
		Error  *rpcError      `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("schema violations are envelope errors, not rpc errors: %+v", resp.Error)
	}
	if !resp.Result.IsError {
		t.Fatal("expected error envelope for invalid arguments")
	}
	if !strings.Contains(resp.Result.FirstText(), "echo") {
		t.Fatalf("diagnostic should name the tool: %q", resp.Result.FirstText())
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}
