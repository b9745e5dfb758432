package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestInvokeUnknownTool(t *testing.T) {
	reg := NewRegistry(testLogger())

	env, err := reg.Invoke(context.Background(), "no_such_tool", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !env.IsError {
		t.Fatal("expected error envelope for unknown tool")
	}
	if !strings.Contains(env.FirstText(), "no_such_tool") {
		t.Fatalf("diagnostic should name the tool, got: %q", env.FirstText())
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	reg := NewRegistry(testLogger())
	desc := Descriptor{Name: "read_file", Schema: Schema{}}
	handler := func(context.Context, Args) (Envelope, error) { return Text("ok"), nil }

	if err := reg.Register(desc, handler); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := reg.Register(desc, handler); err == nil {
		t.Fatal("expected error on duplicate registration")
	}
}

func TestInvokeFailsClosedBeforeHandler(t *testing.T) {
	reg := NewRegistry(testLogger())
	calls := 0
	err := reg.Register(Descriptor{
		Name:   "read_file",
		Schema: Schema{"path": {Type: TypeString, Required: true}},
	}, func(context.Context, Args) (Envelope, error) {
		calls++
		return Text("ok"), nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	env, invokeErr := reg.Invoke(context.Background(), "read_file", json.RawMessage(`{}`))
	if invokeErr != nil {
		t.Fatalf("unexpected error: %v", invokeErr)
	}
	if !env.IsError {
		t.Fatal("expected error envelope for invalid arguments")
	}
	if calls != 0 {
		t.Fatalf("handler ran %d time(s) despite invalid arguments", calls)
	}
}

func TestInvokePassesEnvelopeThrough(t *testing.T) {
	reg := NewRegistry(testLogger())
	want := Error("Error 404: Not Found")
	if err := reg.Register(Descriptor{Name: "t", Schema: Schema{}}, func(context.Context, Args) (Envelope, error) {
		return want, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	env, err := reg.Invoke(context.Background(), "t", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.FirstText() != want.FirstText() || env.IsError != want.IsError {
		t.Fatalf("envelope was altered: %+v", env)
	}
}

func TestInvokePropagatesHandlerFault(t *testing.T) {
	reg := NewRegistry(testLogger())
	fault := errors.New("connection refused")
	if err := reg.Register(Descriptor{Name: "t", Schema: Schema{}}, func(context.Context, Args) (Envelope, error) {
		return Envelope{}, fault
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := reg.Invoke(context.Background(), "t", nil)
	if !errors.Is(err, fault) {
		t.Fatalf("expected handler fault to propagate, got: %v", err)
	}
}

func TestDefinitionsPreserveRegistrationOrder(t *testing.T) {
	reg := NewRegistry(testLogger())
	handler := func(context.Context, Args) (Envelope, error) { return Text("ok"), nil }
	for _, name := range []string{"c", "a", "b"} {
		if err := reg.Register(Descriptor{Name: name, Schema: Schema{}}, handler); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	defs := reg.Definitions()
	if len(defs) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(defs))
	}
	got := []string{defs[0]["name"].(string), defs[1]["name"].(string), defs[2]["name"].(string)}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order: %v", got)
		}
	}
}
