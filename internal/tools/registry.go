package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/adamcfield/github-mcp-proxy/internal/telemetry"
)

// Descriptor names one operation and declares its input contract.
type Descriptor struct {
	Name        string
	Description string
	Schema      Schema
}

// Handler executes one operation against validated arguments. Expected
// failures (upstream rejection, structural mismatch) come back as error
// envelopes; a non-nil error means something genuinely unexpected happened
// (transport failure, malformed upstream JSON) and propagates to the caller.
type Handler func(ctx context.Context, args Args) (Envelope, error)

type registration struct {
	descriptor Descriptor
	handler    Handler
}

// Registry maps operation names to their schema and handler. Registration
// happens once at startup; Invoke is safe for concurrent use afterwards.
type Registry struct {
	tools  map[string]*registration
	order  []string
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]*registration),
		logger: logger,
	}
}

func (r *Registry) Register(d Descriptor, h Handler) error {
	if d.Name == "" {
		return fmt.Errorf("tool name is empty")
	}
	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("tool %q is already registered", d.Name)
	}
	r.tools[d.Name] = &registration{descriptor: d, handler: h}
	r.order = append(r.order, d.Name)
	return nil
}

// Invoke dispatches one tool call. Unknown names and schema violations fail
// closed with an error envelope before the handler runs; a successful
// handler's envelope passes through unchanged.
func (r *Registry) Invoke(ctx context.Context, name string, rawArgs json.RawMessage) (Envelope, error) {
	reg, ok := r.tools[name]
	if !ok {
		telemetry.IncToolCall(name, "unknown")
		return Errorf("Tool not found: %s", name), nil
	}

	args, err := reg.descriptor.Schema.Validate(rawArgs)
	if err != nil {
		telemetry.IncToolCall(name, "invalid")
		return Errorf("Invalid arguments for %s: %v", name, err), nil
	}

	start := time.Now()
	env, err := reg.handler(ctx, args)
	telemetry.ObserveToolDuration(name, time.Since(start))
	if err != nil {
		telemetry.IncToolCall(name, "fault")
		r.logger.Error("tool call fault", "tool", name, "err", err)
		return Envelope{}, err
	}

	status := "ok"
	if env.IsError {
		status = "error"
	}
	telemetry.IncToolCall(name, status)
	r.logger.Info("tool call completed", "tool", name, "is_error", env.IsError)
	return env, nil
}

// Definitions lists every registered tool in registration order, rendered
// for a tools/list response.
func (r *Registry) Definitions() []map[string]any {
	out := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		reg := r.tools[name]
		out = append(out, map[string]any{
			"name":        reg.descriptor.Name,
			"description": reg.descriptor.Description,
			"inputSchema": reg.descriptor.Schema.JSONSchema(),
		})
	}
	return out
}
