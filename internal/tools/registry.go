package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/young1lin/supplementbot/internal/models"
	"github.com/young1lin/supplementbot/pkg/logger"
)

// Tool is a local function the remote assistant may call
type Tool interface {
	Definition() models.FunctionDef
	// Execute returns a JSON-serializable value for the tool output
	Execute(ctx context.Context, args string) (interface{}, error)
}

// Registry manages the available tools
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry
func (r *Registry) Register(t Tool) {
	r.tools[t.Definition().Name] = t
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns all tool declarations sorted by name
func (r *Registry) Definitions() []models.FunctionDef {
	defs := make([]models.FunctionDef, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Dispatch executes one batch of tool calls concurrently. Every call gets
// exactly one result carrying its own call ID, in request order.
func (r *Registry) Dispatch(ctx context.Context, calls []models.ToolCallRequest) []models.ToolCallResult {
	results := make([]models.ToolCallResult, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = models.ToolCallResult{
				CallID: call.CallID,
				Output: r.execute(ctx, call),
			}
			return nil
		})
	}
	g.Wait()

	return results
}

func (r *Registry) execute(ctx context.Context, call models.ToolCallRequest) string {
	log := logger.FromContext(ctx).With(
		zap.String("call_id", call.CallID),
		zap.String("function", call.FunctionName),
	)

	t, ok := r.Get(call.FunctionName)
	if !ok {
		log.Warn("unknown function requested")
		return errorOutput(fmt.Errorf("unknown function: %s", call.FunctionName))
	}

	log.Info("executing tool call", zap.String("arguments", call.Arguments))

	value, err := t.Execute(ctx, call.Arguments)
	if err != nil {
		log.Error("tool call failed", zap.Error(err))
		return errorOutput(err)
	}

	out, err := json.Marshal(value)
	if err != nil {
		log.Error("failed to encode tool output", zap.Error(err))
		return errorOutput(err)
	}
	return string(out)
}

func errorOutput(err error) string {
	out, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(out)
}

// ParseArgs decodes a JSON arguments object
func ParseArgs(args string, v interface{}) error {
	if err := json.Unmarshal([]byte(args), v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
