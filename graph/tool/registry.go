package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/shopagent/graph/model"
)

// ErrUnknownTool is returned for calls naming a tool the registry lacks.
var ErrUnknownTool = errors.New("unknown tool")

// Result is the outcome of one executed tool call.
type Result struct {
	// CallID and Name identify the call the result answers.
	CallID string
	Name   string

	// Output is the raw tool output; nil when Err is set.
	Output map[string]interface{}

	// Err is the tool failure, if any.
	Err error
}

// Text renders the result for the conversation. Failures read
// "Error: <message>" so the agent can tell them apart from data.
func (r Result) Text() string {
	if r.Err != nil {
		return "Error: " + r.Err.Error()
	}
	return Render(r.Output)
}

// Executor runs tool calls requested by an agent.
type Executor interface {
	// Specs describes the tools the executor can run.
	Specs() []model.ToolSpec

	// Execute runs one call. Failures are reported in Result.Err, never
	// as a panic.
	Execute(ctx context.Context, call model.ToolCall) Result
}

// Registry is an immutable, named set of tools. It is safe for concurrent
// use once constructed.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds a registry. Names must be unique and non-empty.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			return nil, errors.New("tool is nil")
		}
		name := t.Name()
		if name == "" {
			return nil, errors.New("tool name cannot be empty")
		}
		if _, dup := r.tools[name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", name)
		}
		r.tools[name] = t
		r.order = append(r.order, name)
	}
	return r, nil
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Specs implements Executor.
func (r *Registry) Specs() []model.ToolSpec {
	specs := make([]model.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec())
	}
	return specs
}

// Execute implements Executor. A panicking tool is reported as an error.
func (r *Registry) Execute(ctx context.Context, call model.ToolCall) (res Result) {
	res = Result{CallID: call.ID, Name: call.Name}

	t, ok := r.tools[call.Name]
	if !ok {
		res.Err = fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
		return res
	}

	defer func() {
		if p := recover(); p != nil {
			res.Output = nil
			res.Err = fmt.Errorf("tool %s panicked: %v", call.Name, p)
		}
	}()

	out, err := t.Call(ctx, call.Input)
	if err != nil {
		res.Err = err
		return res
	}
	res.Output = out
	return res
}
