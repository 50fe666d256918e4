// Package registry implements the tool registry and dispatcher (spec
// §4.5): a name -> handler map with explicit registration, and a
// dispatcher that validates a tool call's shape before invoking the
// handler, translating any handler failure into a structured error.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mindburn-labs/kernels/pkg/kernelerr"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrAlreadyRegistered is returned by Register when name is already
// present.
var ErrAlreadyRegistered = errors.New("registry: tool already registered")

// ErrNotRegistered is returned by Unregister when name is absent.
var ErrNotRegistered = errors.New("registry: tool not registered")

// Handler is the function signature every registered tool implements.
// It receives the tool call's parameter mapping and returns a result
// value (passed verbatim into the receipt's tool_result) or an error.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Entry is what the registry stores per tool name.
type Entry struct {
	Handler     Handler
	Description string
	// ParamSchema is an optional JSON Schema (Draft 2020-12) text. When
	// non-empty, the dispatcher validates tool_call.params against it
	// before invoking Handler.
	ParamSchema string

	schema *jsonschema.Schema
}

// Registry is a thread-safe name -> Entry map. No dynamic discovery, no
// name-based import: every tool must be registered explicitly before a
// request can invoke it.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds a tool. It fails with ErrAlreadyRegistered if name is
// already present, and with a schema compile error if paramSchema is
// non-empty but fails to compile.
func (r *Registry) Register(name string, handler Handler, description, paramSchema string) error {
	if name == "" {
		return errors.New("registry: tool name must be non-empty")
	}
	if handler == nil {
		return errors.New("registry: handler must be non-nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return ErrAlreadyRegistered
	}

	entry := &Entry{Handler: handler, Description: description, ParamSchema: paramSchema}
	if paramSchema != "" {
		compiled, err := compileSchema(name, paramSchema)
		if err != nil {
			return fmt.Errorf("registry: schema for %q failed to compile: %w", name, err)
		}
		entry.schema = compiled
	}
	r.entries[name] = entry
	return nil
}

// Unregister removes a tool. It fails with ErrNotRegistered if name is
// absent.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		return ErrNotRegistered
	}
	delete(r.entries, name)
	return nil
}

// Get returns the handler registered under name, or nil if absent.
func (r *Registry) Get(name string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil
	}
	return e.Handler
}

// List returns the names of every registered tool.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

func compileSchema(name, schemaText string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://kernels.local/tools/%s.schema.json", name)
	if err := c.AddResource(url, strings.NewReader(schemaText)); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// Dispatch validates and invokes the named tool (spec §4.5 dispatcher
// contract). It never lets a handler panic or a handler error escape
// unclassified — every failure path returns a *kernelerr.Error of
// KindTool.
func (r *Registry) Dispatch(ctx context.Context, name string, params map[string]any) (result any, err error) {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()

	if name == "" || !ok {
		return nil, kernelerr.New(kernelerr.KindTool, fmt.Sprintf("TOOL_UNKNOWN: tool %q is not registered", name))
	}

	if params == nil {
		params = map[string]any{}
	}

	if entry.schema != nil {
		if verr := entry.schema.Validate(params); verr != nil {
			return nil, kernelerr.Wrap(kernelerr.KindTool,
				fmt.Sprintf("TOOL_BAD_PARAMS: params for %q failed schema validation", name), verr)
		}
	}

	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = kernelerr.New(kernelerr.KindTool, fmt.Sprintf("TOOL_FAILED: handler %q panicked: %v", name, p))
		}
	}()

	out, herr := entry.Handler(ctx, params)
	if herr != nil {
		return nil, kernelerr.Wrap(kernelerr.KindTool, fmt.Sprintf("TOOL_FAILED: handler %q returned an error", name), herr)
	}
	return out, nil
}
