// Package wasmtool adapts a compiled WASM module into a
// registry.Handler, giving the tool dispatcher a sandboxed execution
// backend alongside native Go handlers. A WASM tool cannot touch the
// host process's memory or file descriptors beyond what wazero's
// module config explicitly grants it — useful for tools whose logic
// is supplied by a third party the kernel operator doesn't fully
// trust.
package wasmtool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Module wraps a compiled WASM binary that exports an entry point
// `handle(ptr, len) -> (ptr, len)` operating on a JSON-encoded params
// object in, JSON-encoded result out, via the module's own linear
// memory, plus an `alloc(len) -> ptr` function used to place the params
// in that memory.
type Module struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	entry    string
}

// Compile instantiates a wazero runtime and compiles wasmBinary. entry
// is the exported function name invoked per call (conventionally
// "handle").
func Compile(ctx context.Context, wasmBinary []byte, entry string) (*Module, error) {
	rt := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("wasmtool: wasi instantiation failed: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, wasmBinary)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("wasmtool: compile failed: %w", err)
	}

	if entry == "" {
		entry = "handle"
	}
	return &Module{runtime: rt, compiled: compiled, entry: entry}, nil
}

// Close releases the wazero runtime and all modules instantiated from
// it.
func (m *Module) Close(ctx context.Context) error {
	return m.runtime.Close(ctx)
}

// Handler returns a registry.Handler that marshals params to JSON,
// writes them into a freshly instantiated module's memory, invokes the
// entry point, and unmarshals the returned bytes as the tool result.
//
// A fresh instance is created per call so that concurrent/successive
// invocations never share WASM linear memory or global state — the
// isolation guarantee this adapter exists for would otherwise leak
// across calls.
func (m *Module) Handler() func(ctx context.Context, params map[string]any) (any, error) {
	return func(ctx context.Context, params map[string]any) (any, error) {
		cfg := wazero.NewModuleConfig().WithStartFunctions()
		instance, err := m.runtime.InstantiateModule(ctx, m.compiled, cfg)
		if err != nil {
			return nil, fmt.Errorf("wasmtool: instantiate failed: %w", err)
		}
		defer instance.Close(ctx)

		fn := instance.ExportedFunction(m.entry)
		if fn == nil {
			return nil, fmt.Errorf("wasmtool: module does not export %q", m.entry)
		}

		in, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("wasmtool: marshal params failed: %w", err)
		}

		ptr, size, err := writeToMemory(ctx, instance, in)
		if err != nil {
			return nil, err
		}

		results, err := fn.Call(ctx, uint64(ptr), uint64(size))
		if err != nil {
			return nil, fmt.Errorf("wasmtool: call failed: %w", err)
		}
		if len(results) != 2 {
			return nil, fmt.Errorf("wasmtool: entry point must return (ptr, len), got %d values", len(results))
		}

		outPtr, outLen := uint32(results[0]), uint32(results[1])
		data, ok := instance.Memory().Read(outPtr, outLen)
		if !ok {
			return nil, fmt.Errorf("wasmtool: failed to read result from module memory")
		}

		var result any
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("wasmtool: unmarshal result failed: %w", err)
		}
		return result, nil
	}
}

// writeToMemory allocates space in the module's memory (via an
// exported "alloc" function, a common WASM guest convention) and
// writes data into it, returning the pointer and length.
func writeToMemory(ctx context.Context, instance api.Module, data []byte) (uint32, uint32, error) {
	alloc := instance.ExportedFunction("alloc")
	if alloc == nil {
		return 0, 0, fmt.Errorf("wasmtool: module does not export \"alloc\"")
	}
	results, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, 0, fmt.Errorf("wasmtool: alloc call failed: %w", err)
	}
	ptr := uint32(results[0])
	if !instance.Memory().Write(ptr, data) {
		return 0, 0, fmt.Errorf("wasmtool: failed to write params into module memory")
	}
	return ptr, uint32(len(data)), nil
}
