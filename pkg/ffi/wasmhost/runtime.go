package wasmhost

import (
	"context"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/openfroyo/hostdata/pkg/ffi"
	"github.com/openfroyo/hostdata/pkg/telemetry"
)

// RuntimeConfig contains configuration for the WASM runtime.
type RuntimeConfig struct {
	// Timeout bounds each guest call made through Guest.Call.
	Timeout time.Duration

	// MemoryLimitPages is the maximum memory limit in pages (64KB each).
	// Default is 256 pages (16MB).
	MemoryLimitPages uint32

	// Logger receives host function diagnostics. Nil discards them.
	Logger *telemetry.Logger
}

// Runtime hosts WASM guests that import the hostdata module.
type Runtime struct {
	runtime wazero.Runtime
	host    *HostModule
	config  *RuntimeConfig
}

// NewRuntime creates a wazero runtime with WASI and the hostdata host module
// bound to bridge.
func NewRuntime(ctx context.Context, bridge *ffi.Bridge, cfg *RuntimeConfig) (*Runtime, error) {
	if cfg == nil {
		cfg = &RuntimeConfig{}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MemoryLimitPages == 0 {
		cfg.MemoryLimitPages = 256
	}

	runtimeConfig := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(cfg.MemoryLimitPages).
		WithCloseOnContextDone(true)

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	host := NewHostModule(bridge, cfg.Logger)
	builder := runtime.NewHostModuleBuilder(ModuleName)
	host.register(builder)

	if _, err := builder.Instantiate(ctx); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate host module: %w", err)
	}

	return &Runtime{
		runtime: runtime,
		host:    host,
		config:  cfg,
	}, nil
}

// Host returns the host module bound to the runtime.
func (r *Runtime) Host() *HostModule {
	return r.host
}

// Instantiate compiles and instantiates a guest module under name.
func (r *Runtime) Instantiate(ctx context.Context, name string, wasm []byte) (*Guest, error) {
	module, err := r.runtime.InstantiateWithConfig(ctx, wasm, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate WASM module: %w", err)
	}

	guest, err := newGuest(module)
	if err != nil {
		module.Close(ctx)
		return nil, err
	}
	guest.timeout = r.config.Timeout
	return guest, nil
}

// Close releases the runtime and every guest instantiated in it.
func (r *Runtime) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}

// Guest is an instantiated WASM module with its allocator exports.
type Guest struct {
	module  api.Module
	memory  api.Memory
	malloc  api.Function
	free    api.Function
	timeout time.Duration
}

// newGuest checks that module exports memory, malloc and free.
func newGuest(module api.Module) (*Guest, error) {
	g := &Guest{module: module}

	g.memory = module.Memory()
	if g.memory == nil {
		return nil, fmt.Errorf("WASM module does not export memory")
	}

	g.malloc = module.ExportedFunction("malloc")
	if g.malloc == nil {
		return nil, fmt.Errorf("WASM module does not export malloc function")
	}

	g.free = module.ExportedFunction("free")
	if g.free == nil {
		return nil, fmt.Errorf("WASM module does not export free function")
	}

	return g, nil
}

// Module returns the underlying wazero module.
func (g *Guest) Module() api.Module {
	return g.module
}

// Call invokes an exported guest function with the configured timeout.
func (g *Guest) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := g.module.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("WASM module does not export %s function", name)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	results, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, fmt.Errorf("WASM function %s failed: %w", name, err)
	}
	return results, nil
}

// allocate allocates memory in the guest and returns the pointer.
func (g *Guest) allocate(ctx context.Context, size uint32) (uint32, error) {
	results, err := g.malloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, fmt.Errorf("malloc failed: %w", err)
	}

	if len(results) == 0 {
		return 0, fmt.Errorf("malloc returned no results")
	}

	ptr := uint32(results[0])
	if ptr == 0 {
		return 0, fmt.Errorf("malloc returned null pointer")
	}

	return ptr, nil
}

// deallocate frees memory in the guest.
func (g *Guest) deallocate(ctx context.Context, ptr uint32) error {
	_, err := g.free.Call(ctx, uint64(ptr))
	if err != nil {
		return fmt.Errorf("free failed: %w", err)
	}
	return nil
}
