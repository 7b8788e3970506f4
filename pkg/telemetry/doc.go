// Package telemetry provides logging, tracing and metrics for hostdata.
//
// It combines structured logging (zerolog), distributed tracing
// (OpenTelemetry) and Prometheus metrics behind one Telemetry value.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("ffi")
//	logger.WithDocument(doc.ID().String(), path).WithHandle(uint64(h)).Debug("Document opened")
//
// Log levels: trace, debug, info, warn, error, fatal. A nil *Logger is
// replaced by NopLogger wherever a component accepts one.
//
// # Tracing
//
//	ctx, span := tel.Tracer.StartDocumentSpan(ctx, "open", path, "json")
//	defer span.End()
//
// A nil *Tracer starts spans from the global provider.
//
// Supported exporters: otlp (gRPC), stdout, none.
//
// # Metrics
//
// Metrics are registered on a private registry and served from
// Metrics.Handler. Every recording method is a no-op on a nil or disabled
// *Metrics, so callers never need to check.
//
//	tel.Metrics.RecordOperation("get_value", "ok", elapsed)
//	tel.Metrics.SetLiveHandles(registry.Len())
//
// # Context Helpers
//
//	err := telemetry.RecordBoundaryOperation(ctx, "starlark", "get", func() error {
//	    return nil
//	})
package telemetry
