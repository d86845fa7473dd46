// Package tracing provides OpenTelemetry tracing integration.
//
// This package provides distributed tracing for the HTTP surface. Exporter
// wiring (OTLP endpoint selection) is left to deployment configuration.
//
// Key features:
//   - Automatic HTTP request tracing
//   - W3C Trace Context extraction from incoming requests
//   - Trace ID propagation via X-Trace-Id response headers
//
// Example usage:
//
//	import "newswire-search/internal/observability/tracing"
//
//	func main() {
//	    mux := http.NewServeMux()
//	    handler := tracing.Middleware(mux)
//	    http.ListenAndServe(":8080", handler)
//	}
//
//	func processRequest(ctx context.Context) {
//	    ctx, span := tracing.GetTracer().Start(ctx, "process-request")
//	    defer span.End()
//	    // ... process request ...
//	}
package tracing
