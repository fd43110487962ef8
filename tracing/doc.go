// Package tracing wraps OpenTelemetry so that poll and token orchestration
// can record spans without importing the upstream packages directly.
// Applications that do not install a provider get no-op spans.
package tracing
