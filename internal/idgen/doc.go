// Package idgen wraps identifier generators so that they can be stubbed in
// tests. It lives under `internal` because callers should not rely on the
// exact format – identifiers are opaque strings.
package idgen
