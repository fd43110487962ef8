// Package token defines short-lived, single-use capability tokens gating
// file upload, edit and view flows, together with staged edit diffs that
// await a second approval step before being committed.
package token
