// Package policy decides which voters hold the force-override privilege on
// approval polls. A policy is configured on the service or attached to a
// single request via context; the context value wins.
package policy
