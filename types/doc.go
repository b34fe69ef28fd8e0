// Package types defines the core data model shared across docqa: segments,
// chunk settings, and the structured error taxonomy used at every operation
// boundary.
package types
