// Package metadata resolves types and members by declared signature.
//
// The verifier core never reflects over a runtime; it asks a Resolver. The
// Registry is an in-memory implementation that can be populated in code or
// from YAML descriptors with LoadYAML.
package metadata
