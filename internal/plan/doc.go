// Package plan holds the two external inputs of a shard migration run:
// the ordered migration plan produced by the host framework, and the
// registry of models that declare shard-routing capability.
//
// Plans are YAML documents; the registry is a CUE file validated against
// an embedded schema so typos in model declarations fail early.
package plan
