// Package meta describes entity types to the rest of the module: typed
// attribute descriptors, per-entity identifier/version/natural-key
// configuration and the registry that resolves them against bun tables.
package meta
