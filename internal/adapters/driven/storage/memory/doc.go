// Package memory provides in-memory implementations of the driven storage
// ports. State lives for the lifetime of the process.
package memory
