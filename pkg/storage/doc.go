// Package storage defines the persisted entities of the connection core and
// the interfaces storage backends implement.
//
// Backends (memory, postgres, bolt) live in subpackages. Server records are
// always addressed by owner and id; a record belonging to another owner is
// reported as ErrNotFound. OAuth client records are keyed by issuer and
// shared by every owner.
package storage
