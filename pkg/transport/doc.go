// Package transport holds the HTTP plumbing shared by the API handlers:
// the middleware chain (recovery, request ids, access logging), the
// mapping from domain errors to APIError responses and the registry of
// in-flight upstream operations used during shutdown.
//
// The routes themselves live in the http subpackage.
package transport
