// Package client connects the admin console to a collection server.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface): Ping and
//     Follow.
//  2. A concrete gRPC implementation (see GRPCClient) that checks server
//     health through the standard gRPC health service and follows the
//     leadkeeper.v1.EntryFeed stream, mapping gRPC status codes to
//     sentinel errors.
//
// # Error Handling
//
// ErrUnavailable is returned when the server cannot be reached or reports
// it is not serving; match it with errors.Is.
//
// See Also
//
//   - Interface:  Client
//   - gRPC impl:  GRPCClient
//   - Errors:     ErrUnavailable, ErrInvalidRequest
package client
