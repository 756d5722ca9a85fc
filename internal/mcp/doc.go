// Package mcp implements the JSON-RPC 2.0 tool endpoint.
//
// A single POST endpoint accepts one envelope or a batch array. Envelopes
// without an id are notifications: they are acknowledged with 202 and never
// appear in a batch's response array. The initialize method is reachable
// without credentials; every other method resolves a caller identity via the
// auth package first. Auth failures map onto implementation-defined error
// codes in the -32000 range; everything else uses the standard JSON-RPC
// codes.
package mcp
