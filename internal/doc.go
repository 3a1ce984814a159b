// Package internal holds crypto-adjacent primitives shared by the engine:
// opaque token generation, token digests, backup-code generation, and device
// fingerprinting. Nothing here performs I/O.
package internal
