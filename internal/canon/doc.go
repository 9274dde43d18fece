// Package canon provides RFC 8785 (JCS) canonical JSON and the SHA-256
// content hash used as identity for content-addressed artifacts.
//
// canon is the leaf of the module: it imports nothing internal, and every
// package that computes or compares an artifact identity goes through it.
//
// Key design constraints:
//   - Raw JSON is parsed into a sealed Value tree before encoding, so
//     malformed input is rejected by the type layer, never mid-hash
//   - Duplicate object keys, NaN and Infinity are rejected
//   - Object keys sort by UTF-16 code units at every depth
//   - Numbers use the ECMAScript Number-to-String form (5, not 5.0)
//   - Output is compact UTF-8 with no BOM
//
// Identity is sha256(Marshal(v)) as 64 lowercase hex characters. There is
// no domain prefix: independent implementations (mobile clients, other
// languages) must reproduce the hash from the canonical bytes alone.
package canon
