// Package ir defines the value model and content addressing for stored
// representations.
//
// This package is the foundational layer: every other internal package
// imports ir; ir imports only internal/fault. A representation is a Value
// (sealed: Null, Bool, Int, String, Array, Object) paired with a Tag naming
// its semantic shape. Identity is the Address — a domain-separated SHA-256
// digest over the tag and the canonical encoding.
//
// Key design constraints:
//   - NO float types anywhere - use Int (int64) for numbers
//   - Canonical encoding follows RFC 8785: UTF-16 key ordering, NFC
//     normalized strings, no HTML escaping
//   - Null exists in the model but is not canonicalizable; values containing
//     Null cannot be stored
package ir
