// Package ir provides the data vocabulary of a bassline network.
//
// It holds the value model (scalars, native collections and the mergeable
// family) with its total Merge function, the reified network snapshot
// (Bassline), the Action and Event variants, canonical JSON and content
// hashes. All other internal packages import ir; ir imports nothing
// internal.
//
// Key design constraints:
//   - NO float types anywhere - numbers are int64
//   - Canonical JSON (RFC 8785 ordering, NFC strings) is the only encoding
//     used for hashing, equality and the textual wire format
//   - All object keys in the textual form use snake_case
//   - Records carry no hidden fields; the tagged forms are the contract
package ir
