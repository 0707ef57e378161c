// Package keys provides local key management for ledger identities.
//
// API stability:
//
// Stable (SemVer-protected):
//   - Pure, deterministic primitives for address derivation and account-seed derivation.
//
// Experimental:
//   - Filesystem-backed seed storage and convenience helpers (KeyStore and related functions).
//     These are local-first utilities and are not part of the long-term protocol contract.
package keys
