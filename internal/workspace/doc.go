// SPDX-License-Identifier: MPL-2.0

// Package workspace stages version-controlled repositories into deterministic
// directories under a workspace root.
//
// A workspace is addressed by a caller-supplied label such as "impl_42". The first
// Stage call for a label clones the repository; later calls update it in place
// (fetch, checkout, fast-forward pull) and always finish with an explicit checkout
// of the requested revision. Concurrent Stage calls for the same label are
// serialized; different labels proceed in parallel.
package workspace
