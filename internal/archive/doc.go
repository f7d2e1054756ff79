// SPDX-License-Identifier: MPL-2.0

// Package archive uploads completed run records to S3-compatible object
// storage as JSON documents.
package archive
