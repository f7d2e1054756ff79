// SPDX-License-Identifier: MPL-2.0

// Package catalog resolves implementation ids to the repository metadata the
// orchestrators need. Metadata is owned by an external store; this package only
// reads it, from a YAML file or from PostgreSQL.
package catalog
