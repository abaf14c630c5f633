// Package workflows holds the workflow files shipped inside the binary.
package workflows

import "embed"

// FS contains every shipped workflow file at its root.
//
//go:embed *.hcl
var FS embed.FS
