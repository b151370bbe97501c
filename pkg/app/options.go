// Package app defines the options contract used by the application bootstrapper.
package app

import "github.com/kart-io/docqa/pkg/app/cliflag"

// CliOptions is what the bootstrapper needs from a command's options: flags
// grouped into help sections, then Complete and Validate after config load.
type CliOptions interface {
	// Flags returns the flags grouped by section.
	Flags() cliflag.NamedFlagSets
	// Validate validates the options.
	Validate() error
	// Complete completes the options with defaults.
	Complete() error
}
