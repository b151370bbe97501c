// Package options defines the generic options interface and common utilities.
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// Join concatenates prefixes with "." separator.
// If the result is non-empty, it appends a trailing ".".
// This is used to build flag names like "redis.host" or "prefix.redis.host".
func Join(prefixes ...string) string {
	joined := strings.Join(prefixes, ".")
	if joined != "" {
		joined += "."
	}
	return joined
}

// IOptions defines methods to implement a generic options.
type IOptions interface {
	// Validate validates all the required options.
	Validate() []error

	// AddFlags adds flags related to given flagset.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// Completer is implemented by options that derive defaults after flag parsing.
type Completer interface {
	Complete() error
}

// ValidateAll collects validation errors of every non-nil option set.
func ValidateAll(opts ...IOptions) []error {
	var errs []error
	for _, o := range opts {
		if o == nil {
			continue
		}
		errs = append(errs, o.Validate()...)
	}
	return errs
}

// CompleteAll runs Complete on every option set that supports it and stops at the first error.
func CompleteAll(opts ...IOptions) error {
	for _, o := range opts {
		if c, ok := o.(Completer); ok {
			if err := c.Complete(); err != nil {
				return err
			}
		}
	}
	return nil
}
