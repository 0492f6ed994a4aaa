package app

import (
	cliflag "k8s.io/component-base/cli/flag"
)

// NamedFlagSetOptions is implemented by the options struct of an App.
type NamedFlagSetOptions interface {
	// Flags returns the flag sets, grouped by option group for help output.
	Flags() cliflag.NamedFlagSets

	// Complete fills in fields derived from other fields.
	Complete() error

	// Validate returns an aggregate of every invalid field.
	Validate() error
}
