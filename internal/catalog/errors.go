package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrDerivation reports an instance name that no family rule recognises.
	ErrDerivation = errors.New("catalog: family derivation failed")
	// ErrDuplicateName reports two instances sharing one name.
	ErrDuplicateName = errors.New("catalog: duplicate instance name")
	// ErrStaleSnapshot reports a snapshot whose stored index or vectors no
	// longer match what the naming rules derive from its instances.
	ErrStaleSnapshot = errors.New("catalog: stale snapshot")
)

// DerivationError carries the instance that failed family lookup.
type DerivationError struct {
	Name    string
	Species string
}

func (e *DerivationError) Error() string {
	if e.Species == "" {
		return fmt.Sprintf("catalog: cannot derive species from instance name %q", e.Name)
	}
	return fmt.Sprintf("catalog: no family suffix matches species %q (instance %q)", e.Species, e.Name)
}

func (e *DerivationError) Unwrap() error { return ErrDerivation }
