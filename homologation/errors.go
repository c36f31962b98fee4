// Package homologation implements the equivalence engine for the national
// drug registry: categorical frequency encoding, eligibility classification,
// weighted feature vector assembly, k-means clustering and same-cluster
// candidate resolution.
package homologation

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine. Callers distinguish bad input data
// (ErrInvalidQuantity), impossible configuration (ErrInsufficientData),
// a model that cannot converge (ErrDegenerateCluster) and a query the
// model cannot answer (ErrUnresolvableQuery) with errors.Is.
var (
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInsufficientData  = errors.New("insufficient data")
	ErrDegenerateCluster = errors.New("degenerate cluster")
	ErrUnresolvableQuery = errors.New("unresolvable query")
)

func invalidQuantity(field string, value float64) error {
	return fmt.Errorf("%w: %s = %v", ErrInvalidQuantity, field, value)
}
