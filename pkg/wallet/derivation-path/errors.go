package path

import (
	"fmt"
)

var (
	ErrMissingDerivationPath   = fmt.Errorf("missing derivation path")
	ErrMalformedDerivationPath = fmt.Errorf("derivation path must have at least one index and no empty component")
	ErrInvalidPathIndex        = fmt.Errorf("invalid derivation path index")
)

var (
	ErrMissingSeed    = fmt.Errorf("missing seed")
	ErrMissingNetwork = fmt.Errorf("missing network")
)
