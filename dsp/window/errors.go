package window

import (
	"errors"
	"fmt"
)

var (
	errEmptyCoeffs      = errors.New("window coefficients must not be empty")
	errZeroEnergy       = errors.New("window energy is zero")
	errMismatchedLength = errors.New("samples and coefficients must have same length")
)

func validateHop(hop, size int) error {
	return fmt.Errorf("window hop must be in [1, %d]: %d", size, hop)
}
