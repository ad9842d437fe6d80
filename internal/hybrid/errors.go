package hybrid

import (
	"errors"
	"fmt"
)

// ContractViolationError reports a provider returning a different
// number of translations than it was given. Silently continuing would
// risk misaligning text and timing, so this always aborts the run and
// is never retried.
type ContractViolationError struct {
	Provider string
	Want     int
	Got      int
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("provider %s violated the batch contract: sent %d texts, got %d translations",
		e.Provider, e.Want, e.Got)
}

// IsContractViolation reports whether err wraps a contract violation.
func IsContractViolation(err error) bool {
	var cv *ContractViolationError
	return errors.As(err, &cv)
}
