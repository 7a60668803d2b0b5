package domain

import (
	"errors"
	"fmt"
)

var (
	ErrReportNotFound = errors.New("report not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrTemporary      = errors.New("temporary failure")

	// ErrClassifierUnavailable marks a classification attempt that could not
	// produce even a fallback verdict. Validation is advisory; the
	// orchestrator skips it rather than failing the upload.
	ErrClassifierUnavailable = errors.New("classifier unavailable")

	// ErrDuplicateAnalysis marks an analysis insert that lost the dedup-key
	// race; callers treat it as "skip", not as a failure.
	ErrDuplicateAnalysis = errors.New("duplicate analysis")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
