// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/vechain/epochdb/accumulator"
)

var (
	// ErrContractViolation is returned when a caller breaks the usage contract of a state,
	// e.g. mutating a read-only state or deriving a branch on the sequential engine.
	ErrContractViolation = errors.New("state: contract violation")
	// ErrUnsupported is returned when the engine cannot serve the operation.
	ErrUnsupported = errors.New("state: unsupported")
)

// StorageError is the error caused by backend access failure.
type StorageError struct {
	cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

func (e *StorageError) Unwrap() error {
	return e.cause
}

// IsStorageFault returns whether the error is caused by backend access failure.
func IsStorageFault(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func violation(format string, args ...any) error {
	return errors.Wrapf(ErrContractViolation, format, args...)
}

func unsupported(format string, args ...any) error {
	return errors.Wrapf(ErrUnsupported, format, args...)
}

// wrapError classifies errors returned by engines.
func wrapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrContractViolation), errors.Is(err, ErrUnsupported), IsStorageFault(err):
		return err
	case errors.Is(err, accumulator.ErrNonSequential):
		return errors.Wrap(ErrContractViolation, err.Error())
	case errors.Is(err, accumulator.ErrPruned), errors.Is(err, accumulator.ErrFutureEpoch):
		return errors.Wrap(ErrUnsupported, err.Error())
	default:
		return &StorageError{err}
	}
}
