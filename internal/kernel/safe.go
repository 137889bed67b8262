package kernel

import (
	"fmt"
	"runtime/debug"
)

// PanicError is returned by runSafely when fn panics.
type PanicError struct {
	Scope string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s: panic recovered: %v", e.Scope, e.Value)
}

// Unwrap exposes a panicked error value to errors.Is and errors.As.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// runSafely calls fn, tagging its error with scope and turning a panic into
// a *PanicError.
func runSafely(scope string, fn func() error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &PanicError{Scope: scope, Value: recovered, Stack: debug.Stack()}
		}
	}()

	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", scope, err)
	}

	return nil
}
