package intercept

import (
	"errors"
	"fmt"
	"strings"
)

// Errors reported by type descriptors and by the engine.
var (
	ErrNoSuchOperation  = errors.New("no such operation")
	ErrLevelMismatch    = errors.New("operation level mismatch")
	ErrReceiverMismatch = errors.New("receiver does not match the type")
	ErrArity            = errors.New("wrong number of arguments")
	ErrArgument         = errors.New("argument of the wrong type")
	ErrSealed           = errors.New("operation cannot be replaced")
	ErrDuplicateType    = errors.New("type already declared")
)

// An OperationError reports that one operation of a type could not be
// instrumented.
type OperationError struct {
	Type      string
	Operation string
	Err       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s#%s: %v", e.Type, e.Operation, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// A WrapError collects the operations that failed while wrapping a type. The
// other operations of the type are wrapped regardless.
type WrapError struct {
	Type string
	Errs []*OperationError
}

func (e *WrapError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}

	return fmt.Sprintf("wrapping %s: %s", e.Type, strings.Join(msgs, "; "))
}

func (e *WrapError) Unwrap() []error {
	errs := make([]error, len(e.Errs))
	for i, err := range e.Errs {
		errs[i] = err
	}

	return errs
}

// A PanicError is the failure carried by an exit event when the original
// operation panicked. The panic itself is re-raised with the same Value.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
