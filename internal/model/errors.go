package model

import "fmt"

// ContractError reports a programming-contract violation: the caller used
// the model API in a way that can never succeed (for example queueing a
// create without data). Most are returned synchronously from the mutation
// call; the rest abort the run when the violation only becomes visible at
// commit time, such as a query that never resolved to a document.
type ContractError struct {
	Op     string
	Reason string
}

// Error implements the error interface.
func (e *ContractError) Error() string {
	return fmt.Sprintf("schemafire: %s: %s", e.Op, e.Reason)
}

func contractErr(op, format string, args ...any) *ContractError {
	return &ContractError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// ProtectedFieldError reports an attempt to delete a system-managed base
// field by key.
type ProtectedFieldError struct {
	Field string
}

// Error implements the error interface.
func (e *ProtectedFieldError) Error() string {
	return fmt.Sprintf("schemafire: field %q is protected and cannot be deleted", e.Field)
}
